package logging

import "testing"

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"short token fully hidden", "abcd1234", "***"},
		{"long token keeps edges", "supersecrettoken", "sup***ken"},
		{"trimmed before masking", "  supersecrettoken  ", "sup***ken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.in); got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
