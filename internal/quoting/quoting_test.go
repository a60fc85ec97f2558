package quoting

import "testing"

func TestDoubleQuote(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "users", `"users"`},
		{"empty", "", `""`},
		{"with space", "my table", `"my table"`},
		{"embedded quote", `we"ird`, `"we""ird"`},
		{"only quote", `"`, `""""`},
		{"injection attempt", `t"; DROP TABLE x; --`, `"t""; DROP TABLE x; --"`},
		{"unicode", "café", "\"café\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DoubleQuote(tt.input)
			if got != tt.want {
				t.Errorf("DoubleQuote(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
