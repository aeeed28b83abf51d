package categorizer

import "testing"

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: `[{"key":"a"}]`, want: `[{"key":"a"}]`},
		{name: "fenced json", raw: "```json\n[{\"key\":\"a\"}]\n```", want: `[{"key":"a"}]`},
		{name: "fenced bare", raw: "```\n[]\n```", want: `[]`},
		{name: "chatter around", raw: "Here you go:\n[1, 2]\nThanks", want: `[1, 2]`},
		{name: "whitespace", raw: "  \n[ ]\n ", want: `[ ]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
