package assistant

import "testing"

func TestIsTrigger(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain", "@ai what's the weather", true},
		{"leading space", "  @AI do you ship abroad?", true},
		{"uppercase", "@Ai hello", true},
		{"mid sentence", "ask @ai something", false},
		{"prefix of word", "@aircraft question", false},
		{"no trigger", "when does my order arrive", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTrigger(tt.input); got != tt.want {
				t.Fatalf("got=%v want=%v", got, tt.want)
			}
		})
	}
}

func TestStripTrigger(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "@ai what's the weather", "what's the weather"},
		{"leading space", "  @AI  do you ship abroad?", "do you ship abroad?"},
		{"no trigger", " plain question ", "plain question"},
		{"only trigger", "@ai", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTrigger(tt.input); got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}
