package logger

import "testing"

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{" warn ", WARN},
		{"error", ERROR},
		{"info", INFO},
		{"", INFO},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelStrings(t *testing.T) {
	for _, level := range []Level{DEBUG, INFO, WARN, ERROR} {
		if level.String() == "UNKNOWN" {
			t.Errorf("level %d has no name", level)
		}
		if level.Emoji() == "" {
			t.Errorf("level %d has no emoji", level)
		}
	}
}
