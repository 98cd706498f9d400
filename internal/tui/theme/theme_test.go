package theme

import "testing"

func TestByName(t *testing.T) {
	if th, ok := ByName("Tokyo-Night"); !ok || th.Name != "tokyo-night" {
		t.Errorf("ByName = %q, %v", th.Name, ok)
	}
	if th, ok := ByName("solarized"); ok || th.Name != FlexokiDark.Name {
		t.Errorf("unknown theme = %q, %v", th.Name, ok)
	}
	if len(Names()) != len(All) {
		t.Errorf("Names = %v", Names())
	}
}

func TestTrend(t *testing.T) {
	up, down, flat := 12.5, -3.0, 0.0
	th := FlexokiDark
	tests := []struct {
		name  string
		pct   *float64
		lower bool
		want  string
	}{
		{"missing", nil, false, string(th.TextDim)},
		{"flat", &flat, false, string(th.TextMuted)},
		{"revenue up", &up, false, string(th.Green)},
		{"revenue down", &down, false, string(th.Red)},
		{"cost up", &up, true, string(th.Red)},
		{"cost down", &down, true, string(th.Green)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(th.Trend(tt.pct, tt.lower)); got != tt.want {
				t.Errorf("Trend = %s, want %s", got, tt.want)
			}
		})
	}
}
