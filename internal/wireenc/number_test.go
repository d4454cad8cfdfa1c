package wireenc

import (
	"math"
	"testing"
)

// cases mirror what messaging.Bound actually needs to round-trip: ordinary
// finite seconds-offsets, and the +/-Inf sentinels an unconstrained bound
// takes before it's ever set.
func TestAppendFloat64(t *testing.T) {
	cases := []struct {
		name string
		val  float64
		want string
	}{
		{"zero", 0, "0"},
		{"positive", 1234.5, "1234.5"},
		{"negative", -78.9, "-78.9"},
		{"positive infinity", math.Inf(1), `"Infinity"`},
		{"negative infinity", math.Inf(-1), `"-Infinity"`},
		{"not a number", math.NaN(), `"NaN"`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := string(AppendFloat64(nil, c.val))
			if got != c.want {
				t.Errorf("AppendFloat64(%v) = %q, want %q", c.val, got, c.want)
			}
		})
	}
}

