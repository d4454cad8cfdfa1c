package messaging

import (
	"fmt"
	"math"
	"strconv"

	"github.com/joeycumines/fleet-auction/internal/wireenc"
)

// Bound is a temporal-network bound in seconds relative to ZTP, wire-encoded
// so that the unconstrained case (+/-Inf, before any bound has been set)
// round-trips through JSON instead of failing to marshal.
type Bound float64

// MarshalJSON renders b as a JSON number, or one of "Infinity"/"-Infinity"/
// "NaN" for the non-finite cases JSON numbers can't represent.
func (b Bound) MarshalJSON() ([]byte, error) {
	return wireenc.AppendFloat64(nil, float64(b)), nil
}

// UnmarshalJSON accepts a JSON number or one of the quoted non-finite
// sentinels produced by MarshalJSON.
func (b *Bound) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		switch string(data[1 : len(data)-1]) {
		case "Infinity":
			*b = Bound(math.Inf(1))
		case "-Infinity":
			*b = Bound(math.Inf(-1))
		case "NaN":
			*b = Bound(math.NaN())
		default:
			return fmt.Errorf("messaging: unrecognized bound sentinel %s", data)
		}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*b = Bound(f)
	return nil
}
