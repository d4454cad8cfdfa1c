package wireenc

import (
	"math"
	"strconv"
)

// AppendFloat64 appends val to dst as a JSON number, falling back to a
// quoted sentinel ("NaN"/"Infinity"/"-Infinity") for the non-finite values
// encoding/json cannot represent.
func AppendFloat64(dst []byte, val float64) []byte {
	// JSON strings are obviously not valid JSON numbers, but JSON numbers do not support NaN or Inf.
	switch {
	case math.IsNaN(val):
		return append(dst, `"NaN"`...)
	case math.IsInf(val, 1):
		return append(dst, `"Infinity"`...)
	case math.IsInf(val, -1):
		return append(dst, `"-Infinity"`...)
	}
	// see also https://cs.opensource.google/go/go/+/refs/tags/go1.20.3:src/encoding/json/encode.go;l=573
	fmt := byte('f')
	if abs := math.Abs(val); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		fmt = 'e'
	}
	dst = strconv.AppendFloat(dst, val, fmt, -1, 64)
	if fmt == 'e' {
		// Clean up e-09 to e-9
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst
}
