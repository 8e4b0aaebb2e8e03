package mirror

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// NormalizeValue converts driver values that do not serialize natively
// (byte slices, wide numerics) into JSON-safe representations.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil, bool, string, int16, int32, int64, float32, float64, time.Time:
		return v
	case []byte:
		return string(t)
	default:
		if dv, ok := v.(driver.Valuer); ok {
			if val, err := dv.Value(); err == nil && val != nil {
				return NormalizeValue(val)
			}
		}
		return fmt.Sprint(v)
	}
}
