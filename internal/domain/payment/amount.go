package payment

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// ParseAmount normalizes the many shapes an amount arrives in (JSON numbers,
// Go integers, integral floats, numeric strings) to minor units. Missing,
// non-numeric, fractional and negative values are rejected.
func ParseAmount(v any) (int64, error) {
	var d decimal.Decimal

	switch x := v.(type) {
	case nil:
		return 0, errors.NewValidationError("amount", "is required")
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, errors.NewValidationError("amount", "must be numeric")
		}
		d = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errors.NewValidationError("amount", "is required")
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return 0, errors.NewValidationError("amount", "must be numeric")
		}
		d = parsed
	case int:
		d = decimal.NewFromInt(int64(x))
	case int32:
		d = decimal.NewFromInt32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, errors.NewValidationError("amount", "out of range")
		}
		d = decimal.NewFromInt(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return 0, errors.NewValidationError("amount", "out of range")
		}
		d = decimal.NewFromInt(int64(x))
	case float32:
		if !finite(float64(x)) {
			return 0, errors.NewValidationError("amount", "must be numeric")
		}
		d = decimal.NewFromFloat32(x)
	case float64:
		if !finite(x) {
			return 0, errors.NewValidationError("amount", "must be numeric")
		}
		d = decimal.NewFromFloat(x)
	default:
		return 0, errors.NewValidationError("amount", fmt.Sprintf("unsupported type %T", v))
	}

	if !d.IsInteger() {
		return 0, errors.NewValidationError("amount", "must be a whole number of minor units")
	}
	if d.IsNegative() {
		return 0, errors.NewValidationError("amount", "must not be negative")
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, errors.NewValidationError("amount", "out of range")
	}
	return d.IntPart(), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
