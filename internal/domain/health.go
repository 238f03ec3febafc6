package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidHealth is returned when a health indicator cannot be read as a number.
var ErrInvalidHealth = errors.New("invalid health value")

var (
	minHealth = decimal.NewFromInt(math.MinInt32)
	maxHealth = decimal.NewFromInt(math.MaxInt32)
)

// ParseHealth converts the upstream health indicator, which arrives either as a
// JSON number or as a numeric string, to an integer.
// Fractional values are rounded half away from zero. Null, absent and empty
// string values map to 0.
func ParseHealth(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidHealth, text)
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, nil
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHealth, text)
	}

	d = d.Round(0)
	if d.LessThan(minHealth) || d.GreaterThan(maxHealth) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidHealth, text)
	}
	return int(d.IntPart()), nil
}
