package dto

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// FlexibleID accepts a JSON number or a numeric string. Unknown shapes are
// remembered as invalid instead of failing the whole body.
type FlexibleID struct {
	set   bool
	valid bool
	value int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	*f = FlexibleID{}
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			f.set = true
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}
	f.set = true
	n, err := strconv.ParseInt(raw, 10, 64)
	if err == nil && n > 0 {
		f.valid = true
		f.value = n
	}
	return nil
}

// NewFlexibleID builds a set, valid id.
func NewFlexibleID(v int64) FlexibleID {
	return FlexibleID{set: true, valid: v > 0, value: v}
}

// IsSet reports whether the field carried a non-empty value.
func (f FlexibleID) IsSet() bool { return f.set }

// Resolve returns nil when the field was absent and a VALIDATION error when it
// was present but not a positive integer.
func (f FlexibleID) Resolve(field string) (*int64, error) {
	if !f.set {
		return nil, nil
	}
	if !f.valid {
		return nil, apperrors.NewValidationError(field+" must be a numeric id", map[string]any{"field": field})
	}
	v := f.value
	return &v, nil
}

// ParseID converts a path or query value into a positive id.
func ParseID(raw, field string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.NewValidationError(field+" must be a numeric id", map[string]any{"field": field, "value": raw})
	}
	return n, nil
}
