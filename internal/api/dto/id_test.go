package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

func TestFlexibleIDAcceptsNumbersAndNumericStrings(t *testing.T) {
	cases := map[string]struct {
		body    string
		want    *int64
		invalid bool
	}{
		"number":        {body: `{"id": 5}`, want: ptr(5)},
		"string":        {body: `{"id": "5"}`, want: ptr(5)},
		"padded string": {body: `{"id": " 42 "}`, want: ptr(42)},
		"missing":       {body: `{}`},
		"null":          {body: `{"id": null}`},
		"empty string":  {body: `{"id": ""}`},
		"letters":       {body: `{"id": "abc"}`, invalid: true},
		"fraction":      {body: `{"id": 1.5}`, invalid: true},
		"zero":          {body: `{"id": 0}`, invalid: true},
		"negative":      {body: `{"id": -3}`, invalid: true},
		"boolean":       {body: `{"id": true}`, invalid: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var payload struct {
				ID FlexibleID `json:"id"`
			}
			require.NoError(t, json.Unmarshal([]byte(tc.body), &payload))

			got, err := payload.ID.Resolve("id")
			if tc.invalid {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("17", "id")
	require.NoError(t, err)
	assert.EqualValues(t, 17, id)

	for _, raw := range []string{"", "x1", "0", "-2", "1e3"} {
		_, err := ParseID(raw, "id")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation), raw)
	}
}

func ptr(v int64) *int64 { return &v }
