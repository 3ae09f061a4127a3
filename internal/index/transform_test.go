package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
)

func TestRecordTransformer_Transform(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want *store.User
	}{
		{
			name: "full record with json numbers",
			raw: map[string]any{
				"id": json.Number("7"), "firstName": "John", "lastName": "Major",
				"email": " John@X.com ", "ssn": " 222-33-4444 ", "age": json.Number("41"), "role": "admin",
			},
			want: &store.User{ID: 7, FirstName: "John", LastName: "Major",
				Email: "john@x.com", SSN: "222-33-4444", Age: 41, Role: "admin"},
		},
		{
			name: "numeric strings and integral decimals",
			raw:  map[string]any{"id": "12", "age": "30.0"},
			want: &store.User{ID: 12, Age: 30},
		},
		{
			name: "float64 from a non-UseNumber decoder",
			raw:  map[string]any{"id": float64(3), "age": float64(19)},
			want: &store.User{ID: 3, Age: 19},
		},
		{
			name: "absent and null keys are zero values",
			raw:  map[string]any{"firstName": nil, "email": nil},
			want: &store.User{},
		},
		{
			name: "unknown keys ignored",
			raw:  map[string]any{"id": 5, "nickname": "jj", "address": map[string]any{"city": "x"}},
			want: &store.User{ID: 5},
		},
		{
			name: "negative id left for the store",
			raw:  map[string]any{"id": int64(-4), "firstName": "Neg"},
			want: &store.User{FirstName: "Neg"},
		},
		{
			name: "blank numeric string",
			raw:  map[string]any{"age": "  "},
			want: &store.User{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecordTransformer{}.Transform(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordTransformer_TransformRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		message string
	}{
		{"not an object", []any{1, 2}, "record is an array, not an object"},
		{"null record", nil, "record is null, not an object"},
		{"string name", map[string]any{"firstName": 12.0}, "field firstName is a number, not a string"},
		{"fractional id", map[string]any{"id": json.Number("1.5")}, "field id is not an integer"},
		{"word age", map[string]any{"age": "forty"}, "field age is not an integer"},
		{"boolean id", map[string]any{"id": true}, "field id is a boolean, not a number"},
		{"age overflow", map[string]any{"age": json.Number("9999999999")}, "age 9999999999 out of range"},
		{"id of 2^63 as text", map[string]any{"id": json.Number("9223372036854775808")}, "field id is not an integer"},
		{"id of 2^63 as float", map[string]any{"id": 9223372036854775808.0}, "field id is not an integer"},
		{"id of 2^63 as decimal string", map[string]any{"id": "9223372036854775808.0"}, "field id is not an integer"},
		{"id at int64 limit", map[string]any{"id": json.Number("9223372036854775807")}, "id 9223372036854775807 out of range"},
		{"id past exact json range", map[string]any{"id": json.Number("9007199254740992")}, "id 9007199254740992 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecordTransformer{}.Transform(tt.raw)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTransformFailed))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRecordTransformer_BatchSkipsBadAndDuplicateRecords(t *testing.T) {
	// Given: a batch with one malformed record and two duplicates
	records := []any{
		map[string]any{"id": 1, "firstName": "John", "email": "john@x.com"},
		"garbage",
		map[string]any{"id": 1, "firstName": "Johnny"},
		map[string]any{"id": 2, "firstName": "Jane", "email": "JOHN@x.com"},
		map[string]any{"firstName": "NoID", "email": ""},
		map[string]any{"firstName": "NoID2"},
		map[string]any{"id": 3, "firstName": "Zed", "email": "z@x.com"},
	}

	// When: transforming the batch
	users, skipped := RecordTransformer{}.Batch(records)

	// Then: first occurrences win, order is kept, and empty emails never collide
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.FirstName)
	}
	assert.Equal(t, []string{"John", "NoID", "NoID2", "Zed"}, names)

	require.Len(t, skipped, 3)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, "record is a string, not an object", skipped[0].Reason)
	assert.Equal(t, 2, skipped[1].Index)
	assert.Equal(t, "duplicate id 1 (first at record 0)", skipped[1].Reason)
	assert.Equal(t, 3, skipped[2].Index)
	assert.Equal(t, "duplicate email john@x.com (first at record 0)", skipped[2].Reason)
}

func TestRecordTransformer_BatchAllInvalid(t *testing.T) {
	users, skipped := RecordTransformer{}.Batch([]any{1.0, "x", nil})
	assert.Empty(t, users)
	assert.Len(t, skipped, 3)
}
