// Package index runs ingestion: it fetches the source document, turns raw
// records into users and commits them as a new generation.
package index

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
)

// Raw record keys.
const (
	keyID        = "id"
	keyFirstName = "firstName"
	keyLastName  = "lastName"
	keyEmail     = "email"
	keySSN       = "ssn"
	keyAge       = "age"
	keyRole      = "role"
)

// SkippedRecord describes a raw record the transformer dropped.
type SkippedRecord struct {
	// Index is the record's position in the source collection.
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RecordTransformer converts raw source records into users. It does no I/O.
type RecordTransformer struct{}

// Transform converts one raw record. Absent and null keys yield zero
// values; unknown keys are ignored. Numeric fields accept integral JSON
// numbers and numeric strings. A missing or non-positive id is left as 0
// for the store to assign; ids above store.MaxSourceID are rejected.
func (RecordTransformer) Transform(raw any) (*store.User, error) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return nil, transformError(fmt.Sprintf("record is %s, not an object", jsonKind(raw)))
	}

	u := &store.User{}
	var err error
	if u.ID, err = intField(rec, keyID); err != nil {
		return nil, err
	}
	if u.ID < 0 {
		u.ID = 0
	}
	if u.ID > store.MaxSourceID {
		return nil, transformError(fmt.Sprintf("id %d out of range", u.ID))
	}
	if u.FirstName, err = stringField(rec, keyFirstName); err != nil {
		return nil, err
	}
	if u.LastName, err = stringField(rec, keyLastName); err != nil {
		return nil, err
	}
	if u.Email, err = stringField(rec, keyEmail); err != nil {
		return nil, err
	}
	if u.SSN, err = stringField(rec, keySSN); err != nil {
		return nil, err
	}
	if u.Role, err = stringField(rec, keyRole); err != nil {
		return nil, err
	}
	age, err := intField(rec, keyAge)
	if err != nil {
		return nil, err
	}
	if age > math.MaxInt32 || age < math.MinInt32 {
		return nil, transformError(fmt.Sprintf("age %d out of range", age))
	}
	u.Age = int(age)
	u.Email = store.NormalizeEmail(u.Email)
	u.SSN = strings.TrimSpace(u.SSN)
	return u, nil
}

// Batch transforms records in order. Malformed records and records whose
// id or non-empty email repeats an earlier record are skipped; the first
// occurrence wins.
func (t RecordTransformer) Batch(records []any) ([]*store.User, []SkippedRecord) {
	users := make([]*store.User, 0, len(records))
	var skipped []SkippedRecord
	ids := make(map[int64]int, len(records))
	emails := make(map[string]int, len(records))

	for i, raw := range records {
		u, err := t.Transform(raw)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Index: i, Reason: reason(err)})
			continue
		}
		if u.ID > 0 {
			if first, dup := ids[u.ID]; dup {
				skipped = append(skipped, SkippedRecord{Index: i,
					Reason: fmt.Sprintf("duplicate id %d (first at record %d)", u.ID, first)})
				continue
			}
		}
		if u.Email != "" {
			if first, dup := emails[u.Email]; dup {
				skipped = append(skipped, SkippedRecord{Index: i,
					Reason: fmt.Sprintf("duplicate email %s (first at record %d)", u.Email, first)})
				continue
			}
			emails[u.Email] = i
		}
		if u.ID > 0 {
			ids[u.ID] = i
		}
		users = append(users, u)
	}
	return users, skipped
}

func transformError(msg string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeTransformFailed, msg, nil)
}

func reason(err error) string {
	if ae, ok := err.(*apperrors.AppError); ok {
		return ae.Message
	}
	return err.Error()
}

func stringField(rec map[string]any, key string) (string, error) {
	switch v := rec[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", transformError(fmt.Sprintf("field %s is %s, not a string", key, jsonKind(v)))
	}
}

func intField(rec map[string]any, key string) (int64, error) {
	var (
		n   int64
		err error
	)
	switch v := rec[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		n, err = parseInt(v.String())
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		n, err = parseInt(strings.TrimSpace(v))
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
			err = fmt.Errorf("not integral")
		} else {
			n = int64(v)
		}
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return 0, transformError(fmt.Sprintf("field %s is %s, not a number", key, jsonKind(v)))
	}
	if err != nil {
		return 0, transformError(fmt.Sprintf("field %s is not an integer: %v", key, rec[key]))
	}
	return n, nil
}

// parseInt accepts integers and integral decimals such as "30.0".
// float64(math.MaxInt64) rounds up to 2^63, which does not fit, hence >=.
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("not integral")
	}
	return int64(f), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
