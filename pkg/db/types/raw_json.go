package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RawJSON is a JSON document stored in a TEXT column. It is written as a
// string so the simple query protocol does not encode it as bytea.
type RawJSON json.RawMessage

func (j *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case string:
		*j = append((*j)[:0], v...)
		return nil
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	default:
		return fmt.Errorf("RawJSON: unsupported Scan type %T", src)
	}
}

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("RawJSON: invalid json document")
	}
	return string(j), nil
}

// MarshalJSON keeps the document verbatim when embedded in other payloads.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
