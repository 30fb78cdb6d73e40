package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Variables represents a JSON object for storing arbitrary data
type Variables map[string]interface{}

// Value implements driver.Valuer interface
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner interface
func (v *Variables) Scan(value interface{}) error {
	if value == nil {
		*v = make(Variables)
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return nil
	}
}
