package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/lib/pq"
)

// CategoryArray is a custom type for handling resource_category[] arrays in PostgreSQL
type CategoryArray []ResourceCategory

// Value implements the driver.Valuer interface
func (a CategoryArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	strs := make([]string, len(a))
	for i, c := range a {
		strs[i] = string(c)
	}
	return pq.Array(strs).Value()
}

// Scan implements the sql.Scanner interface
func (a *CategoryArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var strs []string
	if err := pq.Array(&strs).Scan(src); err != nil {
		return err
	}
	out := make(CategoryArray, len(strs))
	for i, s := range strs {
		out[i] = ResourceCategory(s)
	}
	*a = out
	return nil
}

// Contains reports whether the category is in the array
func (a CategoryArray) Contains(category ResourceCategory) bool {
	for _, c := range a {
		if c == category {
			return true
		}
	}
	return false
}

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
// Returns JSON as string for compatibility with simple protocol mode
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}
