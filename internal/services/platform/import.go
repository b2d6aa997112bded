package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidJSON wraps decoding failures of import content.
var ErrInvalidJSON = errors.New("invalid account JSON")

// parseAccounts accepts an exported array, an accounts index file or a
// single account object.
func parseAccounts[A any](data []byte) ([]A, error) {
	var list []A
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var index struct {
		Accounts []A `json:"accounts"`
	}
	if err := json.Unmarshal(data, &index); err == nil && len(index.Accounts) > 0 {
		return index.Accounts, nil
	}

	var one A
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return []A{one}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
