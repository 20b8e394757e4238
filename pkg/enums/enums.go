// Package enums holds the string-backed enumerations persisted in the
// database and carried in tokens.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind string, known []T, value string) (T, error) {
	if v := T(value); slices.Contains(known, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
