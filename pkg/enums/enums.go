// Package enums holds the closed string sets stored in the database and
// accepted on the wire. Each type has IsValid and a Parse function.
package enums

import (
	"fmt"
	"slices"
)

func contains[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](set []T, raw, what string) (T, error) {
	if v := T(raw); contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", what, raw)
}
