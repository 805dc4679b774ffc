// Package utils holds small generic helpers for optional (pointer) fields.
package utils

// ValueOr dereferences v, or returns fallback when v is nil.
func ValueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// Ptr returns a pointer to a copy of v, for literals in optional fields.
func Ptr[T any](v T) *T {
	return &v
}
