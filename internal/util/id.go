package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 16
)

// NewID returns prefix_<nanoid>. IDs never contain a slash, so they are safe
// as storage key segments.
func NewID(prefix string) string {
	id := gonanoid.MustGenerate(idAlphabet, idLength)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// IDFunc binds a prefix for callers that take a generator.
func IDFunc(prefix string) func() string {
	return func() string { return NewID(prefix) }
}
