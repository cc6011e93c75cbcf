// Package codegen produces random short codes. It makes no uniqueness
// guarantee; callers are expected to probe for collisions themselves.
package codegen

import "math/rand/v2"

// Alphabet is the 62-symbol set short codes are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the code length used when callers pass a non-positive one.
const DefaultLength = 6

// Generate returns a code of the given length with each character drawn
// uniformly and independently from Alphabet. The shared source in
// math/rand/v2 is safe for concurrent use, so Generate can be called from
// any goroutine without coordination.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(buf)
}
