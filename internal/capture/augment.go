package capture

import "github.com/roach88/signbank/internal/sample"

// Augmenter expands one captured sequence into the sequences to store.
// Every returned array must keep the input's shape.
type Augmenter interface {
	Augment(seq sample.Array) []sample.Array
}

// Identity stores the captured sequence only.
type Identity struct{}

// Augment returns a copy of seq.
func (Identity) Augment(seq sample.Array) []sample.Array {
	return []sample.Array{seq.Clone()}
}

// AugmenterFunc adapts a function to Augmenter.
type AugmenterFunc func(seq sample.Array) []sample.Array

// Augment calls f(seq).
func (f AugmenterFunc) Augment(seq sample.Array) []sample.Array {
	return f(seq)
}
