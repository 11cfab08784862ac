// Package stream groups token-level fragments from the generation service
// into sentence-terminated chunks that render without flicker.
package stream

import (
	"iter"
	"strings"
)

// boundaries end a chunk. The check runs against the buffered text after
// each fragment, so a boundary in the middle of a fragment does not split it.
var boundaries = []string{". ", "! ", "? ", "\n"}

// AtBoundary reports whether s ends at a sentence boundary.
func AtBoundary(s string) bool {
	for _, b := range boundaries {
		if strings.HasSuffix(s, b) {
			return true
		}
	}
	return false
}

// Assemble buffers fragments and yields a chunk every time the buffer ends
// at a sentence boundary. A non-empty remainder is yielded when fragments is
// exhausted. An error from fragments is yielded as-is and ends the sequence;
// text buffered at that point is dropped along with the failed response.
func Assemble(fragments iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var buf strings.Builder
		for frag, err := range fragments {
			if err != nil {
				yield("", err)
				return
			}
			buf.WriteString(frag)
			if buf.Len() > 0 && AtBoundary(buf.String()) {
				chunk := buf.String()
				buf.Reset()
				if !yield(chunk, nil) {
					return
				}
			}
		}
		if buf.Len() > 0 {
			yield(buf.String(), nil)
		}
	}
}

// Text drains seq and returns the concatenated chunks.
func Text(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

// FromSlice returns a sequence yielding each fragment in order.
func FromSlice(fragments []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}
