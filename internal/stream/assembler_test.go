package stream

import (
	"errors"
	"iter"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collect(t *testing.T, seq iter.Seq2[string, error]) []string {
	t.Helper()
	var out []string
	for chunk, err := range seq {
		require.NoError(t, err)
		out = append(out, chunk)
	}
	return out
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []string
	}{
		{"empty", nil, nil},
		{"only empty fragments", []string{"", "", ""}, nil},
		{
			"sentences",
			[]string{"The func", "tion adds. ", "Then it ", "squares! ", "Done"},
			[]string{"The function adds. ", "Then it squares! ", "Done"},
		},
		{
			"newline boundary",
			[]string{"line one\n", "line", " two\n"},
			[]string{"line one\n", "line two\n"},
		},
		{
			"question mark",
			[]string{"Why? ", "Because."},
			[]string{"Why? ", "Because."},
		},
		{
			"boundary inside fragment does not split",
			[]string{"a. b", " c. "},
			[]string{"a. b c. "},
		},
		{
			"period without space is not a boundary",
			[]string{"v1.", "2 is out. "},
			[]string{"v1.2 is out. "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, Assemble(FromSlice(tt.fragments)))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("chunks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssembleProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	pieces := []string{"a", "bc", ". ", "!", "? ", "\n", " ", "define", "i32", "", "x."}

	for i := 0; i < 500; i++ {
		n := rng.IntN(20)
		fragments := make([]string, n)
		for j := range fragments {
			fragments[j] = pieces[rng.IntN(len(pieces))]
		}

		chunks := collect(t, Assemble(FromSlice(fragments)))

		assert.Equal(t, strings.Join(fragments, ""), strings.Join(chunks, ""), "bytes preserved in order")
		for k, c := range chunks {
			assert.NotEmpty(t, c, "no empty chunk")
			if k < len(chunks)-1 {
				assert.True(t, AtBoundary(c), "non-final chunk %q ends at a boundary", c)
			}
		}
	}
}

func TestAssembleForwardsError(t *testing.T) {
	boom := errors.New("stream reset")
	src := func(yield func(string, error) bool) {
		if !yield("First. ", nil) {
			return
		}
		if !yield("partial", nil) {
			return
		}
		yield("", boom)
	}

	var chunks []string
	var gotErr error
	for chunk, err := range Assemble(src) {
		if err != nil {
			gotErr = err
			break
		}
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"First. "}, chunks)
	assert.ErrorIs(t, gotErr, boom)
}

func TestAssembleEarlyStopStopsPulling(t *testing.T) {
	pulled := 0
	src := func(yield func(string, error) bool) {
		for _, f := range []string{"One. ", "Two. ", "Three. "} {
			pulled++
			if !yield(f, nil) {
				return
			}
		}
	}

	for range Assemble(src) {
		break
	}
	assert.Equal(t, 1, pulled)
}

func TestText(t *testing.T) {
	text, err := Text(Assemble(FromSlice([]string{"Use ", "mul nsw. ", "Hoist loads."})))
	require.NoError(t, err)
	assert.Equal(t, "Use mul nsw. Hoist loads.", text)
}
