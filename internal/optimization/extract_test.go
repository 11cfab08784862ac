package optimization

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/generation/generationtest"
)

func TestExtractSpan(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		wantKind apperrors.Kind
	}{
		{
			name: "markers with prose",
			text: "Here is the function: <start>define i32 @f(i32 %a){ ret i32 %a }<end> Hope it helps.",
			want: "define i32 @f(i32 %a){ ret i32 %a }",
		},
		{
			name: "fences and blank lines stripped",
			text: "<start>\n```llvm\ndefine i32 @f(i32 %a) {\n\n  ret i32 %a\n}\n```\n<end>",
			want: "define i32 @f(i32 %a) {\n  ret i32 %a\n}",
		},
		{
			name: "non-greedy takes the first span",
			text: "<start>define void @a() { ret void }<end> and <start>define void @b() { ret void }<end>",
			want: "define void @a() { ret void }",
		},
		{
			name: "attributes trailer kept",
			text: "<start>define i32 @g() #0 {\n  ret i32 1\n}\nattributes #0 = { nounwind }<end>",
			want: "define i32 @g() #0 {\n  ret i32 1\n}\nattributes #0 = { nounwind }",
		},
		{
			name: "inline closing fence keeps the next line separate",
			text: "<start>define i32 @g() #0 {\n  ret i32 1\n}```\nattributes #0 = { nounwind }<end>",
			want: "define i32 @g() #0 {\n  ret i32 1\n}\nattributes #0 = { nounwind }",
		},
		{
			name:     "no markers",
			text:     "```llvm\ndefine i32 @f() { ret i32 0 }\n```",
			wantKind: apperrors.ExtractionFailure,
		},
		{
			name:     "start marker without end",
			text:     "<start>define i32 @f() { ret i32 0 }",
			wantKind: apperrors.ExtractionFailure,
		},
		{
			name:     "span without define",
			text:     "<start>declare i32 @f()<end>",
			wantKind: apperrors.ValidationFailure,
		},
		{
			name:     "empty span",
			text:     "<start>\n```\n<end>",
			wantKind: apperrors.ValidationFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSpan(tt.text)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractionFailureCarriesRawText(t *testing.T) {
	raw := "I could not produce IR, sorry."
	_, err := ExtractSpan(raw)
	require.ErrorIs(t, err, apperrors.ExtractionFailure)
	assert.False(t, errors.Is(err, apperrors.ValidationFailure))
	assert.Equal(t, raw, apperrors.DetailOf(err))
}

func TestExtractAsksForSentinels(t *testing.T) {
	gen := generationtest.New().On(ExtractInstruction,
		"Sure! <start>\n```llvm\ndefine i32 @square_sum(i32 %a, i32 %b) {\n  ret i32 0\n}\n```\n<end>")

	ir, err := NewExtractor(gen).Extract(context.Background(), "optimized answer text")
	require.NoError(t, err)
	assert.Equal(t, "define i32 @square_sum(i32 %a, i32 %b) {\n  ret i32 0\n}", ir)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "optimized answer text", calls[0].User)
	assert.Contains(t, calls[0].System, StartMarker)
	assert.Contains(t, calls[0].System, EndMarker)
}

func TestExtractGenerationFailure(t *testing.T) {
	gen := generationtest.New().Fail(ExtractInstruction, errors.New("rate limited"))
	_, err := NewExtractor(gen).Extract(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.GenerationFailure)
}
