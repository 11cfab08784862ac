package optimization

import (
	"context"
	"regexp"
	"strings"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/generation"
)

// Sentinel markers bounding the function the model must echo back.
const (
	StartMarker = "<start>"
	EndMarker   = "<end>"
)

var (
	sentinelSpan = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(StartMarker) + `(.*?)` + regexp.QuoteMeta(EndMarker))
	llvmFence    = regexp.MustCompile("```llvm[ \\t]*")
	anyFence     = regexp.MustCompile("```[ \\t]*")
	definition   = regexp.MustCompile(`define.*@\w+`)
)

// Extractor recovers a single function definition from the synthesis
// stage's output.
type Extractor struct {
	gen generation.Generator
}

// NewExtractor creates an Extractor.
func NewExtractor(gen generation.Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract asks the model to re-emit the function between the sentinel
// markers, then locates, cleans and validates the span. The error is an
// ExtractionFailure when no span is found and a ValidationFailure when the
// span has no function definition.
func (e *Extractor) Extract(ctx context.Context, optimized string) (string, error) {
	echoed, err := e.gen.Complete(ctx, ExtractInstruction, optimized)
	if err != nil {
		return "", apperrors.Wrap(apperrors.GenerationFailure, err, "").WithComponent(component).WithOperation("Extract")
	}
	return ExtractSpan(echoed)
}

// ExtractSpan performs the deterministic part of extraction on text that
// already carries sentinel markers.
func ExtractSpan(text string) (string, error) {
	span, ok := SentinelSpan(text)
	if !ok {
		return "", apperrors.New(apperrors.ExtractionFailure,
			"no IR found between "+StartMarker+" and "+EndMarker+" markers").
			WithComponent(component).WithOperation("ExtractSpan").WithDetail(text)
	}
	ir := CleanIR(span)
	if err := ValidateIR(ir); err != nil {
		return "", err
	}
	return ir, nil
}

// SentinelSpan returns the shortest text strictly between the first start
// marker and the following end marker.
func SentinelSpan(text string) (string, bool) {
	m := sentinelSpan.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CleanIR removes markdown fences and blank lines.
func CleanIR(span string) string {
	span = llvmFence.ReplaceAllString(span, "")
	span = anyFence.ReplaceAllString(span, "")

	lines := strings.Split(span, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// ValidateIR requires at least one function definition signature.
func ValidateIR(ir string) error {
	if !definition.MatchString(ir) {
		return apperrors.New(apperrors.ValidationFailure, "IR must contain a function definition").
			WithComponent(component).WithOperation("ValidateIR").WithDetail(ir)
	}
	return nil
}
