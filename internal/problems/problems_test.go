package problems

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/harness"
	"github.com/copyleftdev/irtune/internal/harness/harnesstest"
)

func TestDefinitionsDefineTheirEntry(t *testing.T) {
	for _, def := range Definitions() {
		t.Run(def.Name, func(t *testing.T) {
			assert.Equal(t, []string{def.Entry}, harness.DefinedFunctions(def.Source))
			assert.Contains(t, def.Source, "optnone", "reference must stay unoptimized")
			assert.NotEmpty(t, def.Description)
		})
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(harnesstest.NewCompiler())
	require.NoError(t, err)

	var ids []int
	for _, p := range r.List() {
		ids = append(ids, p.ID())
	}
	assert.Equal(t, []int{1, 2, 3}, ids)

	p, err := r.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "saxpy", p.Name())

	_, err = r.Get(9)
	assert.ErrorIs(t, err, apperrors.NotFound)
	assert.NoError(t, r.Close())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	defs := Definitions()
	_, err := NewRegistry(harnesstest.NewCompiler(), defs[0], defs[0])
	assert.ErrorIs(t, err, apperrors.InvalidInput)
}

func TestSquareSumBaseline(t *testing.T) {
	def := Definitions()[0]
	out, err := def.Baseline(def.TestData())
	require.NoError(t, err)
	assert.Equal(t, int32(49), out)

	_, err = def.Baseline(harness.Args{int32(1)})
	assert.ErrorIs(t, err, apperrors.InvalidInput)
}

func TestSaxpyBaseline(t *testing.T) {
	out, err := saxpy(harness.Args{float32(2), []float32{1, 2, 3}, []float32{10, 20, 30}})
	require.NoError(t, err)
	assert.Equal(t, []float32{12, 24, 36}, out)

	_, err = saxpy(harness.Args{float32(2), []float32{1}, []float32{}})
	assert.ErrorIs(t, err, apperrors.InvalidInput)
}

func TestPrefixSumBaseline(t *testing.T) {
	out, err := prefixSum(harness.Args{[]int32{1, -2, 3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -1, 2, 6}, out)
}

func TestTestDataIsDeterministic(t *testing.T) {
	for _, def := range Definitions() {
		t.Run(def.Name, func(t *testing.T) {
			assert.Equal(t, def.TestData(), def.TestData())
		})
	}
	x := saxpyData()[1].([]float32)
	assert.Len(t, x, saxpyLen)
	for _, v := range x {
		require.True(t, v >= -100 && v <= 100)
	}
}

func TestBaselineDoesNotMutateInput(t *testing.T) {
	args := prefixSumData()
	before := append([]int32(nil), args[0].([]int32)...)
	_, err := prefixSum(args)
	require.NoError(t, err)
	assert.Equal(t, before, args[0].([]int32))
}

func TestEmbeddedSource(t *testing.T) {
	assert.True(t, strings.HasPrefix(source("saxpy"), "; ModuleID"))
	assert.Panics(t, func() { source("missing") })
}
