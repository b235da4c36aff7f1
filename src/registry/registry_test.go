package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedTableValidates(t *testing.T) {
	descs := seedTable()
	require.NoError(t, Validate(descs))
	assert.GreaterOrEqual(t, len(descs), 200)
}

func TestSeedTableHasUniqueSymbols(t *testing.T) {
	descs := seedTable()
	seen := make(map[string]bool, len(descs))
	for _, op := range descs {
		assert.Falsef(t, seen[op.Symbol], "duplicate symbol %q", op.Symbol)
		seen[op.Symbol] = true
	}
}

func TestValidateRejectsDuplicate(t *testing.T) {
	descs := []Descriptor{
		d("<<", KindShl, 9, AssocLeft, Binary, FamShiftRotate, DirBi, "shift left"),
		d("<<", KindShl, 9, AssocLeft, Binary, FamShiftRotate, DirBi, "shift left again"),
	}
	err := Validate(descs)
	assert.Error(t, err)
}

func TestValidateRejectsBadPrecedence(t *testing.T) {
	descs := []Descriptor{
		d("<<", KindShl, 13, AssocLeft, Binary, FamShiftRotate, DirBi, "out of range"),
	}
	err := Validate(descs)
	assert.Error(t, err)
}

func TestGreedyLookupMatchesLongest(t *testing.T) {
	reg := Global()

	desc, n, ok := reg.GreedyLookup([]byte("<<=rest"))
	require.True(t, ok)
	assert.Equal(t, "<<=", desc.Symbol)
	assert.Equal(t, 3, n)

	// a<<=b: the overlap between "<<" and "<<=" must resolve to the longer
	// match when the whole "<<=" is present in the input (spec seed scenario).
	desc, n, ok = reg.GreedyLookup([]byte("<<=b"))
	require.True(t, ok)
	assert.Equal(t, "<<=", desc.Symbol)
	assert.Equal(t, 3, n)

	desc, n, ok = reg.GreedyLookup([]byte("<< b"))
	require.True(t, ok)
	assert.Equal(t, "<<", desc.Symbol)
	assert.Equal(t, 2, n)
}

func TestGreedyLookupNoMatch(t *testing.T) {
	reg := Global()
	_, _, ok := reg.GreedyLookup([]byte("abc"))
	assert.False(t, ok)
}

func TestLookupAccessors(t *testing.T) {
	reg := Global()

	prec, ok := reg.Precedence("<=>")
	require.True(t, ok)
	assert.Equal(t, 4, prec)

	arity, ok := reg.Arity("<=>")
	require.True(t, ok)
	assert.Equal(t, Ternary, arity)

	_, ok = reg.Precedence("not-an-operator")
	assert.False(t, ok)
}

func TestFamilyFilter(t *testing.T) {
	reg := Global()
	ops := reg.Family(FamMemoryAlloc)
	assert.NotEmpty(t, ops)
	for _, op := range ops {
		assert.Equal(t, FamMemoryAlloc, op.Family)
	}
}

func TestSuggestionsSorted(t *testing.T) {
	reg := Global()
	sugg := reg.Suggestions([]byte("<<<"), 3)
	assert.LessOrEqual(t, len(sugg), 3)
	for i := 1; i < len(sugg); i++ {
		assert.LessOrEqual(t, sugg[i-1], sugg[i])
	}
}
