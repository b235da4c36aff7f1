package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeafFunctionWithSmallLocalsUsesRedZoneAndNoPrologue(t *testing.T) {
	f := NewStackFrame()
	off := f.AllocSlot(8, 8)
	f.FinalizeLayout()

	assert.Equal(t, -8, off)
	assert.Equal(t, 0, f.FrameSize())
	assert.False(t, f.NeedsPrologue())
	assert.True(t, f.UsesRedZone())
	assert.Equal(t, 8, f.RedZoneUsed())
}

func TestNonLeafFunctionNeedsFullFrame(t *testing.T) {
	f := NewStackFrame()
	f.MarkNonLeaf()
	f.AllocSlot(8, 8)
	f.MarkCalleeSaved(1) // rbx
	f.FinalizeLayout()

	assert.True(t, f.NeedsPrologue())
	assert.Equal(t, 0, f.FrameSize()%16, "frame size must be 16-byte aligned")
	assert.Greater(t, f.FrameSize(), 0)
}

func TestRedZoneExhaustionSpillsIntoLocalArea(t *testing.T) {
	f := NewStackFrame()
	f.AllocSlot(120, 8)
	off := f.AllocSlot(16, 8) // exceeds the 128-byte red zone, must spill to locals
	f.FinalizeLayout()

	assert.True(t, f.NeedsPrologue(), "once the red zone overflows the function needs a real frame")
	assert.Less(t, off, -128)
}

func TestParamSlotsLandAboveSavedFrameAndReturnAddress(t *testing.T) {
	f := NewStackFrame()
	f.MarkNonLeaf()
	off0 := f.AllocParamSlot(0, 8)
	off1 := f.AllocParamSlot(1, 8)
	f.FinalizeLayout()

	assert.Equal(t, 16, off0)
	assert.Equal(t, 24, off1)
}
