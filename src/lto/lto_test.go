package lto

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodeProfile(t *testing.T, name string, exec uint64, blocks, branches []uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	assert.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1)))
	assert.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(name))))
	buf.WriteString(name)
	assert.NoError(t, binary.Write(&buf, binary.LittleEndian, exec))
	assert.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(blocks))))
	for _, b := range blocks {
		assert.NoError(t, binary.Write(&buf, binary.LittleEndian, b))
	}
	assert.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(branches))))
	for _, b := range branches {
		assert.NoError(t, binary.Write(&buf, binary.LittleEndian, b))
	}
	return buf.Bytes()
}

func TestReadProfileRoundTrip(t *testing.T) {
	data := encodeProfile(t, "hot_loop", 1000, []uint64{500, 500}, []uint64{400, 100})

	profile, diagErr := Read(bytes.NewReader(data))
	assert.Nil(t, diagErr)
	fp, ok := profile.Funcs["hot_loop"]
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), fp.ExecutionCount)
	assert.Equal(t, []uint64{500, 500}, fp.BlockCounts)
	assert.Equal(t, []uint64{400, 100}, fp.BranchCounts)
	assert.True(t, profile.Hot("hot_loop", 999))
	assert.False(t, profile.Hot("hot_loop", 1001))
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, diagErr := Read(bytes.NewReader([]byte("XXXX")))
	assert.NotNil(t, diagErr)
}
