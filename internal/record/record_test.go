package record

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seekableBuffer adapts a bytes.Buffer into an io.WriteSeeker for
// NewWriter, which needs to seek back and patch the WAV header's size
// fields on Stop.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	if int(s.pos) == len(s.buf) {
		s.buf = append(s.buf, p...)
	} else {
		need := int(s.pos) + len(p)
		if need > len(s.buf) {
			grown := make([]byte, need)
			copy(grown, s.buf)
			s.buf = grown
		}
		copy(s.buf[s.pos:], p)
	}
	s.pos += int64(len(p))
	return len(p), nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	case io.SeekEnd:
		s.pos = int64(len(s.buf)) + offset
	}
	return s.pos, nil
}

func TestTeeDropsWhenRingIsFull(t *testing.T) {
	tee := &Tee{buf: make([]float32, 4), mask: 3}
	tee.Write([]float32{1, 2, 3})
	assert.Equal(t, uint64(0), tee.Dropped())

	tee.Write([]float32{4, 5}) // only 1 slot free, this frame must be dropped whole
	assert.Equal(t, uint64(2), tee.Dropped())

	out := make([]float32, 8)
	n := tee.drain(out)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{1, 2, 3}, out[:3])
}

func TestWriterProducesValidWAVHeaderAndSamples(t *testing.T) {
	tee := NewTee()
	buf := &seekableBuffer{}
	w, err := NewWriter(tee, buf, 48000, 2)
	require.NoError(t, err)

	tee.Write([]float32{0.5, -0.5, 1, -1})
	go w.Run()
	// Stop waits for Run to observe and flush the queued samples.
	require.NoError(t, w.Stop())

	data := buf.buf
	require.GreaterOrEqual(t, len(data), headerSize)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "data", string(data[36:40]))

	dataBytes := binary.LittleEndian.Uint32(data[40:44])
	assert.Equal(t, uint32(4*4), dataBytes, "4 float32 samples => 16 data bytes")

	riffSize := binary.LittleEndian.Uint32(data[4:8])
	assert.Equal(t, 36+dataBytes, riffSize)

	channels := binary.LittleEndian.Uint16(data[22:24])
	assert.Equal(t, uint16(2), channels)
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	assert.Equal(t, uint32(48000), sampleRate)

	samples := data[headerSize:]
	require.Len(t, samples, int(dataBytes))
	var got []float32
	r := bytes.NewReader(samples)
	for i := 0; i < 4; i++ {
		var bits uint32
		require.NoError(t, binary.Read(r, binary.LittleEndian, &bits))
		got = append(got, math.Float32frombits(bits))
	}
	assert.Equal(t, []float32{0.5, -0.5, 1, -1}, got)
}
