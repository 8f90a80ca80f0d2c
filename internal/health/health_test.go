package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordCallbackTracksWorstCase(t *testing.T) {
	c := New()
	c.RecordCallback(5 * time.Millisecond)
	c.RecordCallback(1 * time.Millisecond)
	c.RecordCallback(9 * time.Millisecond)

	s := c.Read()
	assert.Equal(t, 9*time.Millisecond, s.LastCallback, "last callback is whatever was recorded most recently")
	assert.Equal(t, 9*time.Millisecond, s.WorstCallback)
}

func TestReadResetsWorstCallbackButNotModuleCount(t *testing.T) {
	c := New()
	c.RecordCallback(9 * time.Millisecond)
	c.SetModuleCount(12)

	first := c.Read()
	assert.Equal(t, 9*time.Millisecond, first.WorstCallback)
	assert.Equal(t, 12, first.ModuleCount)

	second := c.Read()
	assert.Equal(t, time.Duration(0), second.WorstCallback, "worst callback resets on read")
	assert.Equal(t, 12, second.ModuleCount, "module count is not reset-on-read")
}

func TestRecordDrainDepthKeepsMaxUntilRead(t *testing.T) {
	c := New()
	c.RecordDrainDepth(3)
	c.RecordDrainDepth(1)
	c.RecordDrainDepth(7)

	s := c.Read()
	assert.Equal(t, 7, s.MaxDrainDepth)

	s2 := c.Read()
	assert.Equal(t, 0, s2.MaxDrainDepth, "drain depth watermark resets on read")
}

func TestRecordUnderrunAccumulates(t *testing.T) {
	c := New()
	c.RecordUnderrun()
	c.RecordUnderrun()
	s := c.Read()
	assert.Equal(t, uint64(2), s.Underruns)
}

func TestRecordErrorIsConsumedOnce(t *testing.T) {
	c := New()
	c.RecordError("boom")
	s := c.Read()
	assert.Equal(t, "boom", s.LastError)

	s2 := c.Read()
	assert.Equal(t, "", s2.LastError, "last error is reset once read")
}
