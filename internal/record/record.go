// Package record implements the recording sink (C10): a lock-free tee
// of the master output, written from the audio thread into a ring
// buffer, drained and WAV-encoded by a dedicated writer thread so file
// I/O never touches the audio path.
//
// The WAV header layout is carried over from the teacher's
// EncodeWAVFloat32LE (offline.go), restructured here into a streaming
// writer that patches the header's size fields on Stop instead of
// knowing the sample count up front.
package record

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"
)

const (
	ringCapacity = 1 << 16 // power of two, samples of interleaved float32
	headerSize   = 44
)

// Tee is pushed frames from the audio thread (via its Write method,
// satisfying engine.Recorder) and drained by a writer goroutine that
// never runs on the audio thread.
type Tee struct {
	buf        []float32
	mask       uint64
	head, tail atomic.Uint64
	dropped    atomic.Uint64
}

// NewTee allocates the ring. Must be called from the control thread
// before attaching to a Driver.
func NewTee() *Tee {
	return &Tee{buf: make([]float32, ringCapacity), mask: ringCapacity - 1}
}

// Write copies an interleaved frame into the ring. Called from the audio
// thread; never allocates, never blocks. If the writer thread has
// fallen behind and the ring is full, the frame is dropped rather than
// stalling the callback.
func (t *Tee) Write(frame []float32) {
	head := t.head.Load()
	tail := t.tail.Load()
	if head-tail+uint64(len(frame)) > uint64(len(t.buf)) {
		t.dropped.Add(uint64(len(frame)))
		return
	}
	for _, s := range frame {
		t.buf[head&t.mask] = s
		head++
	}
	t.head.Store(head)
}

// Dropped reports how many samples have been dropped due to writer
// backpressure, for health reporting.
func (t *Tee) Dropped() uint64 { return t.dropped.Load() }

func (t *Tee) drain(dst []float32) int {
	head := t.head.Load()
	tail := t.tail.Load()
	n := int(head - tail)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = t.buf[tail&t.mask]
		tail++
	}
	t.tail.Store(tail)
	return n
}

// Writer is the helper thread (§5 role iii) that drains a Tee and
// streams a WAV file to an io.WriteSeeker. Start it with go Writer.Run
// after opening the target file; call Stop to flush and finalize.
type Writer struct {
	tee        *Tee
	out        io.WriteSeeker
	bw         *bufio.Writer
	sampleRate int
	channels   int
	dataBytes  uint32
	stop       chan struct{}
	done       chan struct{}
}

// NewWriter creates a writer draining tee into out, encoded as
// little-endian IEEE-float PCM at sampleRate/channels.
func NewWriter(tee *Tee, out io.WriteSeeker, sampleRate, channels int) (*Writer, error) {
	w := &Writer{
		tee:        tee,
		out:        out,
		bw:         bufio.NewWriterSize(out, 1<<16),
		sampleRate: sampleRate,
		channels:   channels,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if err := w.writeHeader(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	var hdr [headerSize]byte
	byteRate := w.sampleRate * w.channels * 4
	blockAlign := w.channels * 4
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36) // patched on Stop
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(hdr[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:], 32)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], 0) // patched on Stop
	_, err := w.out.Write(hdr[:])
	return err
}

// Run drains the tee in a loop until Stop is called. Intended to run on
// its own goroutine: go writer.Run().
func (w *Writer) Run() {
	defer close(w.done)
	var chunk [4096]float32
	var sampleBuf [4]byte
	for {
		select {
		case <-w.stop:
			w.drainRemaining(chunk[:], sampleBuf[:])
			return
		default:
		}
		n := w.tee.drain(chunk[:])
		if n == 0 {
			continue
		}
		w.writeSamples(chunk[:n], sampleBuf[:])
	}
}

func (w *Writer) drainRemaining(chunk []float32, sampleBuf []byte) {
	for {
		n := w.tee.drain(chunk)
		if n == 0 {
			return
		}
		w.writeSamples(chunk[:n], sampleBuf)
	}
}

func (w *Writer) writeSamples(samples []float32, sampleBuf []byte) {
	for _, s := range samples {
		binary.LittleEndian.PutUint32(sampleBuf, math.Float32bits(s))
		w.bw.Write(sampleBuf)
	}
	w.dataBytes += uint32(len(samples) * 4)
}

// Stop signals Run to exit, waits for it, flushes, and patches the WAV
// header's size fields now that the final length is known.
func (w *Writer) Stop() error {
	close(w.stop)
	<-w.done
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if _, err := w.out.Seek(4, io.SeekStart); err != nil {
		return err
	}
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], 36+w.dataBytes)
	if _, err := w.out.Write(sz[:]); err != nil {
		return err
	}
	if _, err := w.out.Seek(40, io.SeekStart); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sz[:], w.dataBytes)
	_, err := w.out.Write(sz[:])
	return err
}
