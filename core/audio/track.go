package audio

import (
	"encoding/binary"
	"sync"

	"github.com/koscakluka/cognitive-os/internal/utils"
)

// Track is decoded mono linear16 audio with a playback cursor. Rendering at
// a different output rate or speed uses nearest-sample resampling, which
// shifts pitch along with speed.
type Track struct {
	mu         sync.Mutex
	samples    []int16
	sampleRate int

	// cursor is measured in source samples.
	cursor float64
	rate   float64
}

func NewTrack(samples []int16, sampleRate int) *Track {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Track{samples: samples, sampleRate: sampleRate, rate: 1}
}

func (t *Track) SampleRate() int { return t.sampleRate }

// Duration is the length of the track in seconds.
func (t *Track) Duration() float64 {
	return float64(len(t.samples)) / float64(t.sampleRate)
}

// Position is the cursor in seconds.
func (t *Track) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor / float64(t.sampleRate)
}

// Seek moves the cursor, clamped into the track.
func (t *Track) Seek(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = utils.Clamp(seconds, 0, t.Duration()) * float64(t.sampleRate)
}

func (t *Track) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate = rate
}

func (t *Track) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.cursor) >= len(t.samples)
}

// Render fills out with samples for a device running at outRate and
// advances the cursor. Samples past the end are silence. It reports whether
// the end of the track was reached.
func (t *Track) Render(out []int16, outRate int) (ended bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if outRate <= 0 {
		outRate = t.sampleRate
	}
	step := t.rate * float64(t.sampleRate) / float64(outRate)

	for i := range out {
		idx := int(t.cursor)
		if idx >= len(t.samples) {
			clear(out[i:])
			t.cursor = float64(len(t.samples))
			return true
		}
		out[i] = t.samples[idx]
		t.cursor += step
	}
	return int(t.cursor) >= len(t.samples)
}

// RenderBytes is Render for little-endian S16 byte buffers.
func (t *Track) RenderBytes(out []byte, outRate int) (ended bool) {
	samples := make([]int16, len(out)/2)
	ended = t.Render(samples, outRate)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(sample))
	}
	return ended
}
