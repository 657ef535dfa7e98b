package audio

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultFormat     = EncodingLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: DefaultFormat}
}

// EncodingInfo describes raw PCM as it comes out of a synthesizer or goes
// into a playback device.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     EncodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerFrame is the size of one sample across all channels.
func (e EncodingInfo) BytesPerFrame() int {
	return e.Format.ByteSize() * e.channels()
}

// Duration returns the length in seconds of size bytes of audio.
func (e EncodingInfo) Duration(size int) float64 {
	if e.IsZero() || e.BytesPerFrame() <= 0 {
		return 0
	}
	return float64(size/e.BytesPerFrame()) / float64(e.SampleRate)
}

type EncodingFormat string

func (e EncodingFormat) Name() string {
	return string(e)
}

func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)
