package deepgram

import (
	"errors"
	"fmt"

	"github.com/koscakluka/cognitive-os/core/audio"
)

var ErrUnsupportedEncoding = errors.New("unsupported encoding")

type encodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

// convertEncoding maps raw audio to the listen endpoint's encoding query
// parameters.
func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	converted := encodingInfo{Channels: max(encoding.Channels, 1)}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		converted.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedEncoding, encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		converted.Format = encodingLinear16
	case audio.EncodingALaw, audio.EncodingMulaw:
		if converted.SampleRate != 8000 {
			return nil, fmt.Errorf("%w: %s needs 8000 Hz", ErrUnsupportedEncoding, encoding.Format.Name())
		}
		converted.Format = encodingALaw
		if encoding.Format == audio.EncodingMulaw {
			converted.Format = encodingMulaw
		}
	default:
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedEncoding, encoding.Format.Name())
	}

	return &converted, nil
}
