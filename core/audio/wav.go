package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

var ErrUnsupportedWAV = errors.New("unsupported wav data")

// EncodeWAV wraps linear16 PCM in a canonical 44 byte RIFF header.
func EncodeWAV(pcm []byte, info EncodingInfo) ([]byte, error) {
	if info.Format != EncodingLinear16 {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedWAV, info.Format.Name())
	}

	channels := info.channels()
	byteRate := info.SampleRate * channels * 2
	blockAlign := channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(info.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeWAV reads 16-bit PCM WAV data into a mono track. Multi-channel audio
// is averaged down to one channel.
func DecodeWAV(data []byte) (*Track, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var (
		channels   int
		sampleRate int
		bits       int
		pcm        []byte
		haveFormat bool
	)

	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := data[offset+8:]
		if size > len(body) {
			// streamed writers leave the size at its maximum
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return nil, fmt.Errorf("%w: compression format %d", ErrUnsupportedWAV, format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFormat = true
		case "data":
			pcm = body
		}

		// chunks are padded to an even size
		offset += 8 + size + size%2
	}

	if !haveFormat {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedWAV)
	}
	if bits != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bits)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, channels)
	}

	return NewTrack(DecodeLinear16(pcm, channels), sampleRate), nil
}

// DecodeLinear16 turns little-endian interleaved S16 bytes into mono samples.
func DecodeLinear16(pcm []byte, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	frameSize := 2 * channels
	samples := make([]int16, len(pcm)/frameSize)
	for i := range samples {
		frame := pcm[i*frameSize:]
		sum := 0
		for ch := range channels {
			sum += int(int16(binary.LittleEndian.Uint16(frame[2*ch:])))
		}
		samples[i] = int16(sum / channels)
	}
	return samples
}
