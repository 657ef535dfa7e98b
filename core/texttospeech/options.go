// Package texttospeech holds what every speech synthesizer shares: its
// options and how a script is cut into requests.
package texttospeech

import (
	"strings"
	"unicode/utf8"

	"github.com/koscakluka/cognitive-os/core/audio"
)

type TextToSpeechOptions struct {
	// SpeechAudioCallback is called with every chunk of audio as it arrives.
	SpeechAudioCallback func(audio []byte)
	// SpeechMarkCallback is called once the speech for a piece of text has
	// been generated. Pieces are reported in order.
	SpeechMarkCallback func(text string)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func NewOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	o := TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechMarkCallback:  func(string) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.SpeechAudioCallback = callback
		}
	}
}

func WithSpeechMarkCallback(callback func(string)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if callback != nil {
			o.SpeechMarkCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// SplitText cuts text into pieces of at most limit runes, preferring to cut
// after a sentence, then after a word. Whitespace between pieces is dropped.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var pieces []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			pieces = append(pieces, text)
			break
		}

		cut := byteOffset(text, limit)
		head := text[:cut]
		if i := lastSentenceEnd(head); i > 0 {
			cut = i
		} else if i := strings.LastIndexAny(head, " \n\t"); i > 0 {
			cut = i
		}

		pieces = append(pieces, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	return pieces
}

func byteOffset(s string, runes int) int {
	offset := 0
	for i := 0; i < runes && offset < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return offset
}

// lastSentenceEnd returns the offset just past the last sentence terminator
// that is followed by whitespace.
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i > 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' || s[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return 0
}
