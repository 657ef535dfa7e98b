// Package speechtotext holds the options shared by transcription backends.
package speechtotext

import "github.com/koscakluka/cognitive-os/core/audio"

type TranscriptionOptions struct {
	// PartialTranscriptionCallback receives every final segment as soon as
	// it is recognised.
	PartialTranscriptionCallback func(transcript string)

	Language     string
	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func NewOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{Language: DefaultLanguage, EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

const DefaultLanguage = "en-US"

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
