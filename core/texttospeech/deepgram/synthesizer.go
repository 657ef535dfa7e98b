// Package deepgram synthesizes lesson scripts with Deepgram's streaming
// text to speech endpoint.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	playback "github.com/koscakluka/cognitive-os/core"
	"github.com/koscakluka/cognitive-os/core/audio"
	"github.com/koscakluka/cognitive-os/core/storage"
	"github.com/koscakluka/cognitive-os/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL = "wss://api.deepgram.com/v1/speak"

	// maxSpeakChars is the longest text a single Speak message may carry.
	maxSpeakChars    = 2000
	handshakeTimeout = 10 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrInvalidVoice  = errors.New("invalid voice")
	ErrEmptyScript   = errors.New("nothing to synthesize")
	ErrNoAudio       = errors.New("deepgram returned no audio")
)

// APIError is an Error frame sent by the speak endpoint.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return "deepgram: " + e.Message
	}
	return fmt.Sprintf("deepgram %s: %s", e.Code, e.Message)
}

// Synthesizer turns a whole script into one WAV file. Each call opens its
// own websocket, so a Synthesizer can be shared.
type Synthesizer struct {
	apiKey  string
	voice   Voice
	url     string
	dialer  *websocket.Dialer
	blobs   storage.BlobStore
	options texttospeech.TextToSpeechOptions
	now     func() time.Time
}

type Option func(*Synthesizer)

func WithVoice(voice Voice) Option {
	return func(s *Synthesizer) { s.voice = voice }
}

// WithURL points the synthesizer at another speak endpoint.
func WithURL(endpoint string) Option {
	return func(s *Synthesizer) { s.url = endpoint }
}

// WithBlobStore keeps synthesized lessons in blobs. Without one the audio
// is handed back inline as a data URL.
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(s *Synthesizer) { s.blobs = blobs }
}

func WithTextToSpeechOptions(opts ...texttospeech.TextToSpeechOption) Option {
	return func(s *Synthesizer) {
		for _, opt := range opts {
			opt(&s.options)
		}
	}
}

func NewSynthesizer(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	s := &Synthesizer{
		apiKey:  apiKey,
		voice:   defaultVoice,
		url:     DefaultURL,
		dialer:  &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		options: texttospeech.NewOptions(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !slices.Contains(GetAvailableVoices(), s.voice) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVoice, s.voice)
	}
	if s.options.EncodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported encoding %s", s.options.EncodingInfo.Format.Name())
	}
	return s, nil
}

// GenerateAudio synthesizes script and stores the result as a WAV file.
func (s *Synthesizer) GenerateAudio(ctx context.Context, script string) (playback.SynthesizedAudio, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech", trace.WithAttributes(
		attribute.String("deepgram.voice", string(s.voice)),
		attribute.Int("deepgram.script_length", len(script)),
	))
	defer span.End()

	synthesized, err := s.generateAudio(ctx, script)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return playback.SynthesizedAudio{}, err
	}
	span.SetAttributes(attribute.Float64("deepgram.duration_seconds", synthesized.DurationSeconds))
	return synthesized, nil
}

func (s *Synthesizer) generateAudio(ctx context.Context, script string) (playback.SynthesizedAudio, error) {
	pieces := texttospeech.SplitText(script, maxSpeakChars)
	if len(pieces) == 0 {
		return playback.SynthesizedAudio{}, ErrEmptyScript
	}

	pcm, err := s.synthesize(ctx, pieces)
	if err != nil {
		return playback.SynthesizedAudio{}, err
	}
	if len(pcm) == 0 {
		return playback.SynthesizedAudio{}, ErrNoAudio
	}

	info := s.options.EncodingInfo
	wav, err := audio.EncodeWAV(pcm, info)
	if err != nil {
		return playback.SynthesizedAudio{}, fmt.Errorf("failed to encode lesson audio: %w", err)
	}

	playableURL, err := s.store(ctx, wav)
	if err != nil {
		return playback.SynthesizedAudio{}, err
	}

	return playback.SynthesizedAudio{
		PlayableURL:     playableURL,
		DurationSeconds: info.Duration(len(pcm)),
	}, nil
}

func (s *Synthesizer) store(ctx context.Context, wav []byte) (string, error) {
	if s.blobs == nil {
		return audio.DataURL(wav), nil
	}

	key := storage.NewKey(storage.PrefixLessons, "audio/wav", s.now())
	playableURL, err := s.blobs.Put(ctx, key, "audio/wav", wav)
	if err != nil {
		return "", fmt.Errorf("failed to store lesson audio: %w", err)
	}
	return playableURL, nil
}

// synthesize sends the pieces one at a time and waits for each flush before
// sending the next, since text sent right after a flush can get dropped.
func (s *Synthesizer) synthesize(ctx context.Context, pieces []string) ([]byte, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// a blocked read only notices cancellation through its deadline
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	var pcm bytes.Buffer
	for _, piece := range pieces {
		if err := conn.WriteJSON(sendTextMsg(piece)); err != nil {
			return nil, fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
		}
		if err := conn.WriteJSON(flushMsg); err != nil {
			return nil, fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
		}
		if err := s.readUntilFlushed(conn, &pcm); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		s.options.SpeechMarkCallback(piece)
	}

	if err := conn.WriteJSON(closeMsg); err != nil {
		logger.Warn("failed to send close message to deepgram websocket", "error", err)
	}
	return pcm.Bytes(), nil
}

func (s *Synthesizer) connect(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}

	info := s.options.EncodingInfo
	urlValues := url.Values{}
	urlValues.Set("encoding", info.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(info.SampleRate))
	urlValues.Set("model", string(s.voice))
	urlValues.Set("container", "none")
	endpoint.RawQuery = urlValues.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, endpoint.String(), http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to deepgram (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (s *Synthesizer) readUntilFlushed(conn *websocket.Conn, pcm *bytes.Buffer) error {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read error: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			pcm.Write(msg)
			s.options.SpeechAudioCallback(msg)
		case websocket.TextMessage:
			var parsed serverMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				logger.Warn("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsed.Type {
			case msgFlushed:
				return nil
			case msgWarning:
				logger.Warn("deepgram warning", "description", parsed.Description)
			case msgError:
				message := parsed.Description
				if message == "" {
					message = parsed.ErrMsg
				}
				return &APIError{Code: parsed.ErrCode, Message: message}
			case msgMetadata, msgCleared:
			default:
				logger.Debug("unknown deepgram message", "type", parsed.Type)
			}
		}
	}
}
