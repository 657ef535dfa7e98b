// Package deepgram transcribes spoken uploads with Deepgram's streaming
// listen endpoint so recorded lectures can be ingested like documents.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/cognitive-os/core/audio"
	"github.com/koscakluka/cognitive-os/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL   = "wss://api.deepgram.com/v1/listen"
	DefaultModel = "nova-3"

	// transcriptionSampleRate is what uploaded recordings are resampled to
	// before streaming.
	transcriptionSampleRate = 16000
	chunkDuration           = 100 * time.Millisecond
	handshakeTimeout        = 10 * time.Second
)

// ContentTypes lists the upload types a Transcriber handles.
var ContentTypes = []string{"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"}

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrNoSpeech      = errors.New("no speech recognised in recording")
)

// Transcriber opens one websocket per call and can be shared.
type Transcriber struct {
	apiKey string
	url    string
	model  string
	dialer *websocket.Dialer
	logger *slog.Logger
}

type Option func(*Transcriber)

// WithURL points the transcriber at another listen endpoint.
func WithURL(endpoint string) Option {
	return func(t *Transcriber) { t.url = endpoint }
}

func WithModel(model string) Option {
	return func(t *Transcriber) {
		if model != "" {
			t.model = model
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transcriber) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTranscriber(apiKey string, opts ...Option) *Transcriber {
	t := &Transcriber{
		apiKey: apiKey,
		url:    DefaultURL,
		model:  DefaultModel,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ExtractText transcribes a 16-bit PCM WAV recording.
func (t *Transcriber) ExtractText(ctx context.Context, name, contentType string, data []byte) (string, error) {
	track, err := audio.DecodeWAV(data)
	if err != nil {
		return "", fmt.Errorf("failed to read recording %s: %w", name, err)
	}

	frames := int(math.Round(track.Duration() * transcriptionSampleRate))
	pcm := make([]byte, frames*2)
	track.RenderBytes(pcm, transcriptionSampleRate)

	return t.Transcribe(ctx, pcm, speechtotext.WithEncodingInfo(audio.EncodingInfo{
		SampleRate: transcriptionSampleRate,
		Channels:   1,
		Format:     audio.EncodingLinear16,
	}))
}

// Transcribe streams raw audio to Deepgram and returns every final segment
// joined into one text.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe recording", trace.WithAttributes(
		attribute.Int("transcription.audio_bytes", len(pcm)),
	))
	defer span.End()

	transcript, err := t.transcribe(ctx, pcm, speechtotext.NewOptions(opts...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("transcription.text_length", len(transcript)))
	return transcript, nil
}

func (t *Transcriber) transcribe(ctx context.Context, pcm []byte, options speechtotext.TranscriptionOptions) (string, error) {
	if t.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return "", err
	}

	conn, err := t.connect(ctx, encoding, options.Language)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	// results are read while audio is still being sent
	done := make(chan error, 1)
	go func() { done <- sendAudio(conn, pcm, chunkSize(options.EncodingInfo)) }()

	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return "", fmt.Errorf("failed to read deepgram websocket message: %w", err)
			}
			break
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		segment, err := parseSegment(msg)
		if err != nil {
			t.logger.Warn("failed to parse deepgram message", "error", err)
			continue
		}
		if segment == "" {
			continue
		}
		segments = append(segments, segment)
		if options.PartialTranscriptionCallback != nil {
			options.PartialTranscriptionCallback(segment)
		}
	}

	if err := <-done; err != nil {
		return "", err
	}
	transcript := strings.Join(segments, " ")
	if transcript == "" {
		return "", ErrNoSpeech
	}
	return transcript, nil
}

func (t *Transcriber) connect(ctx context.Context, encoding *encodingInfo, language string) (*websocket.Conn, error) {
	listenURL, err := url.Parse(t.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram listen url: %w", err)
	}
	query := listenURL.Query()
	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("channels", strconv.Itoa(encoding.Channels))
	query.Set("model", t.model)
	query.Set("language", language)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	listenURL.RawQuery = query.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, listenURL.String(), http.Header{"Authorization": {"Token " + t.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to deepgram (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// sendAudio writes pcm in realtime sized chunks and asks the server to
// finish once everything is sent.
func sendAudio(conn *websocket.Conn, pcm []byte, size int) error {
	for start := 0; start < len(pcm); start += size {
		end := min(start+size, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func chunkSize(info audio.EncodingInfo) int {
	frames := int(float64(info.SampleRate) * chunkDuration.Seconds())
	return max(frames*info.BytesPerFrame(), 1)
}

// parseSegment returns the transcript of a final Results message and an
// empty string for everything else.
func parseSegment(msg []byte) (string, error) {
	var parsed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return "", err
	}
	if api.TypeResponse(parsed.Type) != api.TypeMessageResponse {
		return "", nil
	}

	var result api.MessageResponse
	if err := json.Unmarshal(msg, &result); err != nil {
		return "", err
	}
	if !result.IsFinal || len(result.Channel.Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Channel.Alternatives[0].Transcript), nil
}
