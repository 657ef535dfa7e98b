package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxSourceSize bounds how much audio a single Fetch will read.
const maxSourceSize = 256 << 20

var ErrUnsupportedSource = errors.New("unsupported audio source")

var httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

// Fetch reads the bytes behind a playable URL: file://, http(s):// or a
// base64 data: URL.
func Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch audio")
	defer span.End()

	data, err := fetch(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("audio.size", len(data)))
	return data, nil
}

func fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audio url: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio file: %w", err)
		}
		return data, nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating HTTP request: %w", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error fetching audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("non-OK HTTP status fetching audio: %s", resp.Status)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
		if err != nil {
			return nil, fmt.Errorf("error reading audio body: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
}

func decodeDataURL(rawURL string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", ErrUnsupportedSource)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data url is not base64", ErrUnsupportedSource)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	return data, nil
}

// DataURL encodes WAV bytes as a data: URL.
func DataURL(wav []byte) string {
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)
}
