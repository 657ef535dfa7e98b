package local

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/koscakluka/cognitive-os/core/audio"
)

func TestPutWritesUnderRoot(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	location, err := store.Put(context.Background(), "lessons/2025/03/14/a.wav", "audio/wav", []byte("RIFF"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	parsed, err := url.Parse(location)
	if err != nil || parsed.Scheme != "file" {
		t.Fatalf("expected a file url, got %q (%v)", location, err)
	}
	data, err := os.ReadFile(filepath.FromSlash(parsed.Path))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if string(data) != "RIFF" {
		t.Fatalf("unexpected blob content %q", data)
	}
}

func TestPutRejectsEscapingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := store.Put(context.Background(), "../outside.wav", "audio/wav", []byte("x")); err == nil {
		t.Fatalf("expected key outside the root to be rejected")
	}
}

func TestStoredAudioIsPlayable(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	pcm := make([]byte, 2*audio.DefaultSampleRate)
	wav, err := audio.EncodeWAV(pcm, audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Channels: 1, Format: audio.EncodingLinear16})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	location, err := store.Put(context.Background(), "lessons/one.wav", "audio/wav", wav)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := audio.Fetch(context.Background(), location)
	if err != nil {
		t.Fatalf("fetch stored audio: %v", err)
	}
	track, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode stored audio: %v", err)
	}
	if track.Duration() != 1 {
		t.Fatalf("expected 1s track, got %v", track.Duration())
	}
}
