package gcs

import "testing"

func TestPublicURL(t *testing.T) {
	store := NewWithClient(nil, "lessons-bucket", "")
	if got := store.PublicURL("lessons/a.wav"); got != "https://storage.googleapis.com/lessons-bucket/lessons/a.wav" {
		t.Fatalf("unexpected default url %q", got)
	}

	cdn := NewWithClient(nil, "lessons-bucket", "https://cdn.example.com/")
	if got := cdn.PublicURL("lessons/a.wav"); got != "https://cdn.example.com/lessons/a.wav" {
		t.Fatalf("unexpected cdn url %q", got)
	}

	if err := cdn.Close(); err != nil {
		t.Fatalf("closing a borrowed client should be a no-op: %v", err)
	}
}
