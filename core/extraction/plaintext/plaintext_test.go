package plaintext

import (
	"context"
	"errors"
	"testing"
)

func TestExtractText(t *testing.T) {
	text, err := New().ExtractText(context.Background(), "notes.txt", "text/plain", []byte("\xEF\xBB\xBFline one\r\nline two\r\n"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "line one\nline two" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractTextRejectsBinary(t *testing.T) {
	_, err := New().ExtractText(context.Background(), "notes.txt", "text/plain", []byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, ErrNotUTF8) {
		t.Fatalf("expected ErrNotUTF8, got %v", err)
	}
}
