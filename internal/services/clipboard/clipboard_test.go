package clipboard

import (
	"errors"
	"testing"
)

func TestCopyReportsUnsupportedClipboard(t *testing.T) {
	service := &Service{
		unsupported: func() bool { return true },
		write: func(string) error {
			t.Fatalf("write must not run without clipboard support")
			return nil
		},
	}
	if err := service.Copy("digest"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestCopyWrapsWriteFailures(t *testing.T) {
	writeFailure := errors.New("xclip exited with status 1")
	var written string
	service := &Service{
		unsupported: func() bool { return false },
		write: func(text string) error {
			written = text
			return writeFailure
		},
	}
	err := service.Copy("digest")
	if !errors.Is(err, writeFailure) {
		t.Fatalf("expected wrapped write failure, got %v", err)
	}
	if written != "digest" {
		t.Fatalf("expected text to reach the clipboard writer, got %q", written)
	}
}
