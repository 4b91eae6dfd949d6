// Package clipboard copies rendered digests to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported reports that no clipboard utility is available on this system.
var ErrUnsupported = errors.New("system clipboard is not available")

const errorWriteClipboardFormat = "writing %d bytes to clipboard: %w"

// Copier copies a digest to the clipboard.
type Copier interface {
	Copy(text string) error
}

// Service is the Copier backed by the platform clipboard utilities.
type Service struct {
	unsupported func() bool
	write       func(string) error
}

// NewService creates a Service for the current platform.
func NewService() *Service {
	return &Service{
		unsupported: func() bool { return clipboard.Unsupported },
		write:       clipboard.WriteAll,
	}
}

// Copy writes text to the clipboard. It fails with ErrUnsupported on systems without
// a clipboard utility, such as headless Linux without xclip, xsel, or wl-copy.
func (service *Service) Copy(text string) error {
	if service.unsupported() {
		return ErrUnsupported
	}
	if writeError := service.write(text); writeError != nil {
		return fmt.Errorf(errorWriteClipboardFormat, len(text), writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)
