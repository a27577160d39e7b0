package x11

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/1broseidon/swa/internal/platform"
)

// The clipboard goes through atotto/clipboard, which drives xclip, xsel
// or wl-clipboard. Only text is exchanged.

var (
	readClipboard  = clipboard.ReadAll
	writeClipboard = clipboard.WriteAll
)

func (d *Display) Clipboard() (platform.DataOffer, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("clipboard: %w", platform.ErrUnsupported)
	}
	text, err := readClipboard()
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	return platform.TextData(text), nil
}

func (d *Display) SetClipboard(src platform.DataSource) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: %w", platform.ErrUnsupported)
	}
	data, err := textFrom(src)
	if err != nil {
		return err
	}
	if err := writeClipboard(string(data)); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// textFrom picks the first text format src offers.
func textFrom(src platform.DataSource) ([]byte, error) {
	for _, f := range src.Formats() {
		switch f {
		case "text/plain;charset=utf-8", "text/plain", "UTF8_STRING", "STRING", "TEXT":
			return src.Data(f)
		}
	}
	return nil, fmt.Errorf("clipboard offers no text format: %w", platform.ErrUnsupported)
}
