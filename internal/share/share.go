// Package share writes the QR code printed next to an exported greeting so
// the recipient can open the hosted, interactive version.
package share

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of the written code.
const DefaultSize = 512

// ErrNoURL is returned when there is nothing to encode.
var ErrNoURL = errors.New("share: empty url")

// Path returns the QR file written alongside the video at output:
// "out/greeting.mp4" becomes "out/greeting_qr.png".
func Path(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_qr.png"
}

// WriteQR encodes url as a PNG QR code of size pixels at path.
func WriteQR(url, path string, size int) error {
	if url == "" {
		return ErrNoURL
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.WriteFile(url, qrcode.Medium, size, path)
}
