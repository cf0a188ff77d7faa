package procedures

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
)

const (
	signaturePrefix  = "data:image/png;base64,"
	maxSignatureSize = 512 * 1024
)

// decodeSignature validates a PNG data URL from the signature pad and returns
// the image bytes.
func decodeSignature(dataURL string) ([]byte, error) {
	dataURL = strings.TrimSpace(dataURL)
	if !strings.HasPrefix(dataURL, signaturePrefix) {
		return nil, ErrInvalidSignature
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, signaturePrefix))
	if err != nil || len(raw) == 0 || len(raw) > maxSignatureSize {
		return nil, ErrInvalidSignature
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, ErrInvalidSignature
	}

	return raw, nil
}
