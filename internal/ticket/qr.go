package ticket

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRPNG renders a ticket code as a PNG QR image for the scanner flow.
func QRPNG(code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("ticket code is empty")
	}
	png, err := qrcode.Encode(code, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket QR: %w", err)
	}
	return png, nil
}
