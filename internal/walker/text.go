package walker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// ErrBinary is returned by ReadText for files that look like binary data.
var ErrBinary = errors.New("binary file")

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 8000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadText reads path and decodes it to UTF-8. Files that are already valid
// UTF-8 are returned as is; anything else goes through charset detection.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// DecodeText is ReadText for content already in memory.
func DecodeText(data []byte) (string, error) {
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return "", ErrBinary
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, name, _ := charset.DetermineEncoding(data, "")
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", name, err)
	}
	return string(out), nil
}
