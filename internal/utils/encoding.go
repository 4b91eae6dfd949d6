package utils

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8ByteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// DecodeText decodes file content with the fallback chain UTF-8, UTF-16 (with a
// byte order mark), Windows-1252. It reports false when no encoding yields clean text.
func DecodeText(data []byte) (string, bool) {
	if bytes.HasPrefix(data, utf8ByteOrderMark) {
		withoutMark := data[len(utf8ByteOrderMark):]
		if utf8.Valid(withoutMark) {
			return string(withoutMark), true
		}
		return "", false
	}
	if bytes.HasPrefix(data, utf16LittleEndianMark) || bytes.HasPrefix(data, utf16BigEndianMark) {
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
	}
	if utf8.Valid(data) {
		return string(data), true
	}
	return decodeWith(charmap.Windows1252, data)
}

func decodeWith(textEncoding encoding.Encoding, data []byte) (string, bool) {
	decoded, decodeError := textEncoding.NewDecoder().Bytes(data)
	if decodeError != nil {
		return "", false
	}
	text := string(decoded)
	if strings.ContainsRune(text, utf8.RuneError) || containsC1Control(text) {
		return "", false
	}
	return text, true
}

func containsC1Control(text string) bool {
	for _, character := range text {
		if character >= 0x80 && character <= 0x9f {
			return true
		}
	}
	return false
}
