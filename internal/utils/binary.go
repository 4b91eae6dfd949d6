package utils

import "bytes"

// SniffLength defines the maximum number of bytes inspected when detecting binary content.
const SniffLength = 8000

// controlByteRatioLimit is the share of non-text control bytes above which a sample is binary.
const controlByteRatioLimit = 0.3

var (
	utf16LittleEndianMark = []byte{0xFF, 0xFE}
	utf16BigEndianMark    = []byte{0xFE, 0xFF}
)

// IsBinary reports whether the leading SniffLength bytes of data appear to be binary:
// either a NUL byte outside a UTF-16 stream or too many control characters.
func IsBinary(data []byte) bool {
	sample := data
	if len(sample) > SniffLength {
		sample = sample[:SniffLength]
	}
	if len(sample) == 0 {
		return false
	}
	if bytes.HasPrefix(sample, utf16LittleEndianMark) || bytes.HasPrefix(sample, utf16BigEndianMark) {
		return false
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	controlBytes := 0
	for _, byteValue := range sample {
		if isControlByte(byteValue) {
			controlBytes++
		}
	}
	return float64(controlBytes)/float64(len(sample)) > controlByteRatioLimit
}

func isControlByte(byteValue byte) bool {
	switch byteValue {
	case '\t', '\n', '\r', '\f', '\b', 0x1b:
		return false
	}
	return byteValue < 0x20 || byteValue == 0x7f
}
