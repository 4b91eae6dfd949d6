package utils

import (
	"github.com/dustin/go-humanize"
)

const binaryUnitBase = 1024

var sizeUnitSuffixes = [...]string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize renders a byte count in binary units with lower-case suffixes:
// 512b, 1.5kb, 10mb. Values under ten keep one decimal; negative counts render as 0b.
func FormatFileSize(byteCount int64) string {
	if byteCount <= 0 {
		return "0" + sizeUnitSuffixes[0]
	}
	scaled := float64(byteCount)
	unitIndex := 0
	for scaled >= binaryUnitBase && unitIndex < len(sizeUnitSuffixes)-1 {
		scaled /= binaryUnitBase
		unitIndex++
	}
	precision := 0
	if unitIndex > 0 && scaled < 10 {
		precision = 1
	}
	return humanize.FtoaWithDigits(scaled, precision) + sizeUnitSuffixes[unitIndex]
}
