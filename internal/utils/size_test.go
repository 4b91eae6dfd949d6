package utils_test

import (
	"testing"

	"github.com/temirov/ingest/internal/utils"
)

func TestFormatFileSize(t *testing.T) {
	testCases := map[int64]string{
		-1:                     "0b",
		0:                      "0b",
		512:                    "512b",
		1023:                   "1023b",
		1024:                   "1kb",
		1536:                   "1.5kb",
		10 * 1024 * 1024:       "10mb",
		10*1024*1024 + 1:       "10mb",
		500 * 1024 * 1024:      "500mb",
		3 * 1024 * 1024 * 1024: "3gb",
	}
	for byteCount, expected := range testCases {
		if formatted := utils.FormatFileSize(byteCount); formatted != expected {
			t.Fatalf("FormatFileSize(%d): expected %s, got %s", byteCount, expected, formatted)
		}
	}
}
