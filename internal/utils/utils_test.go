package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/ingest/internal/utils"
)

// textFileName defines the name of the text file used in tests.
const textFileName = "sample.txt"

// TestRelativePathOrSelf verifies relative path calculations.
func TestRelativePathOrSelf(testingInstance *testing.T) {
	temporaryRoot := testingInstance.TempDir()
	nestedPath := filepath.Join(temporaryRoot, "nested", textFileName)
	if mkdirError := os.MkdirAll(filepath.Dir(nestedPath), 0o755); mkdirError != nil {
		testingInstance.Fatalf("failed to create directory: %v", mkdirError)
	}
	if creationError := os.WriteFile(nestedPath, []byte("content"), 0o600); creationError != nil {
		testingInstance.Fatalf("failed to create file: %v", creationError)
	}
	testCases := []struct {
		testName string
		fullPath string
		expected string
	}{
		{testName: "root path returns dot", fullPath: temporaryRoot, expected: "."},
		{testName: "nested path uses slashes", fullPath: nestedPath, expected: "nested/" + textFileName},
	}
	for index, testCase := range testCases {
		actual := utils.RelativePathOrSelf(testCase.fullPath, temporaryRoot)
		if actual != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %s, got %s", index, testCase.testName, testCase.expected, actual)
		}
	}
}

// TestJoinRelative verifies root handling when joining relative paths.
func TestJoinRelative(testingInstance *testing.T) {
	if joined := utils.JoinRelative("", "a"); joined != "a" {
		testingInstance.Errorf("expected a, got %s", joined)
	}
	if joined := utils.JoinRelative(".", "a"); joined != "a" {
		testingInstance.Errorf("expected a, got %s", joined)
	}
	if joined := utils.JoinRelative("x/y", "a"); joined != "x/y/a" {
		testingInstance.Errorf("expected x/y/a, got %s", joined)
	}
}

// TestIsWithin verifies containment checks used for symlink safety.
func TestIsWithin(testingInstance *testing.T) {
	root := filepath.Join(string(filepath.Separator), "workspace", "repo")
	testCases := []struct {
		testName  string
		candidate string
		expected  bool
	}{
		{testName: "same directory", candidate: root, expected: true},
		{testName: "child", candidate: filepath.Join(root, "src"), expected: true},
		{testName: "sibling with shared prefix", candidate: root + "-other", expected: false},
		{testName: "parent", candidate: filepath.Dir(root), expected: false},
	}
	for index, testCase := range testCases {
		if actual := utils.IsWithin(root, testCase.candidate); actual != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %t, got %t", index, testCase.testName, testCase.expected, actual)
		}
	}
}

// TestIsBinary verifies detection of binary data in byte slices.
func TestIsBinary(testingInstance *testing.T) {
	testCases := []struct {
		testName string
		data     []byte
		expected bool
	}{
		{testName: "utf8 text", data: []byte("hello"), expected: false},
		{testName: "null byte", data: []byte{'a', 0x00, 'b'}, expected: true},
		{testName: "latin1 text", data: []byte("caf\xe9 au lait"), expected: false},
		{testName: "control heavy", data: []byte{0x01, 0x02, 0x03, 'a', 0x04}, expected: true},
		{testName: "utf16 with mark", data: []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}, expected: false},
		{testName: "empty slice", data: []byte{}, expected: false},
		{testName: "null past sample", data: append([]byte(strings.Repeat("a", utils.SniffLength)), 0x00), expected: false},
	}
	for index, testCase := range testCases {
		actual := utils.IsBinary(testCase.data)
		if actual != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %t, got %t", index, testCase.testName, testCase.expected, actual)
		}
	}
}

// TestDecodeText verifies the encoding fallback chain.
func TestDecodeText(testingInstance *testing.T) {
	testCases := []struct {
		testName   string
		data       []byte
		expected   string
		decodeable bool
	}{
		{testName: "utf8", data: []byte("héllo"), expected: "héllo", decodeable: true},
		{testName: "utf8 with mark", data: []byte("\xEF\xBB\xBFhi"), expected: "hi", decodeable: true},
		{testName: "utf16 little endian", data: []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}, expected: "hi", decodeable: true},
		{testName: "utf16 big endian", data: []byte{0xFE, 0xFF, 0x00, 'h', 0x00, 'i'}, expected: "hi", decodeable: true},
		{testName: "windows1252", data: []byte("caf\xe9 \x93quoted\x94"), expected: "café “quoted”", decodeable: true},
		{testName: "undefined windows1252 byte", data: []byte("bad \x81 byte"), decodeable: false},
		{testName: "broken utf8 after mark", data: []byte("\xEF\xBB\xBF\xff"), decodeable: false},
	}
	for index, testCase := range testCases {
		decoded, decodeable := utils.DecodeText(testCase.data)
		if decodeable != testCase.decodeable {
			testingInstance.Errorf("case %d (%s): expected decodeable=%t, got %t", index, testCase.testName, testCase.decodeable, decodeable)
			continue
		}
		if decodeable && decoded != testCase.expected {
			testingInstance.Errorf("case %d (%s): expected %q, got %q", index, testCase.testName, testCase.expected, decoded)
		}
	}
}
