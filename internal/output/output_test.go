package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/temirov/ingest/internal/output"
	"github.com/temirov/ingest/internal/types"
)

func sampleArtifact() types.DigestArtifact {
	tokens := 1200
	return types.DigestArtifact{
		Source:      "https://github.com/acme/widgets",
		Ref:         "main",
		Fingerprint: "0123abcd",
		CreatedAt:   time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
		Summary:     "Repository: acme/widgets\nFiles analyzed: 1\nEstimated tokens: 1.2k\n",
		Tree:        "Directory structure:\n└── widgets/\n    └── main.go\n",
		Content:     "================================================\nFILE: main.go\n================================================\npackage main\n",
		Stats:       types.DigestStats{FilesAnalyzed: 1, TotalSize: 13, EstimatedTokens: &tokens},
	}
}

func TestRenderRawJoinsSections(t *testing.T) {
	artifact := sampleArtifact()
	var buffer bytes.Buffer
	if err := output.Render(&buffer, artifact, types.FormatRaw); err != nil {
		t.Fatalf("render raw: %v", err)
	}
	if buffer.String() != artifact.Text() {
		t.Fatalf("unexpected raw output:\n%s", buffer.String())
	}
	if !strings.HasPrefix(buffer.String(), artifact.Summary+"\n"+artifact.Tree) {
		t.Fatalf("summary must precede tree:\n%s", buffer.String())
	}
}

func TestRenderJSONKeepsStats(t *testing.T) {
	rendered, err := output.RenderBytes(sampleArtifact(), types.FormatJSON)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(rendered, &decoded); err != nil {
		t.Fatalf("decode json: %v\n%s", err, rendered)
	}
	stats, ok := decoded["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats missing: %s", rendered)
	}
	if stats["estimatedTokens"] != float64(1200) {
		t.Fatalf("expected numeric token count, got %v", stats["estimatedTokens"])
	}
	if decoded["fingerprint"] != "0123abcd" {
		t.Fatalf("unexpected fingerprint %v", decoded["fingerprint"])
	}
	if !strings.Contains(string(rendered), "└── widgets/") {
		t.Fatalf("tree glyphs must not be escaped: %s", rendered)
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	if _, err := output.RenderBytes(sampleArtifact(), "xml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
