package tokenizer

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestParseHelperTokenOutputLastLineInteger(t *testing.T) {
	count, err := parseHelperTokenOutput("123\n")
	if err != nil {
		t.Fatalf("parseHelperTokenOutput error: %v", err)
	}
	if count != 123 {
		t.Fatalf("expected 123 tokens, got %d", count)
	}
}

func TestParseHelperTokenOutputIgnoresPrefixedNoise(t *testing.T) {
	output := "Installed 14 packages in 20ms\n567\n"
	count, err := parseHelperTokenOutput(output)
	if err != nil {
		t.Fatalf("parseHelperTokenOutput error: %v", err)
	}
	if count != 567 {
		t.Fatalf("expected 567 tokens, got %d", count)
	}
}

func TestParseHelperTokenOutputEmpty(t *testing.T) {
	_, err := parseHelperTokenOutput("   \n  \n")
	if err == nil {
		t.Fatalf("expected error for empty output")
	}
	if err.Error() != "token helper returned empty output" {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestParseHelperTokenOutputInvalid(t *testing.T) {
	_, err := parseHelperTokenOutput("installed successfully\nno count")
	if err == nil {
		t.Fatalf("expected error for invalid output")
	}
	if err.Error() != "unexpected token helper output: \"installed successfully\\nno count\"" {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestCommandEstimatorRunsHelper(t *testing.T) {
	shellPath, lookupError := exec.LookPath("sh")
	if lookupError != nil {
		t.Skip("sh not available")
	}
	estimator, err := NewEstimator(Config{Command: []string{shellPath, "-c", "cat >/dev/null; echo 42"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewEstimator error: %v", err)
	}
	tokens, err := estimator.Estimate(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Estimate error: %v", err)
	}
	if tokens != 42 {
		t.Fatalf("expected 42 tokens, got %d", tokens)
	}
}

func TestCommandEstimatorFailure(t *testing.T) {
	shellPath, lookupError := exec.LookPath("sh")
	if lookupError != nil {
		t.Skip("sh not available")
	}
	estimator, _ := NewEstimator(Config{Command: []string{shellPath, "-c", "exit 3"}})
	if _, err := estimator.Estimate(context.Background(), "text"); err == nil {
		t.Fatalf("expected failing helper to report an error")
	}
}
