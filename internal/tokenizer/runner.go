package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type commandEstimator struct {
	command []string
	timeout time.Duration
}

func (estimator commandEstimator) Name() string {
	return strings.Join(estimator.command, " ")
}

func (estimator commandEstimator) Estimate(ctx context.Context, text string) (int, error) {
	if len(estimator.command) == 0 || strings.TrimSpace(estimator.command[0]) == "" {
		return 0, errors.New("token helper command not configured")
	}

	helperContext, cancel := context.WithTimeout(ctx, estimator.timeout)
	defer cancel()

	// #nosec G204
	command := exec.CommandContext(helperContext, estimator.command[0], estimator.command[1:]...)
	command.Stdin = strings.NewReader(text)

	outputBytes, runError := command.Output()
	if errors.Is(helperContext.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("token helper timeout: %w", helperContext.Err())
	}
	if runError != nil {
		return 0, fmt.Errorf("token helper error: %w", runError)
	}
	return parseHelperTokenOutput(string(outputBytes))
}

// parseHelperTokenOutput reads the token count from the last non-empty output line,
// tolerating installer noise printed before it.
func parseHelperTokenOutput(output string) (int, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return 0, errors.New("token helper returned empty output")
	}
	lines := strings.Split(trimmed, "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	tokenCount, parseError := strconv.Atoi(lastLine)
	if parseError != nil || tokenCount < 0 {
		return 0, fmt.Errorf("unexpected token helper output: %q", trimmed)
	}
	return tokenCount, nil
}
