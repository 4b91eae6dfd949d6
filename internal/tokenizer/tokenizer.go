// Package tokenizer estimates how many language-model tokens a digest costs.
package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/temirov/ingest/internal/types"
)

// Estimator estimates token counts for text. Any error means the estimate is unavailable.
type Estimator interface {
	Name() string
	Estimate(ctx context.Context, text string) (int, error)
}

// Config captures estimator selection parameters.
type Config struct {
	Model string
	// Command, when set, delegates estimation to an external process that reads the
	// text on stdin and prints the token count as its last output line.
	Command []string
	Timeout time.Duration
}

const (
	// DefaultModel is the model whose encoding is used when none is configured.
	DefaultModel         = "gpt-4o"
	defaultEncodingName  = "cl100k_base"
	defaultHelperTimeout = 120 * time.Second

	errorInitializeEncodingFormat = "initialize tokenizer %s: %w"
)

var openAIModelPrefixes = []string{
	"gpt-",
	"o1",
	"o3",
	"text-embedding",
	"davinci",
	"curie",
	"babbage",
	"ada",
	"code-",
}

// NewEstimator returns an Estimator for cfg. Models without a known encoding fall back
// to cl100k_base.
func NewEstimator(cfg Config) (Estimator, error) {
	if len(cfg.Command) > 0 {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHelperTimeout
		}
		return commandEstimator{command: cfg.Command, timeout: timeout}, nil
	}

	model := strings.ToLower(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = DefaultModel
	}
	if isOpenAIModel(model) {
		encoding, encodingError := tiktoken.EncodingForModel(model)
		if encodingError == nil && encoding != nil {
			return tiktokenEstimator{encoding: encoding, name: model}, nil
		}
	}
	fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, fmt.Errorf(errorInitializeEncodingFormat, defaultEncodingName, fallbackError)
	}
	return tiktokenEstimator{encoding: fallback, name: defaultEncodingName}, nil
}

func isOpenAIModel(model string) bool {
	for _, prefix := range openAIModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Unavailable is the estimator used when token counting is disabled or failed to start.
type Unavailable struct {
	Cause error
}

// Name identifies the estimator.
func (Unavailable) Name() string {
	return "unavailable"
}

// Estimate always fails with types.ErrTokenEstimationUnavailable.
func (estimator Unavailable) Estimate(context.Context, string) (int, error) {
	if estimator.Cause != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrTokenEstimationUnavailable, estimator.Cause)
	}
	return 0, types.ErrTokenEstimationUnavailable
}
