package tokenizer

import (
	"context"
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

type tiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (estimator tiktokenEstimator) Name() string {
	return estimator.name
}

func (estimator tiktokenEstimator) Estimate(ctx context.Context, text string) (int, error) {
	if estimator.encoding == nil {
		return 0, errors.New("nil tiktoken encoder")
	}
	if contextError := ctx.Err(); contextError != nil {
		return 0, contextError
	}
	tokenIDs := estimator.encoding.Encode(text, nil, nil)
	return len(tokenIDs), nil
}
