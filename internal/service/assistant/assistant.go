// Package assistant answers chat questions from uploaded review text using
// the configured language model providers.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/review-dashboard/internal/prompt"
	"github.com/kapu/review-dashboard/internal/util"
	"github.com/kapu/review-dashboard/pkg/errors"
	"go.uber.org/zap"
)

// Fixed answers of the chat endpoint.
const (
	NoContextAnswer = "Please upload a product review file first."
	FailureAnswer   = "Something went wrong calling the assistant."
)

const (
	systemPrompt     = prompt.ReviewSystemPrompt
	failureThreshold = 3
	resetTimeout     = 2 * time.Minute
	maxQuestionRunes = 500
)

type guardedProvider struct {
	provider Provider
	breaker  *util.CircuitBreaker
}

// Assistant tries providers in order, skipping any whose circuit is open.
type Assistant struct {
	providers []guardedProvider
	logger    *zap.Logger
}

// New builds an assistant. Nil providers are ignored, so optional ones can
// be passed directly.
func New(logger *zap.Logger, providers ...Provider) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assistant{logger: logger}
	for _, p := range providers {
		if p == nil || isNilProvider(p) {
			continue
		}
		a.providers = append(a.providers, guardedProvider{
			provider: p,
			breaker:  util.NewCircuitBreaker(p.Name(), failureThreshold, resetTimeout, logger),
		})
	}
	return a
}

func isNilProvider(p Provider) bool {
	switch v := p.(type) {
	case *OpenAIProvider:
		return v == nil
	case *GeminiProvider:
		return v == nil
	}
	return false
}

// Providers lists provider names in the order they are tried.
func (a *Assistant) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.provider.Name())
	}
	return names
}

// Status reports each provider's circuit state.
func (a *Assistant) Status() map[string]string {
	out := make(map[string]string, len(a.providers))
	for _, p := range a.providers {
		out[p.provider.Name()] = p.breaker.State().String()
	}
	return out
}

// Answer replies to question from reviewsText. Without review text it
// returns NoContextAnswer and no error.
func (a *Assistant) Answer(ctx context.Context, reviewsText, question string) (string, error) {
	if strings.TrimSpace(reviewsText) == "" {
		return NoContextAnswer, nil
	}
	question = util.TruncateString(strings.TrimSpace(question), maxQuestionRunes)
	text, err := prompt.BuildReviewQuestion(prompt.ReviewQuestionData{Reviews: reviewsText, Question: question})
	if err != nil {
		return "", errors.NewServiceError("failed to build prompt", "assistant", "answer", err)
	}

	var lastErr error
	for _, p := range a.providers {
		name := p.provider.Name()
		if !p.breaker.CanExecute() {
			a.logger.Warn("Provider skipped, circuit open", zap.String("provider", name))
			continue
		}

		answer, err := p.provider.Complete(ctx, systemPrompt, text)
		if err == nil && strings.TrimSpace(answer) != "" {
			p.breaker.RecordSuccess()
			return strings.TrimSpace(answer), nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned an empty answer", name)
		}
		p.breaker.RecordFailure()
		lastErr = err
		a.logger.Warn("Provider failed, trying next",
			zap.String("provider", name),
			zap.Error(err),
		)
	}

	if lastErr == nil {
		return "", errors.NewServiceError("no assistant provider available", "assistant", "answer", nil)
	}
	return "", errors.NewServiceError("all assistant providers failed", "assistant", "answer", lastErr)
}
