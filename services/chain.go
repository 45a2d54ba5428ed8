package services

import (
	"context"
	"fmt"
	"strings"
)

// ProviderErrorKind drives the fallback decision: transient failures advance
// to the next model, fatal ones abort the whole chain.
type ProviderErrorKind int

const (
	// ProviderTransient covers model-availability signals; the next model may work.
	ProviderTransient ProviderErrorKind = iota
	// ProviderFatalAuth: the key is bad, no model on this account can help.
	ProviderFatalAuth
	// ProviderFatalQuota: the account is throttled, so are its other models.
	ProviderFatalQuota
	// ProviderFatalPolicy: the content was refused; a different model won't change that.
	ProviderFatalPolicy
	// ProviderOther is recorded as the last error and the chain moves on.
	ProviderOther
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderTransient:
		return "transient"
	case ProviderFatalAuth:
		return "auth"
	case ProviderFatalQuota:
		return "quota"
	case ProviderFatalPolicy:
		return "policy"
	default:
		return "other"
	}
}

type ProviderError struct {
	Kind  ProviderErrorKind
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s error on %s: %v", e.Kind, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ExhaustedError means every model in the chain failed; LastErr is the last
// recorded failure.
type ExhaustedError struct {
	LastErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all stylist models exhausted, last error: %v", e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// ClassifyProviderError maps a raw provider failure onto the fallback
// taxonomy. The GenAI SDK surfaces these as text, same as the "content
// violation" convention used by the Google provider here.
func ClassifyProviderError(err error) ProviderErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "content violation"),
		strings.Contains(msg, "safety"),
		strings.Contains(msg, "prohibited"):
		return ProviderFatalPolicy
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"):
		return ProviderFatalAuth
	case strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"):
		return ProviderFatalQuota
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "503"):
		return ProviderTransient
	}
	return ProviderOther
}

// DefaultFallbackModels is ordered most capable first. First success wins;
// the order is a capability preference, not a quality vote.
var DefaultFallbackModels = []LLMModelName{Pro25, Flash25, FlashLite25, Flash20}

// StylistChain tries models in order until one returns non-empty text.
type StylistChain struct {
	Provider OutfitStylistProvider
	Models   []LLMModelName
}

func NewStylistChain(provider OutfitStylistProvider) *StylistChain {
	return &StylistChain{Provider: provider, Models: DefaultFallbackModels}
}

// Invoke runs the fallback loop. Image blobs were already fetched and
// transcoded by the caller; a blob problem is not retried per model, the same
// blobs are reused for each attempt.
func (chain *StylistChain) Invoke(ctx context.Context, images []ImageBlob, prompt string) (*LLMResponse, LLMModelName, error) {
	var lastErr error
	for _, model := range chain.Models {
		resp, err := chain.Provider.AnalyzeOutfit(ctx, images, prompt, model)
		if err == nil && resp != nil && strings.TrimSpace(resp.Response) != "" {
			return resp, model, nil
		}
		if err == nil {
			// a blank success is a failure, try the next model
			lastErr = &ProviderError{Kind: ProviderOther, Model: model.String(), Err: fmt.Errorf("empty provider response")}
			fmt.Printf("[Stylist] Model %s returned empty response, trying next\n", model.String())
			continue
		}
		kind := ClassifyProviderError(err)
		perr := &ProviderError{Kind: kind, Model: model.String(), Err: err}
		switch kind {
		case ProviderFatalAuth, ProviderFatalQuota, ProviderFatalPolicy:
			fmt.Printf("[Stylist] Fatal %s error on %s, aborting chain: %v\n", kind, model.String(), err)
			return nil, model, perr
		default:
			fmt.Printf("[Stylist] %s error on %s, trying next model: %v\n", kind, model.String(), err)
			lastErr = perr
		}
	}
	return nil, 0, &ExhaustedError{LastErr: lastErr}
}
