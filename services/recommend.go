package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
)

// ErrTooFewItems is rejected before the gate is even attempted.
var ErrTooFewItems = errors.New("select at least two items for a recommendation")

// SelectionItem is one chosen wardrobe item for a recommendation attempt.
type SelectionItem struct {
	ID       string
	Category string
	ImageKey string
}

type RecommendationRequest struct {
	Items       []SelectionItem
	Style       string
	Temperature *float64
}

type RecommendationResult struct {
	Analysis *OutfitAnalysis
	// FromCache distinguishes "served from cache" from "freshly computed";
	// a cache hit does not consume the rate limit.
	FromCache   bool
	Fingerprint string
	Model       string
}

// ItemImageFetcher resolves a stored object key to an inline provider blob.
// Fetch failures abort the whole attempt: the blobs are shared by every model
// in the chain, so retrying per model cannot help.
type ItemImageFetcher interface {
	FetchItemImage(ctx context.Context, objectKey string) (ImageBlob, error)
}

// RecommendationOrchestrator coordinates one session's recommendation flow:
// gate, fingerprint, cache, provider chain, decode, persistable result. One
// instance per owner session; its gate and cache are not shared.
type RecommendationOrchestrator struct {
	Gate    *RequestGate
	Cache   *AnalysisCache
	Chain   *StylistChain
	Fetcher ItemImageFetcher
}

func NewRecommendationOrchestrator(provider OutfitStylistProvider, fetcher ItemImageFetcher) *RecommendationOrchestrator {
	return &RecommendationOrchestrator{
		Gate:    NewRequestGate(),
		Cache:   NewAnalysisCache(),
		Chain:   NewStylistChain(provider),
		Fetcher: fetcher,
	}
}

func selectionIDs(items []SelectionItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func buildStylistPrompt(req RecommendationRequest) string {
	var b strings.Builder
	b.WriteString("Rate this outfit. Selected items in photo order:")
	for _, item := range req.Items {
		fmt.Fprintf(&b, " %s (%s),", item.ID, item.Category)
	}
	fmt.Fprintf(&b, " preferred style: %s.", req.Style)
	if req.Temperature != nil {
		fmt.Fprintf(&b, " Current outdoor temperature: %.0f C.", *req.Temperature)
	}
	return b.String()
}

// GetRecommendation runs one coordinated attempt. The cache is consulted
// before the gate, so an identical repeat is served from cache even while the
// cooldown is running and never consumes the rate limit. The lease is released
// on every path; the cooldown is armed only after a fresh successful result.
func (o *RecommendationOrchestrator) GetRecommendation(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	if len(req.Items) < 2 {
		return nil, ErrTooFewItems
	}

	fingerprint := BuildFingerprint(selectionIDs(req.Items), req.Style, req.Temperature)
	if cached, ok := o.Cache.Get(fingerprint); ok {
		fmt.Printf("[Stylist] Cache hit for %s\n", fingerprint)
		return &RecommendationResult{Analysis: cached, FromCache: true, Fingerprint: fingerprint}, nil
	}

	lease, err := o.Gate.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	images := make([]ImageBlob, 0, len(req.Items))
	for _, item := range req.Items {
		blob, err := o.Fetcher.FetchItemImage(ctx, item.ImageKey)
		if err != nil {
			sentry.CaptureException(fmt.Errorf("[Stylist] failed to fetch item image %s: %w", item.ImageKey, err))
			return nil, fmt.Errorf("failed to fetch item image %s: %w", item.ImageKey, err)
		}
		images = append(images, blob)
	}

	resp, model, err := o.Chain.Invoke(ctx, images, buildStylistPrompt(req))
	if err != nil {
		return nil, err
	}

	analysis, err := DecodeModelJSON[OutfitAnalysis](resp.Response)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Stylist] failed to decode %s response: %w", model.String(), err))
		return nil, err
	}
	analysis.SelectedItems = make([]SelectedRef, 0, len(req.Items))
	for _, item := range req.Items {
		analysis.SelectedItems = append(analysis.SelectedItems, SelectedRef{ID: item.ID, Category: item.Category})
	}

	o.Cache.Put(fingerprint, analysis)
	o.Gate.ArmCooldown()
	fmt.Printf("[Stylist] Fresh analysis for %s via %s, cooldown armed\n", fingerprint, model.String())

	return &RecommendationResult{Analysis: analysis, FromCache: false, Fingerprint: fingerprint, Model: model.String()}, nil
}

// OrchestratorRegistry hands out one orchestrator per owner session. Gate and
// cache state stay private to that owner; the persistence store is the only
// resource shared across sessions.
type OrchestratorRegistry struct {
	mu       sync.Mutex
	sessions map[uint]*RecommendationOrchestrator

	provider OutfitStylistProvider
	fetcher  ItemImageFetcher
}

func NewOrchestratorRegistry(provider OutfitStylistProvider, fetcher ItemImageFetcher) *OrchestratorRegistry {
	return &OrchestratorRegistry{
		sessions: map[uint]*RecommendationOrchestrator{},
		provider: provider,
		fetcher:  fetcher,
	}
}

func (r *OrchestratorRegistry) ForOwner(ownerID uint) *RecommendationOrchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.sessions[ownerID]; ok {
		return o
	}
	o := NewRecommendationOrchestrator(r.provider, r.fetcher)
	r.sessions[ownerID] = o
	return o
}

// Drop tears a session down, e.g. on sign-out, so no cooldown state leaks to
// the next session of the same owner.
func (r *OrchestratorRegistry) Drop(ownerID uint) {
	r.mu.Lock()
	delete(r.sessions, ownerID)
	r.mu.Unlock()
}
