package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAnalysis = `{
	"compatibility_score": 8,
	"color_harmony": {"score": 7, "description": "works well", "complementary_colors": ["navy"]},
	"style_consistency_score": 9,
	"advice": "add a belt",
	"suggestions": ["white sneakers"]
}`

type stubFetcher struct {
	err     error
	fetched []string
}

func (f *stubFetcher) FetchItemImage(ctx context.Context, objectKey string) (ImageBlob, error) {
	f.fetched = append(f.fetched, objectKey)
	if f.err != nil {
		return ImageBlob{}, f.err
	}
	return ImageBlob{MIMEType: "image/png", Data: []byte(objectKey)}, nil
}

func twoItems() []SelectionItem {
	return []SelectionItem{
		{ID: "1", Category: "top", ImageKey: "wardrobe/1/shirt.png"},
		{ID: "2", Category: "bottom", ImageKey: "wardrobe/1/jeans.png"},
	}
}

func TestOrchestratorFreshResult(t *testing.T) {
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	fetcher := &stubFetcher{}
	orch := NewRecommendationOrchestrator(provider, fetcher)

	res, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "gemini-2.5-pro", res.Model)
	assert.Equal(t, "1|2|casual|none", res.Fingerprint)
	assert.Equal(t, 8, res.Analysis.CompatibilityScore)
	require.Len(t, res.Analysis.SelectedItems, 2)
	assert.Equal(t, SelectedRef{ID: "1", Category: "top"}, res.Analysis.SelectedItems[0])
	assert.Equal(t, []string{"wardrobe/1/shirt.png", "wardrobe/1/jeans.png"}, fetcher.fetched)
	// fresh success arms the 30s window
	assert.Equal(t, 30, orch.Gate.RemainingCooldownSeconds())
}

func TestOrchestratorCacheShortCircuit(t *testing.T) {
	now := time.Now()
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})
	orch.Gate = NewRequestGateWithClock(func() time.Time { return now })

	req := RecommendationRequest{Items: twoItems(), Style: "casual"}
	first, err := orch.GetRecommendation(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	now = now.Add(CooldownWindow + time.Second)

	// same selection again, provider must not be consulted a second time
	second, err := orch.GetRecommendation(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Len(t, provider.calls, 1)
	// a cache hit does not re-arm the cooldown
	assert.Equal(t, 0, orch.Gate.RemainingCooldownSeconds())
}

func TestOrchestratorCacheServedDuringCooldown(t *testing.T) {
	now := time.Now()
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})
	orch.Gate = NewRequestGateWithClock(func() time.Time { return now })

	req := RecommendationRequest{Items: twoItems(), Style: "casual"}
	first, err := orch.GetRecommendation(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.Equal(t, 30, orch.Gate.RemainingCooldownSeconds())

	now = now.Add(time.Second)

	// an identical repeat inside the window is served from cache, it never
	// consumes the rate limit and never re-arms the window
	second, err := orch.GetRecommendation(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Len(t, provider.calls, 1)
	assert.Equal(t, 29, orch.Gate.RemainingCooldownSeconds())
}

func TestOrchestratorCacheIgnoresSelectionOrder(t *testing.T) {
	now := time.Now()
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})
	orch.Gate = NewRequestGateWithClock(func() time.Time { return now })

	items := twoItems()
	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: items, Style: "casual"})
	require.NoError(t, err)

	now = now.Add(CooldownWindow + time.Second)

	reversed := []SelectionItem{items[1], items[0]}
	res, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: reversed, Style: "casual"})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, provider.calls, 1)
}

func TestOrchestratorTooFewItems(t *testing.T) {
	provider := &scriptedProvider{}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})

	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{
		Items: []SelectionItem{{ID: "1", Category: "top", ImageKey: "k"}},
		Style: "casual",
	})
	assert.ErrorIs(t, err, ErrTooFewItems)
	assert.Empty(t, provider.calls)
	// rejected before the gate, so no lease was ever held
	lease, err := orch.Gate.TryAcquire()
	require.NoError(t, err)
	lease.Release()
}

func TestOrchestratorInFlightRejected(t *testing.T) {
	orch := NewRecommendationOrchestrator(&scriptedProvider{}, &stubFetcher{})

	lease, err := orch.Gate.TryAcquire()
	require.NoError(t, err)
	defer lease.Release()

	_, err = orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	assert.ErrorIs(t, err, ErrAlreadyInFlight)
}

func TestOrchestratorCooldownBlocksFreshAttempt(t *testing.T) {
	now := time.Now()
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})
	orch.Gate = NewRequestGateWithClock(func() time.Time { return now })

	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	require.NoError(t, err)

	now = now.Add(10 * time.Second)

	// a different selection cannot hit the cache, so the gate applies
	other := []SelectionItem{
		{ID: "3", Category: "top", ImageKey: "a"},
		{ID: "4", Category: "bottom", ImageKey: "b"},
	}
	_, err = orch.GetRecommendation(context.Background(), RecommendationRequest{Items: other, Style: "casual"})
	var cooldownErr *CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, 20*time.Second, cooldownErr.Remaining)
	assert.Len(t, provider.calls, 1)
}

func TestOrchestratorFetchFailureReleasesLease(t *testing.T) {
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: sampleAnalysis}}
	fetcher := &stubFetcher{err: errors.New("object not found")}
	orch := NewRecommendationOrchestrator(provider, fetcher)

	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	require.Error(t, err)
	assert.Empty(t, provider.calls)
	// failure leaves no cooldown, immediate retry is allowed
	assert.Equal(t, 0, orch.Gate.RemainingCooldownSeconds())

	fetcher.err = nil
	res, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestOrchestratorDecodeFailureNoCooldown(t *testing.T) {
	provider := &scriptedProvider{responses: map[LLMModelName]string{Pro25: "not a json object at all"}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})

	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, orch.Gate.RemainingCooldownSeconds())

	provider.responses[Pro25] = sampleAnalysis
	res, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestOrchestratorExhaustedChainNoCooldown(t *testing.T) {
	provider := &scriptedProvider{errors: map[LLMModelName]error{
		Pro25:       errors.New("503 overloaded"),
		Flash25:     errors.New("503 overloaded"),
		FlashLite25: errors.New("503 overloaded"),
		Flash20:     errors.New("503 overloaded"),
	}}
	orch := NewRecommendationOrchestrator(provider, &stubFetcher{})

	_, err := orch.GetRecommendation(context.Background(), RecommendationRequest{Items: twoItems(), Style: "casual"})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 0, orch.Gate.RemainingCooldownSeconds())
}

func TestRegistryPerOwnerSessions(t *testing.T) {
	registry := NewOrchestratorRegistry(&scriptedProvider{}, &stubFetcher{})

	first := registry.ForOwner(1)
	assert.Same(t, first, registry.ForOwner(1))
	assert.NotSame(t, first, registry.ForOwner(2))

	registry.Drop(1)
	assert.NotSame(t, first, registry.ForOwner(1))
}
