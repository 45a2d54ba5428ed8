package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI backend model to use for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

// ImageBlob is an item photo already transcoded to the provider's inline
// encoding. Blobs are prepared once per request and reused across fallback
// models.
type ImageBlob struct {
	MIMEType string
	Data     []byte
}

type LLMResponse struct {
	Response           string `json:"response"`
	InputTokenCount    int32  `json:"input_token_count"`
	Thoughts           string `json:"thoughts"`
	ThoughtsTokenCount int32  `json:"thoughts_token_count"`
	OutputTokenCount   int32  `json:"output_token_count"`
	TotalTokenCount    int32  `json:"total_token_count"`
	IsTest             bool   `json:"is_test"`
}

// OutfitStylistProvider is the boundary to the generative AI collaborator. Its
// errors must carry enough text for ClassifyProviderError to tell transient
// model failures from fatal auth/quota/policy ones.
type OutfitStylistProvider interface {
	AnalyzeOutfit(ctx context.Context, images []ImageBlob, prompt string, model LLMModelName) (*LLMResponse, error)
	DescribeItem(ctx context.Context, image ImageBlob, model LLMModelName) (*LLMResponse, error)
}

// OutfitAnalysis is the structured recommendation result, immutable once
// decoded from the provider payload.
type OutfitAnalysis struct {
	CompatibilityScore    int           `json:"compatibility_score"`
	ColorHarmony          ColorHarmony  `json:"color_harmony"`
	StyleConsistencyScore int           `json:"style_consistency_score"`
	Advice                string        `json:"advice"`
	Suggestions           []string      `json:"suggestions"`
	SelectedItems         []SelectedRef `json:"selected_items"`
}

type ColorHarmony struct {
	Score               int      `json:"score"`
	Description         string   `json:"description"`
	ComplementaryColors []string `json:"complementary_colors"`
}

type SelectedRef struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// ItemDescription is the wire shape of the worker's auto-categorization call.
type ItemDescription struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Colors   []string `json:"colors"`
}

const outfitSystemInstruction = `You are a professional fashion stylist. You receive photos of clothing items the user selected as one outfit. Evaluate how well they work together. Return ONLY a JSON object with fields: compatibility_score (integer 1-10), color_harmony {score (integer 1-10), description (string), complementary_colors (array of color name strings)}, style_consistency_score (integer 1-10), advice (string, short actionable), suggestions (array of short strings, most important first). No markdown, no prose around the JSON.`

const describeItemInstruction = `You receive a photo of a single clothing item on white background. Return ONLY a JSON object: name (short item name), category (one of: top, bottom, outer, shoes, accessory), colors (array of dominant color names). No markdown.`

type GoogleStylistProvider struct{}

func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

func inlineParts(images []ImageBlob, prompt string) []*genai.Part {
	var parts []*genai.Part
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: img.MIMEType,
				Data:     img.Data,
			},
		})
	}
	if prompt != "" {
		parts = append(parts, &genai.Part{Text: prompt})
	}
	return parts
}

func (GoogleStylistProvider) AnalyzeOutfit(ctx context.Context, images []ImageBlob, prompt string, model LLMModelName) (*LLMResponse, error) {
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Models.GenerateContent(ctx, model.String(), []*genai.Content{{Parts: inlineParts(images, prompt)}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 8000,
		Temperature:     floatPointer(0.8),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: outfitSystemInstruction},
			},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, err
	}
	return readStylistResult(result)
}

func (GoogleStylistProvider) DescribeItem(ctx context.Context, image ImageBlob, model LLMModelName) (*LLMResponse, error) {
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Models.GenerateContent(ctx, model.String(), []*genai.Content{{Parts: inlineParts([]ImageBlob{image}, "")}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 2000,
		Temperature:     floatPointer(0.4),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: describeItemInstruction},
			},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, err
	}
	return readStylistResult(result)
}

func readStylistResult(result *genai.GenerateContentResponse) (*LLMResponse, error) {
	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	var thinkingContent string
	for _, c := range result.Candidates {
		fmt.Println("Finish reason: ", c.FinishReason, " Finish message: ", c.FinishMessage)
		for _, rating := range c.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content violation: blocked by safety setting %s", rating.Category)
			}
		}
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingContent = part.Text
			}
		}
	}

	var inputTokenCount, thoughtsTokenCount, outputTokenCount, totalTokenCount int32
	if result.UsageMetadata != nil {
		inputTokenCount = result.UsageMetadata.PromptTokenCount
		thoughtsTokenCount = result.UsageMetadata.ThoughtsTokenCount
		outputTokenCount = result.UsageMetadata.CandidatesTokenCount
		totalTokenCount = result.UsageMetadata.TotalTokenCount
		fmt.Println("Input token count:", inputTokenCount)
		fmt.Println("Output token count:", outputTokenCount)
		fmt.Println("Thoughts token count:", thoughtsTokenCount)
		fmt.Println("Total token count:", totalTokenCount)
	} else {
		fmt.Println("UsageMetadata is nil!")
	}

	return &LLMResponse{
		Response:           strings.TrimSpace(result.Text()),
		Thoughts:           thinkingContent,
		InputTokenCount:    inputTokenCount,
		ThoughtsTokenCount: thoughtsTokenCount,
		OutputTokenCount:   outputTokenCount,
		TotalTokenCount:    totalTokenCount,
		IsTest:             false,
	}, nil
}
