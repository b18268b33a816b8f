package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/itish2003/therapybot/models"
)

// Generator produces a structured reply for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt models.Prompt) (Reply, error)
}

// GenerationConfig holds the fixed sampling settings of the chat model.
type GenerationConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// GeminiGenerator sends one single-shot GenerateContent call per prompt: no
// tools, no streaming.
type GeminiGenerator struct {
	client *genai.Client
	cfg    GenerationConfig
}

// NewGeminiGenerator creates a Gemini API client. It does not contact the API;
// a bad key surfaces on the first Generate call.
func NewGeminiGenerator(ctx context.Context, apiKey string, cfg GenerationConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, cfg: cfg}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt models.Prompt) (Reply, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt.User), &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(prompt.System),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens:   g.cfg.MaxOutputTokens,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("gemini api call failed: %w", err)
	}

	reply := replyFromResponse(result)
	log.Debug().Str("component", "generator").Str("raw", reply.Answer).Msg("gemini raw response")
	return reply, nil
}

// replyFromResponse concatenates the text parts of the first candidate into
// the answer, unchanged. No candidates gives an empty Reply.
func replyFromResponse(result *genai.GenerateContentResponse) Reply {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		log.Warn().Str("component", "generator").Msg("gemini returned no candidates")
		return Reply{}
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return Reply{Answer: responseText.String()}
}

func systemInstruction(text string) *genai.Content {
	contents := genai.Text(text)
	if len(contents) == 0 {
		return nil
	}
	return contents[0]
}
