/*
Package ai produces short one-line summaries of support-program announcements
with the Gemini API.
*/
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/shanehull/grantwatch/internal/types"
)

const DefaultModel = "gemini-2.5-flash"

// Summarizer returns a one-line summary of an announcement.
type Summarizer interface {
	Summarize(ctx context.Context, a types.Announcement) (string, error)
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

func NewGeminiSummarizer(ctx context.Context, cfg GeminiConfig) (*GeminiSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.Client,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiSummarizer{client: client, model: cfg.Model}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, a types.Announcement) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(buildPrompt(a), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    getResponseSchema(),
		})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseSummary(resp.Text())
}

func parseSummary(respText string) (string, error) {
	var out summaryResponse
	if err := json.Unmarshal([]byte(respText), &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal gemini JSON response: %w. Raw text: %s", err, respText)
	}
	summary := strings.Join(strings.Fields(out.Summary), " ")
	if summary == "" {
		return "", errors.New("gemini returned an empty summary")
	}
	return summary, nil
}

func getResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "One Korean sentence saying who can apply and what support is offered.",
			},
		},
		Required: []string{"summary"},
	}
}
