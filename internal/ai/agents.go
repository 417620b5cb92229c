package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/finwire/finwire/internal/storage"
)

// AgentProcessor runs the four generation agents against a local Ollama
// instance. Each agent is one Generate call that must answer with JSON;
// replies with surrounding chatter are salvaged by extracting the outermost
// JSON object.
type AgentProcessor struct {
	client *api.Client
	config *storage.Config
}

// ReporterDraft is the reporter agent's output: a working draft assembled
// from recent source articles.
type ReporterDraft struct {
	Headline  string   `json:"headline"`
	Body      string   `json:"body"`
	KeyPoints []string `json:"key_points"`
}

// EditorResult is the editor agent's output: the publishable article.
type EditorResult struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Summary  string `json:"summary"`
}

// DesignerBrief is the designer agent's output: an illustration brief for
// downstream image generation.
type DesignerBrief struct {
	Prompt  string   `json:"prompt"`
	AltText string   `json:"alt_text"`
	Style   string   `json:"style"`
	Palette []string `json:"palette"`
}

// SocialPost is one entry in the marketer's distribution copy.
type SocialPost struct {
	Platform string `json:"platform"`
	Text     string `json:"text"`
}

// MarketerResult is the marketer agent's output.
type MarketerResult struct {
	Headlines []string     `json:"headlines"`
	Posts     []SocialPost `json:"posts"`
}

// sourceItem is the per-article view rendered into the reporter prompt.
type sourceItem struct {
	Title    string
	Summary  string
	Tickers  string
	Entities string
}

// NewAgentProcessor creates a processor talking to the configured Ollama
// base URL.
func NewAgentProcessor(cfg *storage.Config) (*AgentProcessor, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		// If env-based client fails, create one with the base URL
		parsedURL, parseErr := url.Parse(cfg.Ollama.BaseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", parseErr)
		}
		client = api.NewClient(parsedURL, nil)
	}

	return &AgentProcessor{client: client, config: cfg}, nil
}

// generate runs one non-streaming Generate call and returns the full reply.
func (p *AgentProcessor) generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: new(bool), // false
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}

	var fullResponse strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		fullResponse.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	return fullResponse.String(), nil
}

// Report drafts an article from the given source articles.
func (p *AgentProcessor) Report(ctx context.Context, model string, articles []storage.Article) (*ReporterDraft, error) {
	if model == "" {
		model = p.config.Ollama.ReporterModel
	}

	items := make([]sourceItem, len(articles))
	for i, a := range articles {
		summary := a.Summary
		if summary == "" {
			summary = a.Content
		}
		items[i] = sourceItem{
			Title:    a.Title,
			Summary:  truncateText(summary, 500),
			Tickers:  commaList(a.Tickers),
			Entities: commaList(a.Entities),
		}
	}

	tmpl, err := GetPrompt(p.config, PromptTypeReporter)
	if err != nil {
		return nil, err
	}
	prompt, err := ExecutePrompt(tmpl, struct{ Articles []sourceItem }{items})
	if err != nil {
		return nil, err
	}

	response, err := p.generate(ctx, model, prompt, GetTemperature(p.config, PromptTypeReporter))
	if err != nil {
		return nil, fmt.Errorf("ollama reporter call failed: %w", err)
	}

	var draft ReporterDraft
	if err := json.Unmarshal([]byte(extractJSON(response)), &draft); err != nil {
		return nil, fmt.Errorf("reporter returned unparseable draft: %w", err)
	}
	if draft.Headline == "" || draft.Body == "" {
		return nil, fmt.Errorf("reporter draft missing headline or body")
	}
	return &draft, nil
}

// Edit rewrites a draft into the publishable article.
func (p *AgentProcessor) Edit(ctx context.Context, model string, draft *ReporterDraft) (*EditorResult, error) {
	if model == "" {
		model = p.config.Ollama.EditorModel
	}

	tmpl, err := GetPrompt(p.config, PromptTypeEditor)
	if err != nil {
		return nil, err
	}
	prompt, err := ExecutePrompt(tmpl, draft)
	if err != nil {
		return nil, err
	}

	response, err := p.generate(ctx, model, prompt, GetTemperature(p.config, PromptTypeEditor))
	if err != nil {
		return nil, fmt.Errorf("ollama editor call failed: %w", err)
	}

	var result EditorResult
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		// Salvage the draft rather than losing the run to a chatty reply.
		return &EditorResult{
			Headline: draft.Headline,
			Body:     draft.Body,
			Summary:  strings.Join(draft.KeyPoints, " "),
		}, nil
	}
	if result.Headline == "" {
		result.Headline = draft.Headline
	}
	if result.Body == "" {
		result.Body = draft.Body
	}
	return &result, nil
}

// Design produces the illustration brief for an edited article.
func (p *AgentProcessor) Design(ctx context.Context, model string, article *EditorResult) (*DesignerBrief, error) {
	if model == "" {
		model = p.config.Ollama.DesignerModel
	}

	tmpl, err := GetPrompt(p.config, PromptTypeDesigner)
	if err != nil {
		return nil, err
	}
	prompt, err := ExecutePrompt(tmpl, article)
	if err != nil {
		return nil, err
	}

	response, err := p.generate(ctx, model, prompt, GetTemperature(p.config, PromptTypeDesigner))
	if err != nil {
		return nil, fmt.Errorf("ollama designer call failed: %w", err)
	}

	var brief DesignerBrief
	if err := json.Unmarshal([]byte(extractJSON(response)), &brief); err != nil {
		// Conservative default: a plain editorial brief from the headline.
		return &DesignerBrief{
			Prompt:  article.Headline,
			AltText: article.Headline,
			Style:   "editorial",
		}, nil
	}
	return &brief, nil
}

// Market produces headline variants and social posts for an edited article.
func (p *AgentProcessor) Market(ctx context.Context, model string, article *EditorResult) (*MarketerResult, error) {
	if model == "" {
		model = p.config.Ollama.MarketerModel
	}

	tmpl, err := GetPrompt(p.config, PromptTypeMarketer)
	if err != nil {
		return nil, err
	}
	prompt, err := ExecutePrompt(tmpl, article)
	if err != nil {
		return nil, err
	}

	response, err := p.generate(ctx, model, prompt, GetTemperature(p.config, PromptTypeMarketer))
	if err != nil {
		return nil, fmt.Errorf("ollama marketer call failed: %w", err)
	}

	var result MarketerResult
	if err := json.Unmarshal([]byte(extractJSON(response)), &result); err != nil {
		return &MarketerResult{Headlines: []string{article.Headline}}, nil
	}
	if len(result.Headlines) == 0 {
		result.Headlines = []string{article.Headline}
	}
	return &result, nil
}

// truncateText truncates text to maxLen characters
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

// commaList renders a stored JSON string array as "AAPL, MSFT".
func commaList(raw string) string {
	if raw == "" {
		return ""
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return ""
	}
	return strings.Join(items, ", ")
}

// extractJSON attempts to extract JSON from a text response that might contain extra text
func extractJSON(text string) string {
	// Find first { and last }
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
