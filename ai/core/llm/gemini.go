package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

type geminiService struct {
	client   *genai.Client
	model    string
	jsonMode bool
	timeout  time.Duration
}

func newGeminiService(cfg *Config) (*geminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(),
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:   client,
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
		timeout:  cfg.Timeout,
	}, nil
}

func (s *geminiService) Provider() string {
	return "gemini"
}

func (s *geminiService) Chat(ctx context.Context, messages []Message) (string, *CallStats, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if s.jsonMode {
		config.ResponseMIMEType = "application/json"
	}

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", nil, ClassifyError(s.Provider(), err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", nil, &Error{Provider: s.Provider(), Kind: KindRejected, Err: errContentFiltered}
		}
		return "", nil, &Error{Provider: s.Provider(), Kind: KindMalformed, Err: errEmptyResponse}
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}
	if content.Len() == 0 {
		return "", nil, &Error{Provider: s.Provider(), Kind: KindMalformed, Err: errEmptyResponse}
	}

	totalDuration := time.Since(startTime)
	stats := &CallStats{TotalDurationMs: totalDuration.Milliseconds()}
	slog.Debug("LLM: Chat response received",
		"provider", s.Provider(),
		"content_length", content.Len(),
		"duration_ms", totalDuration.Milliseconds(),
	)
	return content.String(), stats, nil
}
