package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini is a Gateway backed by the Gemini GenerateContent API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, configError("missing API key (set GEMINI_API_KEY or api_key)")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, configError("missing model")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, configError("create gemini client: %v", err)
	}
	return &Gemini{client: client, model: cfg.Model, timeout: timeout}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (Completion, error) {
	system, contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return Completion{}, configError("completion request has no user or assistant messages")
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0)),
		SystemInstruction: system,
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.Schema.Definition
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.model, contents, config)
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return Completion{}, classifyCallError(err, status)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Completion{}, newFailure(FailureMissingContent, errors.New("response has no candidates"))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Completion{}, newFailure(FailureMissingContent, errors.New("first candidate has no text"))
	}
	return parseCompletion(text, req.Schema != nil)
}

// toGeminiContents splits system messages into a single system instruction and maps the
// remaining turns onto Gemini's user/model roles.
func toGeminiContents(msgs []Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	var contents []*genai.Content
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system", "developer":
			systemParts = append(systemParts, m.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	var system *genai.Content
	if len(systemParts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	return system, contents
}
