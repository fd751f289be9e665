package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/theimaginaryfoundation/browse-o-bot/history/fileutils"
)

// OpenAIConfig configures an OpenAI-compatible chat completions backend
// (OpenAI itself, LM Studio, vLLM, Ollama's /v1 shim, ...).
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient is optional; tests inject httptest clients here.
	HTTPClient *http.Client
}

// OpenAI is a Gateway backed by the chat completions API.
type OpenAI struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	endpoint string
}

// NewOpenAI validates cfg and builds the client. Missing credentials, endpoint, or model
// are configuration errors.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, configError("missing API key (set OPENAI_API_KEY or api_key)")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, configError("missing API base URL (set OPENAI_BASE_URL or base_url)")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, configError("missing model")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := NormalizeBaseURL(cfg.BaseURL)
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
		// Retry policy belongs to the caller (see WithRetry).
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	return &OpenAI{
		client:   &client,
		model:    cfg.Model,
		timeout:  timeout,
		endpoint: base + "chat/completions",
	}, nil
}

// NormalizeBaseURL makes sure the base URL ends in the versioned API root ("/v1/").
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

// ChatEndpoint is the fully resolved chat completions URL.
func (g *OpenAI) ChatEndpoint() string { return g.endpoint }

func (g *OpenAI) Complete(ctx context.Context, req Request) (Completion, error) {
	if len(req.Messages) == 0 {
		return Completion{}, configError("completion request has no messages")
	}

	params := openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(0),
	}
	if req.Schema != nil {
		jsonSchema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   schemaName(req.Schema),
			Schema: req.Schema.Definition,
		}
		if req.Schema.Strict {
			jsonSchema.Strict = openai.Bool(true)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return Completion{}, classifyCallError(err, status)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, newFailure(FailureMissingContent, errors.New("response has no choices"))
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Completion{}, newFailure(FailureMissingContent, errors.New("first choice has no message content"))
	}
	return parseCompletion(content, req.Schema != nil)
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system", "developer":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// parseCompletion turns raw model text into a Completion.
func parseCompletion(content string, structured bool) (Completion, error) {
	if !structured {
		return Completion{Text: strings.TrimSpace(content)}, nil
	}
	var data map[string]any
	if err := fileutils.DecodeModelJSON(content, &data); err != nil {
		return Completion{}, newFailure(FailureMalformedOutput,
			fmt.Errorf("%w (model_output_prefix=%q)", err, fileutils.Truncate(content, 500)))
	}
	if data == nil {
		return Completion{}, newFailure(FailureMalformedOutput, errors.New("model output is JSON null"))
	}
	return Completion{Data: data}, nil
}

func schemaName(s *Schema) string {
	if s.Name != "" {
		return s.Name
	}
	return "response_schema"
}
