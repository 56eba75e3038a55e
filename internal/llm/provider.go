package llm

import (
	"context"
	"fmt"

	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
)

// variant captures what differs between backends
type variant struct {
	endpoint string
	headers  map[string]string
	jsonMode bool
}

var variants = map[domain.ProviderKind]variant{
	domain.ProviderOpenAI: {
		endpoint: "https://api.openai.com/v1/chat/completions",
		jsonMode: true,
	},
	domain.ProviderOpenRouter: {
		endpoint: "https://openrouter.ai/api/v1/chat/completions",
		headers: map[string]string{
			"HTTP-Referer": "https://github.com/JR-coderli/SmartPdfRename",
			"X-Title":      "Smart PDF Rename",
		},
	},
	domain.ProviderGemini: {
		endpoint: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		jsonMode: true,
	},
}

// VisionExtractor implements domain.Extractor over one chat backend
type VisionExtractor struct {
	kind   domain.ProviderKind
	client *ChatClient
	logger *observability.Logger
}

// NewExtractor builds the extractor for kind. It never touches the network
// and succeeds even when the credential is absent; Extract reports that.
func NewExtractor(kind domain.ProviderKind, cfg config.ProviderConfig, logger *observability.Logger) (*VisionExtractor, error) {
	return newExtractor(kind, cfg, nil, logger)
}

func newExtractor(kind domain.ProviderKind, cfg config.ProviderConfig, retry *RetryPolicy, logger *observability.Logger) (*VisionExtractor, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("unknown provider %q", kind), nil)
	}
	if cfg.APIKeyEnv == "" {
		return nil, domain.ConfigError(fmt.Sprintf("provider %s has no api_key_env", kind), nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}

	endpoint := v.endpoint
	if cfg.BaseURL != "" {
		endpoint = cfg.BaseURL
	}

	log := logger.With().Str("provider", string(kind)).Str("model", cfg.Model).Logger()

	client := NewChatClient(ChatClientConfig{
		Endpoint:  endpoint,
		Model:     cfg.Model,
		APIKeyEnv: cfg.APIKeyEnv,
		Headers:   v.headers,
		JSONMode:  v.jsonMode,
		Timeout:   cfg.Timeout,
		Retry:     retry,
	}, log)

	return &VisionExtractor{kind: kind, client: client, logger: log}, nil
}

// Name identifies the backend and model
func (e *VisionExtractor) Name() string {
	return string(e.kind) + "/" + e.client.Model()
}

// Kind returns the backend variant
func (e *VisionExtractor) Kind() domain.ProviderKind {
	return e.kind
}

// Extract submits image and parses the reply into invoice fields
func (e *VisionExtractor) Extract(ctx context.Context, image []byte) (*domain.InvoiceFields, error) {
	if len(image) == 0 {
		return nil, domain.ValidationError("image is empty", nil)
	}

	content, err := e.client.Complete(ctx, image, buildPrompt())
	if err != nil {
		return nil, err
	}

	fields, err := ParseFields(content)
	if err != nil {
		e.logger.Debug().Str("payload", truncate(content, 200)).Msg("Unparseable reply")
		return nil, err
	}

	return fields, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ domain.Extractor = (*VisionExtractor)(nil)
