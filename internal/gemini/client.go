// Package gemini implements a client for the Google Generative Language API.
// It is the service's embedding and completion provider.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/lexvault/lexvault/internal/config"
	"github.com/lexvault/lexvault/internal/observability"
)

// ProviderError is an error returned by the Gemini API. Transient errors
// (rate limits, server errors, transport failures) are retried by callers;
// terminal errors are not.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gemini: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("gemini: %s", e.Message)
}

// IsTransient reports whether err is a retryable provider failure
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	// An open breaker means the provider is already known to be failing;
	// callers treat it like any other transient outage.
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// HistoryMessage is one prior turn supplied to a chat completion
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the Generative Language API over HTTP
type Client struct {
	cfg        config.GeminiConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     observability.Logger
}

// NewClient creates a Gemini client. The API key is required; everything else
// has defaults from config.
func NewClient(cfg config.GeminiConfig, logger observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: cfg.CircuitBreaker.MaxHalfOpen,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		breaker:    breaker,
		logger:     logger.WithPrefix("gemini"),
	}, nil
}

// Request/response shapes for the embedContent endpoint

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Request/response shapes for the generateContent endpoint

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// EmbedText returns the embedding vector for text. Failures are classified
// for the caller's retry policy; this method itself never retries.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{
		Model:   "models/" + c.cfg.EmbeddingModel,
		Content: content{Parts: []part{{Text: text}}},
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.cfg.BaseURL, c.cfg.EmbeddingModel)

	var resp embedResponse
	if err := c.post(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, &ProviderError{Message: "embedding response contained no values", Transient: true}
	}
	return resp.Embedding.Values, nil
}

// DefaultChatSystemPrompt is used when a conversation supplies no override
const DefaultChatSystemPrompt = `You are an expert legal AI assistant. You answer questions about legal documents using ONLY the provided context.

CRITICAL RULES:
1. Base your answers ONLY on the provided context chunks. Do not make up information.
2. When referencing information, cite the source using [Source: chunk_index] format.
3. If the context doesn't contain enough information to answer, say so clearly.
4. Use precise legal terminology when appropriate.
5. Structure your responses with clear headings and bullet points when helpful.
6. Always highlight potential risks, caveats, or areas requiring professional legal review.

DISCLAIMER: Always remind users that AI-generated legal analysis is not a substitute for professional legal advice.`

// ChatWithContext answers question using the retrieval context and prior
// conversation history. An empty context sends the question alone.
func (c *Client) ChatWithContext(ctx context.Context, question, ragContext string, history []HistoryMessage, systemPrompt string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultChatSystemPrompt
	}

	contents := primingTurns(systemPrompt)
	for _, msg := range history {
		role := "model"
		if msg.Role == "user" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}

	prompt := question
	if ragContext != "" {
		prompt = fmt.Sprintf("Context from legal documents:\n\n%s\n\n---\n\nUser question: %s", ragContext, question)
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})

	return c.generate(ctx, contents)
}

// GenerateWithPrompt runs a one-shot completion with an explicit system prompt,
// used by the legal tools.
func (c *Client) GenerateWithPrompt(ctx context.Context, systemPrompt, userInput, ragContext string) (string, error) {
	contents := primingTurns(systemPrompt)

	prompt := fmt.Sprintf("User input: %s", userInput)
	if ragContext != "" {
		prompt = fmt.Sprintf("Relevant legal document context:\n\n%s\n\n---\n\nUser input: %s", ragContext, userInput)
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})

	return c.generate(ctx, contents)
}

// primingTurns encodes the system prompt as an initial user/model exchange
// so it works with models that lack a dedicated system role.
func primingTurns(systemPrompt string) []content {
	return []content{
		{Role: "user", Parts: []part{{Text: "System instruction: " + systemPrompt}}},
		{Role: "model", Parts: []part{{Text: "Understood. I will follow these instructions carefully."}}},
	}
}

func (c *Client) generate(ctx context.Context, contents []content) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.ChatModel)

	var resp generateResponse
	if err := c.post(ctx, url, generateRequest{Contents: contents}, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Message: "completion response contained no candidates", Transient: true}
	}

	var b bytes.Buffer
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// post sends one API request through the circuit breaker and decodes the
// response into out.
func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failure: DNS, timeout, connection reset.
			return nil, &ProviderError{Message: err.Error(), Transient: true}
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ProviderError{Message: "failed to read response body: " + err.Error(), Transient: true}
		}

		if resp.StatusCode != http.StatusOK {
			return nil, classifyHTTPError(resp.StatusCode, raw)
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "failed to decode response: " + err.Error(), Transient: false}
		}
		return nil, nil
	})
	return err
}

// classifyHTTPError maps an API error response to a ProviderError. 429 and
// 5xx are transient; everything else is terminal.
func classifyHTTPError(status int, raw []byte) *ProviderError {
	msg := http.StatusText(status)
	var decoded apiError
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		msg = decoded.Error.Message
	}
	return &ProviderError{
		StatusCode: status,
		Message:    msg,
		Transient:  status == http.StatusTooManyRequests || status >= 500,
	}
}
