// Package backend streams text generations from LLM providers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"AskKit/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "AskKit/internal/backend"

// Message is one turn of a conversation. Role is models.RoleUser or
// models.RoleModel; providers map it to their own vocabulary.
type Message struct {
	Role string
	Text string
}

// TextGenParams is everything a provider needs to stream a reply
type TextGenParams struct {
	Model    string
	APIKey   string
	Messages []Message
}

// Endpoints holds provider base URLs
type Endpoints struct {
	Gemini    string `toml:"gemini"`
	OpenAI    string `toml:"openai"`
	Groq      string `toml:"groq"`
	Anthropic string `toml:"anthropic"`
	Ollama    string `toml:"ollama"`
}

// DefaultEndpoints returns the public provider URLs
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Gemini:    "https://generativelanguage.googleapis.com/v1beta",
		OpenAI:    "https://api.openai.com/v1",
		Groq:      "https://api.groq.com/openai/v1",
		Anthropic: "https://api.anthropic.com/v1",
		Ollama:    "http://localhost:11434",
	}
}

// TextStreamer starts a streamed generation
type TextStreamer interface {
	StreamText(ctx context.Context, provider models.AgentProvider, params TextGenParams) (*Stream, error)
}

// Client talks to every supported provider over HTTP
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	chunks     metric.Int64Counter
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	endpoints  Endpoints
	tracer     trace.Tracer
	meter      metric.Meter
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithEndpoints overrides provider base URLs
func WithEndpoints(e Endpoints) Option {
	return func(o *clientOptions) { o.endpoints = e }
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *clientOptions) { o.tracer = t }
}

// WithMeter sets the meter
func WithMeter(m metric.Meter) Option {
	return func(o *clientOptions) { o.meter = m }
}

// NewClient creates a provider client
func NewClient(logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	o := clientOptions{
		// no overall timeout: streams stay open as long as the provider writes
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
		}},
		endpoints: DefaultEndpoints(),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	duration, err := o.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	chunks, err := o.meter.Int64Counter(
		"llm.chunks",
		metric.WithDescription("Streamed text chunks received from providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk counter: %w", err)
	}

	return &Client{
		httpClient: o.httpClient,
		endpoints:  o.endpoints,
		logger:     logger,
		tracer:     o.tracer,
		duration:   duration,
		chunks:     chunks,
	}, nil
}

// StreamText sends the request for provider and returns the reply stream.
// Errors before the first byte of the body (bad status, transport failure)
// are returned here; later ones surface from Stream.Recv.
func (c *Client) StreamText(ctx context.Context, provider models.AgentProvider, params TextGenParams) (*Stream, error) {
	var req *http.Request
	var decode decoderFunc
	var err error

	switch provider {
	case models.ProviderGemini:
		req, err = c.geminiRequest(ctx, params)
		decode = decodeGemini
	case models.ProviderOpenAI:
		req, err = c.openAIRequest(ctx, c.endpoints.OpenAI, params, nil)
		decode = decodeOpenAI
	case models.ProviderGroq:
		includeReasoning := false
		req, err = c.openAIRequest(ctx, c.endpoints.Groq, params, &includeReasoning)
		decode = decodeOpenAI
	case models.ProviderAnthropic:
		req, err = c.anthropicRequest(ctx, params)
		decode = decodeAnthropic
	case models.ProviderOllama:
		req, err = c.ollamaRequest(ctx, params)
		decode = decodeOllama
	default:
		return nil, models.NewAppError(models.KindInvalidAgentProvider, fmt.Errorf("unsupported provider %q", provider))
	}
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(attribute.String("provider", string(provider)))
	spanCtx, span := c.tracer.Start(ctx, string(provider)+"_api_call",
		trace.WithAttributes(
			attribute.String("provider", string(provider)),
			attribute.String("model", params.Model),
			attribute.Int("messages", len(params.Messages)),
		))
	req = req.WithContext(spanCtx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.duration.Record(spanCtx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		err = requestError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		err := models.NewAppError(models.KindHTTPStatusCode,
			fmt.Errorf("API error: %s - %s", resp.Status, bytes.TrimSpace(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	c.logger.Debug("provider stream opened", "provider", provider, "model", params.Model, "status", resp.StatusCode)

	return newStream(resp.Body, decode, span, func() {
		c.chunks.Add(spanCtx, 1, attrs)
	}), nil
}

func (c *Client) newJSONRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, models.NewAppError(models.KindHTTPRequest, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func requestError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.NewAppError(models.KindHTTPTimeout, fmt.Errorf("failed to send request: %w", err))
	}
	return models.NewAppError(models.KindHTTPRequest, fmt.Errorf("failed to send request: %w", err))
}
