// Package dispatch implements the unified dispatch client: resolve a
// provider, translate the call through its adapter, drive the transport
// with retry and error classification, and record usage on success.
package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelrelay/modelrelay/internal/llmerr"
	"github.com/modelrelay/modelrelay/services/credentials"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/session"
	"github.com/modelrelay/modelrelay/services/usage"
)

// Config bounds the dispatch client's transports.
type Config struct {
	// RemoteTimeout applies per remote HTTPS request.
	RemoteTimeout time.Duration
	// LocalHTTPTimeout is long because on-device inference can be slow.
	LocalHTTPTimeout time.Duration
	// ProcessTimeout is the hard kill deadline for subprocess calls.
	ProcessTimeout time.Duration
	// MaxRetries bounds total attempts per remote call.
	MaxRetries int
	// BaseDelay scales the linear backoff: delay = BaseDelay * attempt.
	BaseDelay time.Duration
}

// DefaultConfig returns the standard transport bounds.
func DefaultConfig() Config {
	return Config{
		RemoteTimeout:    30 * time.Second,
		LocalHTTPTimeout: 600 * time.Second,
		ProcessTimeout:   300 * time.Second,
		MaxRetries:       3,
		BaseDelay:        1 * time.Second,
	}
}

// CallRequest is one prompt dispatch.
type CallRequest struct {
	ProviderID   string
	Prompt       string
	SystemPrompt string
	// ConversationID enables session continuity on persistent providers.
	ConversationID string
}

// CallResult is a normalized success.
type CallResult struct {
	RequestID    uuid.UUID
	ProviderID   string
	ResponseText string
	// Usage holds explicit backend-reported counts, nil when estimated.
	Usage *providers.TokenUsage
	// Recorded is the provider's daily record after accounting.
	Recorded usage.Record
	// SessionToken is set for persistent providers so the caller can keep
	// it for the next turn.
	SessionToken string
	Latency      time.Duration
}

// Client orchestrates provider dispatch. Safe for concurrent use; calls
// are independent units of work with no ordering between them.
type Client struct {
	registry *providers.Registry
	creds    credentials.Store
	ledger   *usage.Ledger
	sessions *session.Store
	http     *http.Client
	runner   ProcessRunner
	cfg      Config
	logger   *zap.Logger
	sleep    func(time.Duration)
}

// NewClient wires the dispatch client.
func NewClient(
	registry *providers.Registry,
	creds credentials.Store,
	ledger *usage.Ledger,
	sessions *session.Store,
	cfg Config,
	logger *zap.Logger,
) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Client{
		registry: registry,
		creds:    creds,
		ledger:   ledger,
		sessions: sessions,
		http:     &http.Client{},
		runner:   &supervisedRunner{logger: logger},
		cfg:      cfg,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Call dispatches a prompt to a provider and records usage on success.
func (c *Client) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	start := time.Now()
	requestID := uuid.New()

	desc, err := c.registry.Resolve(req.ProviderID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("dispatching call",
		zap.String("request_id", requestID.String()),
		zap.String("provider", desc.ID),
		zap.String("kind", string(desc.Kind)))

	var (
		text         string
		tokens       *providers.TokenUsage
		sessionToken string
	)
	switch desc.Kind {
	case providers.KindRemoteAPI:
		text, tokens, err = c.callRemote(ctx, desc, req)
	case providers.KindLocalHTTP:
		text, tokens, err = c.callLocalHTTP(ctx, desc, req)
	case providers.KindLocalProcess:
		text, tokens, sessionToken, err = c.callLocalProcess(ctx, desc, req)
	default:
		err = llmerr.New(llmerr.KindInternal, "unreachable backend kind", nil)
	}
	if err != nil {
		c.logger.Warn("dispatch failed",
			zap.String("request_id", requestID.String()),
			zap.String("provider", desc.ID),
			zap.String("kind_of_error", string(llmerr.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	rec := c.ledger.Record(usage.RecordRequest{
		ProviderID: desc.ID,
		InputText:  req.Prompt,
		OutputText: text,
		Explicit:   tokens,
		Pricing:    desc.Pricing,
		Quota:      desc.Quota,
	})

	result := &CallResult{
		RequestID:    requestID,
		ProviderID:   desc.ID,
		ResponseText: text,
		Usage:        tokens,
		Recorded:     rec,
		SessionToken: sessionToken,
		Latency:      time.Since(start),
	}

	c.logger.Info("dispatch completed",
		zap.String("request_id", requestID.String()),
		zap.String("provider", desc.ID),
		zap.Duration("latency", result.Latency))
	return result, nil
}

// callRemote issues the HTTPS request with linear-backoff retry on
// transient failures. Attempts are bounded by MaxRetries.
func (c *Client) callRemote(ctx context.Context, desc *providers.Descriptor, req CallRequest) (string, *providers.TokenUsage, error) {
	secret, model, ok := c.creds.Lookup(desc.ID)
	if !ok {
		return "", nil, llmerr.New(llmerr.KindNoCredential,
			"no credential stored for provider "+desc.ID, nil)
	}
	if model == "" {
		model = desc.DefaultModel
	}

	wire, err := desc.Adapter().BuildRequest(providers.BuildInput{
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Credential:   secret,
	})
	if err != nil {
		return "", nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			c.sleep(c.cfg.BaseDelay * time.Duration(attempt-1))
			c.logger.Debug("retrying remote call",
				zap.String("provider", desc.ID),
				zap.Int("attempt", attempt))
		}

		raw, callErr := c.post(ctx, desc.Endpoint(), wire, c.cfg.RemoteTimeout)
		if callErr != nil {
			lastErr = callErr
			if llmerr.IsRetryable(callErr) {
				continue
			}
			return "", nil, callErr
		}

		text, extErr := desc.Adapter().ExtractResponseText(raw)
		if extErr != nil {
			return "", nil, extErr
		}
		return text, desc.Adapter().ExtractTokenUsage(raw), nil
	}

	if de, ok := lastErr.(*llmerr.DispatchError); ok {
		de.WithDetail("attempts", c.cfg.MaxRetries)
	}
	return "", nil, lastErr
}

// callLocalHTTP posts to a local inference endpoint. Single attempt: local
// failures are not transient. Usage is always estimated.
func (c *Client) callLocalHTTP(ctx context.Context, desc *providers.Descriptor, req CallRequest) (string, *providers.TokenUsage, error) {
	baseURL, model, err := providers.SplitLocalHTTPConnection(desc.Connection)
	if err != nil {
		return "", nil, err
	}

	wire, err := desc.Adapter().BuildRequest(providers.BuildInput{
		Model:        model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return "", nil, err
	}

	raw, err := c.post(ctx, baseURL, wire, c.cfg.LocalHTTPTimeout)
	if err != nil {
		return "", nil, err
	}

	text, err := desc.Adapter().ExtractResponseText(raw)
	if err != nil {
		return "", nil, err
	}
	return text, nil, nil
}

// callLocalProcess spawns the provider's executable under the supervised
// runner. Persistent providers resume from and re-issue session tokens.
func (c *Client) callLocalProcess(ctx context.Context, desc *providers.Descriptor, req CallRequest) (string, *providers.TokenUsage, string, error) {
	priorToken := ""
	if desc.Persistent && req.ConversationID != "" {
		priorToken = c.sessions.Token(req.ConversationID, desc.ID)
	}

	wire, err := desc.Adapter().BuildRequest(providers.BuildInput{
		Model:        desc.DefaultModel,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		SessionToken: priorToken,
	})
	if err != nil {
		return "", nil, "", err
	}

	stdout, stderr, runErr := c.runner.Run(ctx, desc.Connection, wire.Args, c.cfg.ProcessTimeout)
	if runErr != nil {
		if de, ok := runErr.(*llmerr.DispatchError); ok && len(stderr) > 0 {
			de.WithDetail("stderr", tail(string(stderr), 512))
		}
		return "", nil, "", runErr
	}

	text, err := desc.Adapter().ExtractResponseText(stdout)
	if err != nil {
		return "", nil, "", err
	}
	tokens := desc.Adapter().ExtractTokenUsage(stdout)

	sessionToken := ""
	if desc.Persistent {
		if sa, ok := desc.Adapter().(providers.SessionAdapter); ok {
			sessionToken = sa.ExtractSessionToken(stdout)
		}
		if sessionToken == "" {
			sessionToken = priorToken
		}
		if sessionToken != "" && req.ConversationID != "" {
			c.sessions.Put(req.ConversationID, desc.ID, sessionToken)
		}
	}
	return text, tokens, sessionToken, nil
}

// post issues one HTTP POST with a hard per-request timeout and returns
// the body of a 200 response, or a classified error.
func (c *Client) post(ctx context.Context, url string, wire *providers.WireRequest, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wire.Body))
	if err != nil {
		return nil, llmerr.New(llmerr.KindInternal, "failed to build HTTP request", err)
	}
	for k, v := range wire.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, llmerr.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llmerr.ClassifyTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llmerr.ClassifyHTTPStatus(resp.StatusCode, providers.ExtractErrorMessage(raw))
	}
	return raw, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
