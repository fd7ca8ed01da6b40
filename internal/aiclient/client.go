package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
)

// Endpoint is a route on the AI microservice. Per-session routes carry a
// :session_id placeholder, so an Endpoint is always safe as a metric label.
type Endpoint string

const (
	InterviewCreate   Endpoint = "/interview/create"
	InterviewQuestion Endpoint = "/interview/:session_id/question"
	InterviewAnswer   Endpoint = "/interview/:session_id/answer"
	InterviewAnalysis Endpoint = "/interview/:session_id/analysis"
	InterviewStatus   Endpoint = "/interview/:session_id/status"

	VoiceInterviewCreate Endpoint = "/voice-interview/create"
	VoiceTranscribe      Endpoint = "/voice-interview/transcribe"
	VoiceStart           Endpoint = "/voice-interview/start"
	VoiceProcess         Endpoint = "/voice-interview/process"
	VoiceState           Endpoint = "/voice-interview/:session_id/state"
	VoiceStatus          Endpoint = "/voice-interview/:session_id/status"
	VoiceAnalysis        Endpoint = "/voice-interview/:session_id/analysis"

	RAG Endpoint = "/rag"
)

const sessionParam = ":session_id"

// Path fills in the session id of a per-session endpoint.
func (e Endpoint) Path(sessionID string) string {
	if !strings.Contains(string(e), sessionParam) {
		return string(e)
	}
	return strings.Replace(string(e), sessionParam, url.PathEscape(sessionID), 1)
}

// InterviewEndpoints and VoiceEndpoints group routes that share a timeout.
var (
	InterviewEndpoints = []Endpoint{InterviewCreate, InterviewQuestion, InterviewAnswer, InterviewAnalysis, InterviewStatus}
	VoiceEndpoints     = []Endpoint{VoiceInterviewCreate, VoiceTranscribe, VoiceStart, VoiceProcess, VoiceState, VoiceStatus, VoiceAnalysis}
)

const (
	msgRefused     = "Python microservice is not available. Connection refused."
	msgTimeout     = "Request to Python microservice timed out"
	msgCircuitOpen = "Python microservice is temporarily unavailable. Please try again later."

	maxBodyBytes = 4 << 20
)

// ErrCircuitOpen is reported by readiness checks while calls are short-circuited.
var ErrCircuitOpen = errors.New("ai service circuit breaker is open")

const (
	interviewTimeout = 60 * time.Second
	voiceTimeout     = 120 * time.Second
	ragTimeout       = 30 * time.Second
)

// DefaultTimeouts bounds each call, retries included.
var DefaultTimeouts = func() map[Endpoint]time.Duration {
	m := map[Endpoint]time.Duration{RAG: ragTimeout}
	for _, ep := range InterviewEndpoints {
		m[ep] = interviewTimeout
	}
	for _, ep := range VoiceEndpoints {
		m[ep] = voiceTimeout
	}
	return m
}()

// Error is a failed call, already shaped for the API response.
type Error struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai service: %d %s", e.Status, e.Message)
}

// Response is a successful upstream reply.
type Response struct {
	Status int
	Body   json.RawMessage
}

type reply struct {
	status int
	body   []byte
}

type Config struct {
	BaseURL    string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeouts   map[Endpoint]time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	http     *http.Client
	executor failsafe.Executor[*reply]
	breaker  circuitbreaker.CircuitBreaker[*reply]
	timeouts map[Endpoint]time.Duration
}

func New(cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	timeouts := make(map[Endpoint]time.Duration, len(DefaultTimeouts))
	for ep, d := range DefaultTimeouts {
		timeouts[ep] = d
	}
	for ep, d := range cfg.Timeouts {
		if d > 0 {
			timeouts[ep] = d
		}
	}

	retry := retrypolicy.NewBuilder[*reply]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		ReturnLastFailure().
		Build()

	breaker := circuitbreaker.NewBuilder[*reply]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		HandleIf(func(r *reply, err error) bool {
			return err != nil || (r != nil && r.status >= 500)
		}).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.Warn("AI service circuit breaker state change",
				"from_state", stateName(e.OldState), "to_state", stateName(e.NewState))
		}).
		Build()

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     cfg.HTTPClient,
		executor: failsafe.With[*reply](retry, breaker),
		breaker:  breaker,
		timeouts: timeouts,
	}
}

// Available reports whether calls are currently let through the circuit breaker.
func (c *Client) Available() bool {
	return !c.breaker.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// Retries only cover requests the service never accepted.
func shouldRetry(r *reply, err error) bool {
	if err != nil {
		return errors.Is(err, syscall.ECONNREFUSED)
	}
	return r != nil && (r.status == http.StatusBadGateway || r.status == http.StatusServiceUnavailable)
}

// Post sends payload to endpoint. Non-2xx replies and transport failures come back as *Error.
func (c *Client) Post(ctx context.Context, endpoint Endpoint, payload interface{}) (*Response, error) {
	return c.Call(ctx, http.MethodPost, endpoint, "", payload)
}

// Call sends one request to endpoint with sessionID filled in. A nil payload
// sends no body.
func (c *Client) Call(ctx context.Context, method string, endpoint Endpoint, sessionID string, payload interface{}) (*Response, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
		body = b
	}
	path := endpoint.Path(sessionID)

	if d, ok := c.timeouts[endpoint]; ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	r, err := c.executor.WithContext(ctx).Get(func() (*reply, error) {
		return c.do(ctx, method, path, body)
	})
	resp, err := shape(r, err)
	metrics.RecordAIRequest(string(endpoint), outcome(err), time.Since(start).Seconds())
	if err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"endpoint": string(endpoint),
		}).Warn("AI service call failed")
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*reply, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &reply{status: resp.StatusCode, body: data}, nil
}

func shape(r *reply, err error) (*Response, error) {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: msgCircuitOpen}
	case err != nil && errors.Is(err, syscall.ECONNREFUSED):
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: msgRefused}
	case err != nil && isTimeout(err):
		return nil, &Error{Status: http.StatusGatewayTimeout, Message: msgTimeout}
	case err != nil:
		return nil, &Error{Status: http.StatusInternalServerError, Message: err.Error()}
	case r == nil:
		return nil, &Error{Status: http.StatusInternalServerError, Message: "Unknown error occurred"}
	}

	if r.status >= 200 && r.status < 300 {
		return &Response{Status: r.status, Body: rawOrNull(r.body)}, nil
	}

	var detail struct {
		Detail interface{} `json:"detail"`
		Error  string      `json:"error"`
	}
	_ = json.Unmarshal(r.body, &detail)

	msg := ""
	switch d := detail.Detail.(type) {
	case string:
		msg = d
	case nil:
	default:
		if b, err := json.Marshal(d); err == nil {
			msg = string(b)
		}
	}
	if msg == "" {
		msg = detail.Error
	}
	if msg == "" {
		if r.status < 500 {
			msg = fmt.Sprintf("Request failed with status %d", r.status)
		} else {
			msg = fmt.Sprintf("Error from Python microservice: %d", r.status)
		}
	}

	e := &Error{Status: r.status, Message: msg}
	if json.Valid(r.body) {
		e.Data = r.body
	}
	return nil, e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return json.RawMessage("null")
	}
	return b
}

func outcome(err error) string {
	var e *Error
	if err == nil {
		return "ok"
	}
	if errors.As(err, &e) {
		switch {
		case e.Message == msgCircuitOpen:
			return "circuit_open"
		case e.Status == http.StatusServiceUnavailable:
			return "unavailable"
		case e.Status == http.StatusGatewayTimeout:
			return "timeout"
		case e.Status < 500:
			return "client_error"
		}
	}
	return "upstream_error"
}
