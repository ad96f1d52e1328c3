package fxrates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"orbitfolio/domain"
)

const (
	ApiUrlBase       = "https://api.freecurrencyapi.com/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 1 // requests per second
)

var (
	// ErrMissingRate the provider response lacks a requested currency
	ErrMissingRate = errors.New("missing rate")
	// ErrInvalidRate the provider quoted zero, a negative or a non-finite value
	ErrInvalidRate = errors.New("invalid rate")
)

// Quotes maps a currency to the provider's quote: units of that currency
// per one unit of the reporting currency.
type Quotes map[domain.Currency]float64

// Service wraps the rate provider's REST API
type Service interface {
	LatestRates(ctx context.Context, currencies []domain.Currency) (Quotes, error)
}

// APIError a non-success response from the provider
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rate provider error (status: %d, endpoint: %s)", e.StatusCode, e.Endpoint)
}

// service rate provider API
type service struct {
	// url base API url
	url string

	apiKey string

	// client for HTTP requests
	client *http.Client

	// timeout when set overrides the client's own
	timeout *time.Duration

	// limiter spaces out outbound requests
	limiter *rate.Limiter
}

// Option configures the provider client
type Option func(*service)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) Option {
	return func(s *service) {
		s.url = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP timeout. It applies to a copy of the client,
// whatever the option order.
func WithTimeout(timeout time.Duration) Option {
	return func(s *service) {
		s.timeout = &timeout
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) Option {
	return func(s *service) {
		if requestsPerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithHTTPClient replaces the HTTP client. c is never modified.
func WithHTTPClient(c *http.Client) Option {
	return func(s *service) {
		s.client = c
	}
}

// NewService constructs a valid provider Service.
func NewService(apiKey string, opts ...Option) Service {
	s := &service{
		url:    ApiUrlBase,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout != nil {
		client := *s.client
		client.Timeout = *s.timeout
		s.client = &client
	}
	return s
}

// LatestRates loads the latest quotes for currencies in a single request.
func (s *service) LatestRates(ctx context.Context, currencies []domain.Currency) (Quotes, error) {
	type Response struct {
		Data map[string]float64 `json:"data"`
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	codes := make([]string, len(currencies))
	for i, c := range currencies {
		codes[i] = string(c)
	}
	params := url.Values{}
	params.Set("apikey", s.apiKey)
	params.Set("currencies", strings.Join(codes, ","))
	endpoint := s.url + "/latest"

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	httpResponse, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, httpResponse.Body)
		return nil, &APIError{StatusCode: httpResponse.StatusCode, Endpoint: endpoint}
	}

	bytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("reading json: %w", err)
	}

	var response Response
	if err := json.Unmarshal(bytes, &response); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	quotes := Quotes{}
	for _, c := range currencies {
		v, ok := response.Data[string(c)]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrMissingRate, c)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, fmt.Errorf("%w: %v=%v", ErrInvalidRate, c, v)
		}
		quotes[c] = v
	}

	return quotes, nil
}
