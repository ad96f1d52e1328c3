package fxrates

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitfolio/domain"
)

var requested = []domain.Currency{domain.INR, domain.CAD}

func TestService_LatestRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/latest", req.URL.Path)
		assert.Equal(t, "secret", req.URL.Query().Get("apikey"))
		assert.Equal(t, "INR,CAD", req.URL.Query().Get("currencies"))
		response := `{
			"data": {
				"INR": 83.0,
				"CAD": 1.25
			}
		}`
		_, _ = rw.Write([]byte(response))
	}))
	defer server.Close()

	s := NewService("secret", WithBaseURL(server.URL+"/"))

	quotes, err := s.LatestRates(context.Background(), requested)

	require.NoError(t, err)
	assert.Equal(t, 83.0, quotes[domain.INR])
	assert.Equal(t, 1.25, quotes[domain.CAD])
}

func TestService_LatestRatesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"missing key", 200, `{"data":{"INR":83.0}}`, ErrMissingRate},
		{"zero rate", 200, `{"data":{"INR":83.0,"CAD":0}}`, ErrInvalidRate},
		{"negative rate", 200, `{"data":{"INR":-1,"CAD":1.3}}`, ErrInvalidRate},
		{"no data", 200, `{}`, ErrMissingRate},
		{"server error", 500, `{"message":"boom"}`, nil},
		{"unauthorized", 401, `{"message":"Invalid authentication credentials"}`, nil},
		{"not json", 200, `<html></html>`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
				rw.WriteHeader(tt.status)
				_, _ = rw.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := NewService("key", WithBaseURL(server.URL))
			quotes, err := s.LatestRates(context.Background(), requested)

			require.Error(t, err)
			assert.Nil(t, quotes)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), err.Error())
			}
			if tt.status != 200 {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.status, apiErr.StatusCode)
			}
		})
	}
}

func TestService_LatestRatesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = rw.Write([]byte("{}"))
	}))
	defer server.Close()

	s := NewService("key", WithBaseURL(server.URL), WithTimeout(1*time.Millisecond))

	_, err := s.LatestRates(context.Background(), requested)

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "http get"), err.Error())
}

func TestNewService_TimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	for name, opts := range map[string][]Option{
		"timeout first": {WithTimeout(time.Second), WithHTTPClient(shared)},
		"client first":  {WithHTTPClient(shared), WithTimeout(time.Second)},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewService("key", opts...).(*service)

			assert.Equal(t, time.Second, s.client.Timeout)
			assert.NotSame(t, shared, s.client)
			assert.Equal(t, time.Minute, shared.Timeout)
		})
	}

	s := NewService("key", WithHTTPClient(shared)).(*service)
	assert.Same(t, shared, s.client)
}

func TestService_LatestRatesCancelledContext(t *testing.T) {
	s := NewService("key", WithBaseURL("http://127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LatestRates(ctx, requested)
	assert.Error(t, err)
}

func TestLoggingService(t *testing.T) {
	var buf bytes.Buffer
	s := NewLoggingService(log.NewLogfmtLogger(&buf), &stub{err: errors.New("down")})

	_, err := s.LatestRates(context.Background(), requested)

	assert.Error(t, err)
	assert.True(t, strings.Contains(buf.String(), "method=latest_rates currencies=2"), buf.String())
	assert.True(t, strings.Contains(buf.String(), "err=down"), buf.String())
}
