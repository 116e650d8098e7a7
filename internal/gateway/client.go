// Package gateway implements the payment gateway boundary: client token
// exchange, settlement, and the per-checkout state machine.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transaction is the settlement record returned by the gateway. The gateway
// is the source of truth for payment success; the order write that follows
// is a best-effort follow-up.
type Transaction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

// DeclineError is returned when the payment processor rejects the
// settlement. It is terminal for the submitted nonce; no order is created.
type DeclineError struct {
	Message string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Message)
}

// ErrUnavailable is returned when the gateway cannot be reached, times out,
// or the circuit breaker is open.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Client is the outbound gateway protocol: one call to obtain a client-side
// authorization token, one call to settle an amount against a nonce.
type Client interface {
	ClientToken(ctx context.Context) (string, error)
	Sale(ctx context.Context, amount decimal.Decimal, nonce string) (*Transaction, error)
}

// Config holds the gateway connection settings.
type Config struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string

	// TokenTimeout bounds the client token request so a dead gateway cannot
	// leave a checkout stuck in TokenRequested.
	TokenTimeout time.Duration
	SaleTimeout  time.Duration
}

// HTTPClient talks to a Braintree-style gateway over HTTP/JSON. All calls go
// through a circuit breaker so a degraded gateway fails fast instead of
// exhausting the settlement path with timeouts.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewHTTPClient creates a gateway client. Outbound requests are traced via
// otelhttp.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.TokenTimeout <= 0 {
		cfg.TokenTimeout = 10 * time.Second
	}
	if cfg.SaleTimeout <= 0 {
		cfg.SaleTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

type clientTokenResponse struct {
	ClientToken string `json:"clientToken"`
}

// ClientToken requests a short-lived client-side authorization token used to
// render the hosted payment form. The request is bounded by TokenTimeout.
func (c *HTTPClient) ClientToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TokenTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/client_token", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrUnavailable, "client token: status %d", resp.StatusCode)
	}

	var out clientTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode client token")
	}
	if out.ClientToken == "" {
		return "", errors.Wrap(ErrUnavailable, "empty client token")
	}
	return out.ClientToken, nil
}

type saleRequest struct {
	Amount             string `json:"amount"`
	PaymentMethodNonce string `json:"paymentMethodNonce"`
}

type saleResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sale settles the given amount against a payment-method nonce. A processor
// decline comes back as *DeclineError; transport failures and 5xx responses
// as ErrUnavailable.
func (c *HTTPClient) Sale(ctx context.Context, amount decimal.Decimal, nonce string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SaleTimeout)
	defer cancel()

	body, err := json.Marshal(saleRequest{
		Amount:             amount.StringFixed(2),
		PaymentMethodNonce: nonce,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode sale request")
	}

	resp, err := c.do(ctx, http.MethodPost, "/transactions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read sale response")
	}

	var out saleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(err, "decode sale response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusOK && out.ID != "" {
		return &Transaction{ID: out.ID, Status: out.Status, Amount: amount}, nil
	}

	msg := out.Message
	if msg == "" {
		msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
	}
	return nil, &DeclineError{Message: msg}
}

// do issues one gateway request through the circuit breaker. An open
// breaker reads as the gateway being unavailable.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return nil, errors.Wrap(err, "build gateway request")
		}
		req.SetBasicAuth(c.cfg.PublicKey, c.cfg.PrivateKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(ErrUnavailable, err.Error())
		}
		// 5xx counts as a breaker failure: a degraded gateway should trip
		// the circuit, not bleed timeouts into the settlement path.
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return nil, errors.Wrapf(ErrUnavailable, "%s: status %d", path, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Wrap(ErrUnavailable, "circuit open")
		}
		return nil, err
	}
	return resp, nil
}
