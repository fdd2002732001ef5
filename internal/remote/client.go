package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrUnauthorized maps HTTP 401: the session credential is missing or
	// expired. Background sync must stop until re-authentication.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork covers timeouts, connectivity failures and unexpected
	// server responses. These are retryable via the sync queue.
	ErrNetwork = errors.New("network error")
)

// TokenFunc supplies the authentication credential for a request.
type TokenFunc func(ctx context.Context) (string, error)

// CartAPI is the remote cart service contract. Every successful call returns
// the full updated snapshot, never a delta.
type CartAPI interface {
	FetchCart(ctx context.Context) (*domain.CartSnapshot, error)
	AddItem(ctx context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error)
	UpdateItem(ctx context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error)
	RemoveItem(ctx context.Context, productID, variantID string) (*domain.CartSnapshot, error)
	ClearCart(ctx context.Context) (*domain.CartSnapshot, error)
}

// Client is a thin request/response wrapper around the cart REST endpoints.
// One round trip per call, no retries: retries are the sync queue's job.
// A circuit breaker trips after repeated transport failures so an unreachable
// server fails fast instead of stacking timeouts.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenFunc
	breaker *gobreaker.CircuitBreaker[*domain.CartSnapshot]
}

type Option func(*Client)

// WithTimeout bounds every request; expiry is reported as ErrNetwork.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Tests only.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, token TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*domain.CartSnapshot](gobreaker.Settings{
		Name: "remote-cart",
		// 401 is an auth state, not a server fault; it must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
	})
	return c
}

type itemRequestDTO struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type cartResponseDTO struct {
	Items []domain.ServerLineItem `json:"items"`
}

func (c *Client) FetchCart(ctx context.Context) (*domain.CartSnapshot, error) {
	return c.execute(ctx, http.MethodGet, "/cart", nil)
}

func (c *Client) AddItem(ctx context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error) {
	return c.execute(ctx, http.MethodPost, "/cart/items", &itemRequestDTO{productID, variantID, quantity})
}

func (c *Client) UpdateItem(ctx context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error) {
	return c.execute(ctx, http.MethodPatch, "/cart/items", &itemRequestDTO{productID, variantID, quantity})
}

func (c *Client) RemoveItem(ctx context.Context, productID, variantID string) (*domain.CartSnapshot, error) {
	return c.execute(ctx, http.MethodDelete, "/cart/items", &itemRequestDTO{ProductID: productID, VariantID: variantID})
}

func (c *Client) ClearCart(ctx context.Context) (*domain.CartSnapshot, error) {
	return c.execute(ctx, http.MethodDelete, "/cart", nil)
}

func (c *Client) execute(ctx context.Context, method, path string, body *itemRequestDTO) (*domain.CartSnapshot, error) {
	snap, err := c.breaker.Execute(func() (*domain.CartSnapshot, error) {
		return c.do(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrNetwork)
	}
	return snap, err
}

func (c *Client) do(ctx context.Context, method, path string, body *itemRequestDTO) (*domain.CartSnapshot, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request failed: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: no credential available", ErrUnauthorized)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	var dto cartResponseDTO
	if e2 := json.NewDecoder(resp.Body).Decode(&dto); e2 != nil {
		return nil, fmt.Errorf("%w: decode response failed: %v", ErrNetwork, e2)
	}

	return &domain.CartSnapshot{
		Items:     dto.Items,
		FetchedAt: time.Now().UnixMilli(),
	}, nil
}
