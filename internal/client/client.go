// Package client calls the marketplace API and the email service over HTTP.
//
// Replies are decoded as api.Response envelopes; a failure envelope comes
// back as an *apperr.Error of the kind matching the HTTP status, so callers
// branch on errors.Is(err, apperr.ErrConflict) exactly as server code does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/apperr"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

// NewHTTPClient returns an http.Client whose requests carry the current
// trace context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) ReserveStock(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return send[[]domain.StockLevel](ctx, c.httpClient, c.token, http.MethodPost,
		c.baseURL+"/api/v1/inventory/reserve", domain.StockRequest{Items: lines})
}

func (c *Client) ReleaseStock(ctx context.Context, lines []domain.StockLine) ([]domain.StockLevel, error) {
	return send[[]domain.StockLevel](ctx, c.httpClient, c.token, http.MethodPost,
		c.baseURL+"/api/v1/inventory/release", domain.StockRequest{Items: lines})
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := send[domain.Order](ctx, c.httpClient, c.token, http.MethodGet,
		c.baseURL+"/api/v1/orders/"+id, nil)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	order, err := send[domain.Order](ctx, c.httpClient, c.token, http.MethodPatch,
		c.baseURL+"/api/v1/orders/"+id+"/status", domain.OrderStatusUpdate{Status: status})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type Mailer struct {
	baseURL    string
	httpClient *http.Client
}

func NewMailer(baseURL string, httpClient *http.Client) *Mailer {
	return &Mailer{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (m *Mailer) Send(ctx context.Context, n domain.Notification) error {
	_, err := send[domain.Notification](ctx, m.httpClient, "", http.MethodPost, m.baseURL+"/send", n)
	return err
}

func send[T any](ctx context.Context, hc *http.Client, token, method, url string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env api.Response[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return zero, apperr.FromStatus(resp.StatusCode, "", nil)
		}
		return zero, fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	if err := env.Err(resp.StatusCode); err != nil {
		return zero, err
	}
	if env.Data == nil {
		return zero, nil
	}
	return *env.Data, nil
}
