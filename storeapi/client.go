// Package storeapi is the REST client for the external store backend. The
// backend owns orders, inventory, discounts, exchange rates and token
// issuance; this package only moves JSON and maps failures onto the service
// error taxonomy.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ferreteria/storefront/internal/observability"
	"github.com/ferreteria/storefront/services"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client talks to the store backend.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Login exchanges credentials for a signed session token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var resp LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		if services.IsUnauthorizedError(err) {
			return nil, services.ErrInvalidCredentials.Wrap(err)
		}
		return nil, err
	}
	if resp.Token == "" {
		return nil, services.ErrBackendError.WithDetail("reason", "login response without token")
	}
	return &resp, nil
}

// CreateOrder submits an order. It is never retried.
func (c *Client) CreateOrder(ctx context.Context, token string, order *OrderRequest) (*Order, error) {
	var resp Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/orders", token, order, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LookupGuest searches a guest customer by identification. A missing profile
// is not an error: it returns nil, nil.
func (c *Client) LookupGuest(ctx context.Context, idType, idNumber string) (*GuestProfile, error) {
	q := url.Values{}
	q.Set("idType", idType)
	q.Set("idNumber", idNumber)

	var resp *GuestProfile
	err := c.do(ctx, "lookup_guest", http.MethodGet, "/customers/guest?"+q.Encode(), "", nil, &resp)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// ValidateDiscount asks the backend to validate a discount code against a subtotal.
func (c *Client) ValidateDiscount(ctx context.Context, code string, subtotal float64) (*Discount, error) {
	body := map[string]interface{}{"code": code, "subtotal": subtotal}

	var resp Discount
	if err := c.do(ctx, "validate_discount", http.MethodPost, "/discounts/validate", "", body, &resp); err != nil {
		if services.IsValidationError(err) || services.IsNotFoundError(err) {
			reason := "invalid code"
			if msg, ok := services.GetErrorDetails(err)["message"].(string); ok && msg != "" {
				reason = msg
			}
			return nil, services.ErrDiscountRejected.WithDetail("reason", reason)
		}
		return nil, err
	}
	if !resp.Valid {
		reason := resp.Reason
		if reason == "" {
			reason = "invalid code"
		}
		return nil, services.ErrDiscountRejected.WithDetail("reason", reason)
	}
	return &resp, nil
}

// GetExchangeRate returns the current USD to bolívar rate.
func (c *Client) GetExchangeRate(ctx context.Context) (float64, error) {
	var resp exchangeRateResponse
	if err := c.do(ctx, "exchange_rate", http.MethodGet, "/exchange-rate", "", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Rate, nil
}

// List fetches an admin listing on behalf of the signed-in user.
func (c *Client) List(ctx context.Context, token, resource string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.do(ctx, "list_"+resource, http.MethodGet, "/"+url.PathEscape(resource), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.ErrBackendUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return services.ErrBackendError.WithDetail("status", resp.StatusCode)
	}
	return nil
}

// do performs one backend call. GET requests are retried on transport
// errors and 5xx responses; other methods are sent exactly once.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return services.WrapInternal("failed to marshal request", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var (
		resp    *http.Response
		lastErr error
	)
	start := time.Now()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return services.ErrBackendUnavailable.Wrap(ctx.Err())
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return services.WrapInternal("failed to create request", err)
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode < 500 {
			break
		}
		if resp != nil && attempt < attempts-1 {
			resp.Body.Close()
			resp = nil
		}
	}

	if lastErr != nil {
		c.metrics.ObserveBackendCall(op, "error", time.Since(start))
		c.logger.Warn("store backend unreachable",
			zap.String("operation", op),
			zap.Error(lastErr),
		)
		return services.ErrBackendUnavailable.Wrap(lastErr)
	}
	defer resp.Body.Close()
	c.metrics.ObserveBackendCall(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return services.ErrBackendError.Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapError(op, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.ErrBackendError.Wrap(fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

func (c *Client) mapError(op string, status int, body []byte) error {
	var errResp errorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			message = errResp.Message
		} else if errResp.Error != "" {
			message = errResp.Error
		}
	}

	cause := errors.New(message)
	var base *services.DomainError
	switch {
	case status == http.StatusUnauthorized:
		base = services.ErrUnauthorized
	case status == http.StatusForbidden:
		base = services.ErrForbidden
	case status == http.StatusNotFound:
		base = services.ErrResourceNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		base = services.ErrInvalidInput
	case status == http.StatusConflict:
		base = services.ErrBackendError
	default:
		c.logger.Error("store backend error",
			zap.String("operation", op),
			zap.Int("status", status),
			zap.String("message", message),
		)
		base = services.ErrBackendError
	}

	return base.Wrap(cause).WithDetail("status", status).WithDetail("message", message)
}
