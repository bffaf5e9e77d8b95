package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrTimeout is returned when the gateway did not answer within the deadline
var ErrTimeout = errors.New("payment gateway timed out")

// Config holds the gateway credentials and endpoint
type Config struct {
	BaseURL   string // e.g. https://api.razorpay.com/v1
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client talks to the payment gateway orders API
type Client struct {
	config Config
	logger *logrus.Logger
	client *http.Client
}

// CreateOrderRequest is the body sent to POST /orders
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"` // minor units (paise)
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's view of an order
type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// APIError is a non-2xx answer from the gateway
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment gateway returned status %d: %s", e.StatusCode, e.Message)
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// KeyID returns the public key id handed to client SDKs
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// CreateOrder registers an order with the gateway. The caller bounds the call
// with ctx; a deadline hit is reported as ErrTimeout.
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if c.config.KeyID == "" || c.config.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway not configured: missing key credentials")
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpointURL := strings.TrimRight(c.config.BaseURL, "/") + "/orders"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.config.KeyID, c.config.KeySecret)

	c.logger.WithFields(logrus.Fields{
		"receipt":  req.Receipt,
		"amount":   req.Amount,
		"currency": req.Currency,
		"endpoint": endpointURL,
	}).Info("Creating gateway order")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			c.logger.WithError(err).WithField("receipt", req.Receipt).Warn("Gateway order request timed out")
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		c.logger.WithError(err).Error("Failed to call gateway endpoint")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"receipt":     req.Receipt,
	}).Debug("Gateway response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Description != "" {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Description
		}
		return nil, apiErr
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		c.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse gateway response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if order.ID == "" {
		return nil, fmt.Errorf("gateway order creation failed: no order id returned")
	}

	c.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"receipt":  order.Receipt,
	}).Info("Gateway order created")

	return &order, nil
}

// ToMinorUnits converts a rupee amount to paise
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
