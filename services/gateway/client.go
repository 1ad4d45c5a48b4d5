package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTimeout is the default HTTP client timeout for gateway calls
	DefaultTimeout = 30 * time.Second
	// DefaultRetryCount matches the gateway's recommended retry behaviour
	DefaultRetryCount = 2
)

var (
	// ErrUnavailable is returned when the gateway cannot be reached or
	// responds with a server error. Stored state must be left unchanged and
	// the caller retried later.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is returned when the gateway rejects a request outright
	ErrRejected = errors.New("payment gateway rejected the request")
)

// Config holds configuration for the payment gateway client
type Config struct {
	BaseURL       string
	StoreID       string
	StorePassword string
	Timeout       time.Duration
	RetryCount    int
}

// Client talks to the external payment gateway. The gateway is an opaque
// collaborator: checkout sessions are created against it and refunds are
// queried by reference id.
type Client struct {
	http          *resty.Client
	storeID       string
	storePassword string
}

// NewClient creates a new gateway client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = DefaultRetryCount
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{
		http:          httpClient,
		storeID:       cfg.StoreID,
		storePassword: cfg.StorePassword,
	}
}

// CheckoutRequest describes a checkout session to open with the gateway
type CheckoutRequest struct {
	TransactionID string
	Amount        float64
	Currency      string
	ProductName   string
	CustomerName  string
	CustomerEmail string
}

// CheckoutSession is the gateway's handle for a pending checkout
type CheckoutSession struct {
	SessionKey  string `json:"sessionkey"`
	RedirectURL string `json:"GatewayPageURL"`
	Status      string `json:"status"`
}

// CreateSession opens a checkout session with the gateway
func (c *Client) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var session CheckoutSession
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"store_id":     c.storeID,
			"store_passwd": c.storePassword,
			"tran_id":      req.TransactionID,
			"total_amount": fmt.Sprintf("%.2f", req.Amount),
			"currency":     req.Currency,
			"product_name": req.ProductName,
			"cus_name":     req.CustomerName,
			"cus_email":    req.CustomerEmail,
		}).
		SetResult(&session).
		Post("/gwprocess/v4/api.php")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if session.Status == "FAILED" {
		return nil, fmt.Errorf("%w: session creation failed", ErrRejected)
	}
	return &session, nil
}

// RefundRequest asks the gateway to refund part or all of a settled payment
type RefundRequest struct {
	BankTranID string
	Amount     float64
	Remarks    string
}

// RefundInitiation is the gateway's acknowledgement of a refund request
type RefundInitiation struct {
	RefundRefID string `json:"refund_ref_id"`
	Status      string `json:"status"`
}

// InitiateRefund starts a refund with the gateway and returns the reference
// id used to poll its progress.
func (c *Client) InitiateRefund(ctx context.Context, req RefundRequest) (*RefundInitiation, error) {
	var initiation RefundInitiation
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"store_id":       c.storeID,
			"store_passwd":   c.storePassword,
			"bank_tran_id":   req.BankTranID,
			"refund_amount":  fmt.Sprintf("%.2f", req.Amount),
			"refund_remarks": req.Remarks,
		}).
		SetResult(&initiation).
		Get("/validator/api/merchantTransIDvalidationAPI.php")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if initiation.Status == "failed" || initiation.RefundRefID == "" {
		return nil, fmt.Errorf("%w: refund initiation failed", ErrRejected)
	}
	return &initiation, nil
}

// RefundState is the gateway's view of an in-flight refund
type RefundState struct {
	RefundRefID string `json:"refund_ref_id"`
	Status      string `json:"status"` // initiated, processing, success, failed
}

// QueryRefund fetches the current state of a refund by its reference id
func (c *Client) QueryRefund(ctx context.Context, refundRefID string) (*RefundState, error) {
	var state RefundState
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"store_id":      c.storeID,
			"store_passwd":  c.storePassword,
			"refund_ref_id": refundRefID,
		}).
		SetResult(&state).
		Get("/validator/api/merchantTransIDvalidationAPI.php")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return &state, nil
}
