// Package gateway talks to the payment gateway: it signs and sends payment
// requests and verifies the signed notifications the gateway sends back.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrGatewayRejected = errors.New("gateway rejected the request")

// Config is built once at startup and never mutated.
type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string // Full URL of the create-payment API
	RedirectURL string
	IPNURL      string
	RequestType string
	Timeout     time.Duration
}

// PaymentRequest is what the service asks the gateway to collect.
type PaymentRequest struct {
	OrderID   string
	RequestID string
	Amount    int64
	OrderInfo string
	ExtraData string
}

// PaymentResponse is the gateway's answer to a create request.
type PaymentResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

// Client is the gateway client. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a gateway client from cfg.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreatePayment signs req and posts it to the gateway. A non-zero result code
// is returned as ErrGatewayRejected along with the decoded response.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	body := &createRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   req.RequestID,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.OrderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IpnURL:      c.cfg.IPNURL,
		RequestType: c.cfg.RequestType,
		ExtraData:   req.ExtraData,
		Lang:        "en",
	}
	body.Signature = hmacHex(createRequestRaw(c.cfg.AccessKey, body), c.cfg.SecretKey)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}

	var out PaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gateway returned status %d with undecodable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.ResultCode != ResultSuccess {
		return &out, fmt.Errorf("%w: status %d, result %d: %s", ErrGatewayRejected, resp.StatusCode, out.ResultCode, out.Message)
	}
	return &out, nil
}

// Verify recomputes the notification signature and compares it in constant time.
func (c *Client) Verify(n *Notification) bool {
	expected := hmacHex(notificationRaw(c.cfg.AccessKey, n), c.cfg.SecretKey)
	return hmac.Equal([]byte(expected), []byte(n.Signature))
}

// Sign fills in n.Signature. Used to build test notifications and by local
// tooling that simulates the gateway.
func (c *Client) Sign(n *Notification) {
	n.Signature = hmacHex(notificationRaw(c.cfg.AccessKey, n), c.cfg.SecretKey)
}
