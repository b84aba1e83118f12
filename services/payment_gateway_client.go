// services/payment_gateway_client.go
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	PaymentStatusDone = "DONE"

	codeAlreadyProcessed = "ALREADY_PROCESSED_PAYMENT"
)

type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// Payment is the subset of the gateway's payment object the ledger verifies.
type Payment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	Method      string `json:"method,omitempty"`
	ApprovedAt  string `json:"approvedAt,omitempty"`
}

// PaymentGateway confirms and looks up payments at the external processor.
type PaymentGateway interface {
	Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (*Payment, error)
	GetPayment(ctx context.Context, paymentKey string) (*Payment, error)
}

// GatewayError is a non-2xx answer from the gateway.
type GatewayError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsAlreadyProcessed reports whether the gateway refused a confirm because
// the payment was confirmed before.
func IsAlreadyProcessed(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Code == codeAlreadyProcessed
}

// TossPaymentsClient talks to the Toss Payments REST API.
type TossPaymentsClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

var _ PaymentGateway = (*TossPaymentsClient)(nil)

func NewTossPaymentsClient(baseURL, secretKey string, timeout time.Duration) *TossPaymentsClient {
	return &TossPaymentsClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Confirm calls POST /v1/payments/confirm
func (c *TossPaymentsClient) Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(httpReq)
}

// GetPayment calls GET /v1/payments/{paymentKey}
func (c *TossPaymentsClient) GetPayment(ctx context.Context, paymentKey string) (*Payment, error) {
	endpoint := c.BaseURL + "/v1/payments/" + url.PathEscape(paymentKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(httpReq)
}

func (c *TossPaymentsClient) do(req *http.Request) (*Payment, error) {
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.SecretKey+":")))
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, gwErr); jsonErr != nil || gwErr.Code == "" {
			gwErr.Code = "UNKNOWN"
			gwErr.Message = strings.TrimSpace(string(body))
		}
		zap.L().Warn("payment gateway returned error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", gwErr.Code))
		return nil, gwErr
	}

	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gateway payment: %w", err)
	}
	return &out, nil
}
