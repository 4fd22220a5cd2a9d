package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type razorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

// NewRazorpayClient returns a Gateway backed by the Razorpay Orders API.
// Every call is bounded by timeout.
func NewRazorpayClient(baseURL, keyID, keySecret string, timeout time.Duration) Gateway {
	return &razorpayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func (c *razorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", err
	}
	out, err := c.do(ctx, http.MethodPost, "/v1/orders", body, "create order")
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *razorpayClient) OrderAmount(ctx context.Context, ref string) (int64, error) {
	out, err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(ref), nil, "fetch order")
	if err != nil {
		return 0, err
	}
	return out.Amount, nil
}

func (c *razorpayClient) do(ctx context.Context, method, path string, body []byte, op string) (*orderResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("razorpay: read response: %w", err)
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("razorpay: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if out.Error != nil {
			return nil, fmt.Errorf("razorpay: status %d: %s: %s", resp.StatusCode, out.Error.Code, out.Error.Description)
		}
		return nil, fmt.Errorf("razorpay: status %d", resp.StatusCode)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("razorpay: response carries no order id")
	}
	return &out, nil
}
