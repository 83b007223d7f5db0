package cashier

import (
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
)

// PaddleConfig holds credentials and endpoint settings for the classic Paddle
// Vendors API.
type PaddleConfig struct {
	VendorID       string        `env:"PADDLE_VENDOR_ID,required"`
	VendorAuthCode string        `env:"PADDLE_VENDOR_AUTH_CODE,required"`
	BaseURL        string        `env:"PADDLE_API_URL" envDefault:"https://vendors.paddle.com/api/2.0/"`
	HTTPTimeout    time.Duration `env:"PADDLE_HTTP_TIMEOUT" envDefault:"30s"`
}

// PaddleGateway implements Gateway against the classic Paddle Vendors (v2)
// API: form-encoded POSTs with vendor credentials merged into every request
// body and a {"success":bool,"error":{...}} response envelope.
type PaddleGateway struct {
	config PaddleConfig
	client *http.Client
}

// PaddleOption configures a PaddleGateway.
type PaddleOption func(*PaddleGateway)

// WithHTTPClient sets a custom HTTP client, e.g. for tests or proxies.
// Nil clients are ignored.
func WithHTTPClient(client *http.Client) PaddleOption {
	return func(g *PaddleGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// NewPaddleGateway creates a gateway for the classic Vendors API.
func NewPaddleGateway(config PaddleConfig, opts ...PaddleOption) (*PaddleGateway, error) {
	if config.VendorID == "" {
		return nil, errors.New("paddle vendor id is required")
	}
	if config.VendorAuthCode == "" {
		return nil, errors.New("paddle vendor auth code is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://vendors.paddle.com/api/2.0/"
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = 30 * time.Second
	}

	g := &PaddleGateway{
		config: config,
		client: &http.Client{Timeout: config.HTTPTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *PaddleGateway) SubscriptionUsers(ctx context.Context, q SubscriptionUsersQuery) ([]SubscriptionUser, error) {
	body := url.Values{}
	if q.SubscriptionID != "" {
		body.Set("subscription_id", q.SubscriptionID)
	}
	if q.PlanID != "" {
		body.Set("plan_id", q.PlanID)
	}
	if q.State != "" {
		body.Set("state", q.State)
	}

	raw, err := g.post(ctx, "subscription/users", body)
	if err != nil {
		return nil, err
	}

	var users []SubscriptionUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, errors.Join(ErrGatewayRequest, err)
	}
	return users, nil
}

func (g *PaddleGateway) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateParams) error {
	body := url.Values{}
	body.Set("subscription_id", subscriptionID)
	if params.PlanID != "" {
		body.Set("plan_id", params.PlanID)
	}
	if params.Quantity > 0 {
		body.Set("quantity", strconv.Itoa(params.Quantity))
	}
	if params.Prorate != nil {
		body.Set("prorate", strconv.FormatBool(*params.Prorate))
	}
	if params.BillImmediately != nil {
		body.Set("bill_immediately", strconv.FormatBool(*params.BillImmediately))
	}
	if params.Passthrough != "" {
		body.Set("passthrough", params.Passthrough)
	}

	_, err := g.post(ctx, "subscription/users/update", body)
	return err
}

func (g *PaddleGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	body := url.Values{}
	body.Set("subscription_id", subscriptionID)

	_, err := g.post(ctx, "subscription/users_cancel", body)
	return err
}

func (g *PaddleGateway) Refund(ctx context.Context, orderID string, params RefundParams) error {
	body := url.Values{}
	body.Set("order_id", orderID)
	if !params.Amount.IsZero() {
		body.Set("amount", params.Amount.String())
	}
	if params.Reason != "" {
		body.Set("reason", params.Reason)
	}

	_, err := g.post(ctx, "payment/refund", body)
	return err
}

// paddleEnvelope is the classic API response wrapper.
type paddleEnvelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// post sends one form-encoded request with vendor credentials merged into the
// body and unwraps the response envelope. Single attempt; retries are the
// caller's responsibility.
func (g *PaddleGateway) post(ctx context.Context, path string, body url.Values) (json.RawMessage, error) {
	body.Set("vendor_id", g.config.VendorID)
	body.Set("vendor_auth_code", g.config.VendorAuthCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, errors.Join(ErrGatewayRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrGatewayRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrGatewayRequest, path, resp.StatusCode)
	}

	var envelope paddleEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Join(ErrGatewayRequest, err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: %s: %s (code %d)", ErrGatewayRequest, path, envelope.Error.Message, envelope.Error.Code)
	}

	return envelope.Response, nil
}
