package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/auroracademy/backend/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.mercadopago.com"

// Payment statuses reported by the gateway that the engine cares about.
const (
	PaymentStatusApproved = "approved"
	PaymentStatusRefunded = "refunded"
)

// API is the gateway surface consumed by the billing engine. The concrete
// client is constructed once at startup and injected; tests supply doubles.
type API interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
	RefundPayment(ctx context.Context, paymentID string) (*Refund, error)
	GetPreApproval(ctx context.Context, id string) (*PreApproval, error)
	UpdatePreApprovalAmount(ctx context.Context, id string, amount float64) error
	CancelPreApproval(ctx context.Context, id string) error
	CreatePreference(ctx context.Context, pref *PreferenceRequest) (*Preference, error)
}

type Client struct {
	AccessToken string
	APIBaseURL  string

	HTTPClient *http.Client
}

var _ API = (*Client)(nil)

func NewClientFromEnv() *Client {
	return &Client{
		AccessToken: strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Payment is the authoritative charge state fetched by id. Webhook payloads
// only carry an id; this is what the ingestor trusts.
type Payment struct {
	ID                string          `json:"-"`
	Status            string          `json:"status"`
	TransactionAmount float64         `json:"transaction_amount"`
	Metadata          PaymentMetadata `json:"metadata"`
}

// Refund is the result of a refund request for a payment.
type Refund struct {
	ID        int64   `json:"id"`
	PaymentID int64   `json:"payment_id"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
}

// Approved reports whether the gateway accepted the refund.
func (r *Refund) Approved() bool {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "approved", "refunded":
		return true
	default:
		return false
	}
}

// PreApproval is a recurring agreement (subscription) at the gateway.
type PreApproval struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
	NextPaymentDate   string `json:"next_payment_date"`
	AutoRecurring     struct {
		TransactionAmount float64 `json:"transaction_amount"`
		CurrencyID        string  `json:"currency_id"`
		Installments      int     `json:"installments"`
	} `json:"auto_recurring"`
}

// PreferenceRequest creates a one-off checkout (used for upgrade fees).
type PreferenceRequest struct {
	Items []PreferenceItem `json:"items"`
	// Metadata comes back verbatim on the resulting payment, which is how
	// the webhook ingestor recognizes what the charge was for.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type PreferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}

	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	out.ID = id
	if strings.TrimSpace(out.Status) == "" {
		return nil, errors.New("payment response missing status")
	}
	return &out, nil
}

func (c *Client) RefundPayment(ctx context.Context, paymentID string) (*Refund, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	var out Refund
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPreApproval(ctx context.Context, id string) (*PreApproval, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("preapproval id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/preapproval/"+id, nil)
	if err != nil {
		return nil, err
	}

	var out PreApproval
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		out.ID = id
	}
	return &out, nil
}

func (c *Client) UpdatePreApprovalAmount(ctx context.Context, id string, amount float64) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("preapproval id is required")
	}

	payload := map[string]interface{}{
		"auto_recurring": map[string]interface{}{
			"transaction_amount": amount,
			"currency_id":        env.GetEnv("MP_CURRENCY_ID", "ARS"),
		},
	}
	_, err := c.do(ctx, http.MethodPut, "/preapproval/"+id, payload)
	return err
}

func (c *Client) CancelPreApproval(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("preapproval id is required")
	}

	payload := map[string]interface{}{"status": "cancelled"}
	_, err := c.do(ctx, http.MethodPut, "/preapproval/"+id, payload)
	return err
}

func (c *Client) CreatePreference(ctx context.Context, pref *PreferenceRequest) (*Preference, error) {
	if pref == nil || len(pref.Items) == 0 {
		return nil, errors.New("preference needs at least one item")
	}

	body, err := c.do(ctx, http.MethodPost, "/checkout/preferences", pref)
	if err != nil {
		return nil, err
	}

	var out Preference
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("preference response missing id")
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
