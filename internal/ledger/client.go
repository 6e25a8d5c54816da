// Package ledger is the accounting-side integration: a rate-limited HTTP
// client for the ledger API, entity resolution with run-scoped caches,
// transaction matching, and the receipt sync service that ties them together.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"receiptsync/internal/config"
)

// ErrAuth marks a credential failure (401/403). It is never retried, and the
// caller aborts the remaining batch: every later request would fail the same
// way.
var ErrAuth = errors.New("ledger authentication failed")

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.LedgerTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.LedgerRateLimitRPS),
	}
}

// QueryPurchases returns purchase transactions dated within [from, to],
// inclusive, both YYYY-MM-DD.
func (c *Client) QueryPurchases(ctx context.Context, from, to string) ([]Transaction, error) {
	body, err := c.do(ctx, http.MethodGet, "purchases", map[string]string{"from": from, "to": to}, nil)
	if err != nil {
		return nil, err
	}
	var out []Transaction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FindVendor(ctx context.Context, name string) (*Entity, error) {
	return c.findEntity(ctx, "vendors", name)
}

func (c *Client) CreateVendor(ctx context.Context, name string) (*Entity, error) {
	return c.createEntity(ctx, "vendors", map[string]string{"name": name})
}

func (c *Client) FindCustomer(ctx context.Context, name string) (*Entity, error) {
	return c.findEntity(ctx, "customers", name)
}

func (c *Client) CreateCustomer(ctx context.Context, name string) (*Entity, error) {
	return c.createEntity(ctx, "customers", map[string]string{"name": name})
}

// ListExpenseAccounts returns the chart-of-accounts entries usable on
// purchase lines.
func (c *Client) ListExpenseAccounts(ctx context.Context) ([]Entity, error) {
	body, err := c.do(ctx, http.MethodGet, "accounts", map[string]string{"type": "expense"}, nil)
	if err != nil {
		return nil, err
	}
	var out []Entity
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePurchase posts a new purchase and returns its transaction id.
func (c *Client) CreatePurchase(ctx context.Context, purchase PurchaseUpsert) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "purchases", nil, purchase)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("ledger create returned no id")
	}
	return created.ID, nil
}

// UpdatePurchase replaces the mutable fields of an existing purchase.
func (c *Client) UpdatePurchase(ctx context.Context, txnID string, purchase PurchaseUpsert) error {
	_, err := c.do(ctx, http.MethodPost, "purchases/"+url.PathEscape(txnID), nil, purchase)
	return err
}

// UploadAttachment attaches the original receipt document to a transaction.
func (c *Client) UploadAttachment(ctx context.Context, txnID, filename string, blob []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(blob); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	endpoint := "purchases/" + url.PathEscape(txnID) + "/attachments"
	_, err = c.doRaw(ctx, http.MethodPost, endpoint, nil, buf.Bytes(), writer.FormDataContentType())
	return err
}

func (c *Client) findEntity(ctx context.Context, kind, name string) (*Entity, error) {
	body, err := c.do(ctx, http.MethodGet, kind, map[string]string{"name": name}, nil)
	if err != nil {
		return nil, err
	}
	var out []Entity
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *Client) createEntity(ctx context.Context, kind string, payload map[string]string) (*Entity, error) {
	body, err := c.do(ctx, http.MethodPost, kind, nil, payload)
	if err != nil {
		return nil, err
	}
	var out Entity
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, payload any) ([]byte, error) {
	var body []byte
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = encoded
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, endpoint, params, body, contentType)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, params map[string]string, body []byte, contentType string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.LedgerAPIToken) == "" {
		return nil, fmt.Errorf("%w: missing LEDGER_API_TOKEN", ErrAuth)
	}

	baseURL := strings.TrimRight(c.cfg.LedgerAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.LedgerAPIToken)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status=%d", ErrAuth, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("ledger status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("ledger api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("ledger api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("ledger request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
