package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/platinummonkey/matsecom/pkg/api"
	"github.com/platinummonkey/matsecom/pkg/httputil"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/registry"
	"github.com/platinummonkey/matsecom/pkg/session"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status   int
	Response httputil.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Code != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Response.Code, e.Response.Error, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Response.Error, e.Status)
}

// Client talks to the matsecom HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.Response); err != nil || apiErr.Response.Error == "" {
			apiErr.Response.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	switch o := out.(type) {
	case nil:
		return nil
	case io.Writer:
		_, err = io.Copy(o, resp.Body)
	default:
		err = json.NewDecoder(resp.Body).Decode(out)
	}
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, body, out)
}

// ListSubscribers returns every subscriber.
func (c *Client) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	var subs []*model.Subscriber
	if err := c.doJSON(ctx, http.MethodGet, "/subscribers", nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetSubscriber returns one subscriber.
func (c *Client) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	var sub model.Subscriber
	if err := c.doJSON(ctx, http.MethodGet, "/subscribers/"+strconv.FormatInt(id, 10), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscriber registers a subscriber.
func (c *Client) CreateSubscriber(ctx context.Context, req api.CreateSubscriberRequest) (*model.Subscriber, error) {
	var sub model.Subscriber
	if err := c.doJSON(ctx, http.MethodPost, "/subscribers", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteSubscriber removes a subscriber with its sessions and invoices.
func (c *Client) DeleteSubscriber(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/subscribers/"+strconv.FormatInt(id, 10), nil, nil)
}

// ImportSubscribers uploads a subscriber CSV.
func (c *Client) ImportSubscribers(ctx context.Context, r io.Reader) (*registry.ImportResult, error) {
	var result registry.ImportResult
	if err := c.do(ctx, http.MethodPost, "/subscribers/import", "text/csv", r, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportSubscribers streams the subscriber CSV into w.
func (c *Client) ExportSubscribers(ctx context.Context, w io.Writer) error {
	return c.do(ctx, http.MethodGet, "/subscribers/export", "", nil, w)
}

// Simulate runs one session simulation. A refused session comes back as an
// *APIError whose Code is the refusal outcome.
func (c *Client) Simulate(ctx context.Context, req api.SimulateRequest) (*session.Result, error) {
	var res session.Result
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/simulate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListSessions lists sessions, optionally narrowed to one subscriber and paid state.
func (c *Client) ListSessions(ctx context.Context, subscriberID int64, paid *bool) ([]*model.Session, error) {
	q := url.Values{}
	if subscriberID > 0 {
		q.Set("subscriber_id", strconv.FormatInt(subscriberID, 10))
	}
	if paid != nil {
		q.Set("paid", strconv.FormatBool(*paid))
	}
	path := "/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var sessions []*model.Session
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateInvoice bills the subscriber's unpaid sessions.
func (c *Client) CreateInvoice(ctx context.Context, subscriberID int64) (*model.Invoice, error) {
	var inv model.Invoice
	if err := c.doJSON(ctx, http.MethodPost, "/invoices", api.CreateInvoiceRequest{SubscriberID: subscriberID}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoice returns one invoice.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	var inv model.Invoice
	if err := c.doJSON(ctx, http.MethodGet, "/invoices/"+strconv.FormatInt(id, 10), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoices returns the subscriber's invoices.
func (c *Client) ListInvoices(ctx context.Context, subscriberID int64) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	path := "/subscribers/" + strconv.FormatInt(subscriberID, 10) + "/invoices"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// Catalog returns the reference data the server is running with.
func (c *Client) Catalog(ctx context.Context) (*api.CatalogResponse, error) {
	var cat api.CatalogResponse
	if err := c.doJSON(ctx, http.MethodGet, "/catalog", nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
