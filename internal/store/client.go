package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
)

// MaxBatchSize is the store's hard cap on records per write call.
const MaxBatchSize = 10

const (
	defaultPageSize = 100
	maxPages        = 200
)

type Sort struct {
	Field string
	Desc  bool
}

// Query narrows a read: Filter is a formula, Fields the projection.
type Query struct {
	Filter   string
	Fields   []string
	Sort     []Sort
	PageSize int
}

type Config struct {
	BaseURL string
	BaseID  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	baseID     string
	httpClient *http.Client
	log        *zerolog.Logger
}

func NewClient(cfg Config, log *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		baseID:  cfg.BaseID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type writeRequest struct {
	Records []Record `json:"records"`
}

// FetchRows reads every page matching q.
func (c *Client) FetchRows(ctx context.Context, cred auth.Credential, table string, q Query) ([]Record, error) {
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	var (
		out    []Record
		offset string
	)
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(pageSize))
		if q.Filter != "" {
			params.Set("filterByFormula", q.Filter)
		}
		for _, f := range q.Fields {
			params.Add("fields[]", f)
		}
		for i, s := range q.Sort {
			params.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
			dir := "asc"
			if s.Desc {
				dir = "desc"
			}
			params.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
		}
		if offset != "" {
			params.Set("offset", offset)
		}

		body, err := c.do(ctx, cred, http.MethodGet, c.tableURL(table)+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", table, err)
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("fetch %s: decoding response: %w", table, err)
		}
		out = append(out, resp.Records...)

		if resp.Offset == "" {
			c.log.Debug().Str("table", table).Int("records", len(out)).Int("pages", page+1).Msg("store fetch done")
			return out, nil
		}
		offset = resp.Offset
	}
	return nil, fmt.Errorf("fetch %s: %w: more than %d pages", table, ErrUpstreamUnavailable, maxPages)
}

// WriteRows patches up to MaxBatchSize records in one call. Larger sets must be
// chunked by the caller.
func (c *Client) WriteRows(ctx context.Context, cred auth.Credential, table string, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > MaxBatchSize {
		return nil, fmt.Errorf("write %s: %w: %d records", table, ErrBatchTooLarge, len(records))
	}

	payload, err := json.Marshal(writeRequest{Records: records})
	if err != nil {
		return nil, fmt.Errorf("write %s: encoding request: %w", table, err)
	}

	body, err := c.do(ctx, cred, http.MethodPatch, c.tableURL(table), payload)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("write %s: decoding response: %w", table, err)
	}
	c.log.Debug().Str("table", table).Int("records", len(resp.Records)).Msg("store write done")
	return resp.Records, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, cred auth.Credential, method, target string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", cred.Header())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Str("method", method).Int("status", resp.StatusCode).Msg("store request failed")
		return nil, Classify(resp.StatusCode, body)
	}
	return body, nil
}
