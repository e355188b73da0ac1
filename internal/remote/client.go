// Package remote talks to another gift-tracker instance over its HTTP API.
// It backs both the sync worker (mirroring committed changes) and the
// "remote" storage backend (blob reads and writes proxied to the peer).
package remote

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

	"darky/internal/core"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Gifts fetches the peer's gifts, optionally filtered to one year (0 keeps all)
func (c *Client) Gifts(ctx context.Context, year int) ([]core.Gift, error) {
	path := "/api/gifts"
	if year != 0 {
		path += "?year=" + strconv.Itoa(year)
	}
	var out []core.Gift
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGift mirrors a gift creation to the peer
func (c *Client) CreateGift(ctx context.Context, g core.Gift) error {
	return c.do(ctx, http.MethodPost, "/api/gifts", g, nil)
}

// UpdateGift mirrors a gift update to the peer
func (c *Client) UpdateGift(ctx context.Context, g core.Gift) error {
	body := map[string]any{
		"price":  g.Price,
		"status": g.Status,
	}
	return c.do(ctx, http.MethodPatch, "/api/gifts/"+url.PathEscape(g.ID), body, nil)
}

// DeleteGift mirrors a gift deletion to the peer
func (c *Client) DeleteGift(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/gifts/"+url.PathEscape(id), nil, nil)
}

// Names fetches the peer's recipient registry for a year
func (c *Client) Names(ctx context.Context, year int) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/years/"+strconv.Itoa(year)+"/names", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
