// Package cli is the HTTP client the hrd command talks through.
package cli

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
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Balance(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(account, "balance"), nil, &out)
	return out, err
}

func (c *Client) Inventory(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(account, "inventory"), nil, &out)
	return out, err
}

func (c *Client) NetWorth(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(account, "networth"), nil, &out)
	return out, err
}

func (c *Client) Journal(ctx context.Context, account string, limit int) (map[string]any, error) {
	path := accountPath(account, "journal")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Badges(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(account, "badges"), nil, &out)
	return out, err
}

func (c *Client) Level(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, accountPath(account, "level"), nil, &out)
	return out, err
}

func (c *Client) Shop(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/shop", nil, &out)
	return out, err
}

func (c *Client) ItemDetail(ctx context.Context, itemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/items/"+url.PathEscape(itemID), nil, &out)
	return out, err
}

func (c *Client) MarketHistory(ctx context.Context, limit int) (map[string]any, error) {
	path := "/v1/market/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) (map[string]any, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) ItemLeaderboard(ctx context.Context, itemID string, limit int) (map[string]any, error) {
	path := "/v1/leaderboard/items/" + url.PathEscape(itemID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Act performs a gated action. location is only used for search; empty
// location on search returns the offer list instead of rolling.
func (c *Client) Act(ctx context.Context, account, kind, location string) (map[string]any, error) {
	var body map[string]any
	if location != "" {
		body = map[string]any{"location": location}
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(account, "actions/"+url.PathEscape(kind)), body, &out)
	return out, err
}

func (c *Client) OpenBox(ctx context.Context, account, boxID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(account, "open/"+url.PathEscape(boxID)), nil, &out)
	return out, err
}

func (c *Client) UseCrown(ctx context.Context, account string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(account, "use/crown"), nil, &out)
	return out, err
}

func (c *Client) Deposit(ctx context.Context, account string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(account, "deposit"), map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, account string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, accountPath(account, "withdraw"), map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) Propose(ctx context.Context, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/proposals", body, &out)
	return out, err
}

func (c *Client) Confirm(ctx context.Context, proposalID, decision string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/proposals/"+url.PathEscape(proposalID)+"/confirm",
		map[string]any{"decision": decision}, &out)
	return out, err
}

func accountPath(account, tail string) string {
	return "/v1/accounts/" + url.PathEscape(account) + "/" + tail
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
