// Package api talks to the chat service's REST endpoints.
package api

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

	"github.com/pkg/errors"

	"github.com/palemoky/room-chat/internal/apperrors"
	"github.com/palemoky/room-chat/internal/protocol"
)

// ClientIDHeader identifies this client process on every request.
const ClientIDHeader = "X-Client-Id"

// Client provides REST access to the login and history endpoints.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a REST client. origin is the server origin, e.g.
// "http://localhost:8000".
func NewClient(origin, clientID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(origin, "/"),
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login posts the username and returns the numeric user id. A non-2xx
// status or a missing id yields an error wrapping apperrors.ErrLoginRejected;
// transport and decoding failures are returned as-is.
func (c *Client) Login(ctx context.Context, username string) (int64, error) {
	body, err := json.Marshal(protocol.LoginRequest{Username: username})
	if err != nil {
		return 0, errors.Wrap(err, "encode login")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/login", bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp protocol.LoginResponse
	status, err := c.do(req, &resp)
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, errors.Wrapf(apperrors.ErrLoginRejected, "status %d", status)
	}
	if resp.UserID == 0 {
		return 0, errors.Wrap(apperrors.ErrLoginRejected, "missing userId")
	}
	return resp.UserID, nil
}

// History fetches up to limit of the most recent messages of a room, oldest
// first.
func (c *Client) History(ctx context.Context, roomID int64, limit int) ([]protocol.MessageItem, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s/api/chat/rooms/%d/history?%s", c.baseURL, roomID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	var resp protocol.HistoryResponse
	status, err := c.do(req, &resp)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errors.Wrapf(apperrors.ErrHistoryStatus, "status %d", status)
	}
	if resp.Items == nil {
		return []protocol.MessageItem{}, nil
	}
	return resp.Items, nil
}

// do sends req and decodes a 2xx body into dest. Non-2xx bodies are not
// decoded; the status is returned for the caller to classify.
func (c *Client) do(req *http.Request, dest any) (int, error) {
	if c.clientID != "" {
		req.Header.Set(ClientIDHeader, c.clientID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "http request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return resp.StatusCode, errors.Wrap(err, "unmarshal response")
		}
	}
	return resp.StatusCode, nil
}
