// Package pinterest talks to the Pinterest v5 API: pin creation, account
// lookup, board listing and the OAuth code flow. Linked accounts and synced
// boards are kept in the bot's key-value store.
package pinterest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jusunglee/mjpin/internal/metrics"
)

const DefaultBaseURL = "https://api.pinterest.com/v5"

var ErrUnauthorized = errors.New("pinterest rejected the access token")

// APIError is a non-2xx response. Message carries Pinterest's own
// explanation when the body has one.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pinterest API returned status %d", e.StatusCode)
	}
	return e.Message
}

type PinRequest struct {
	BoardID  string
	ImageURL string
	Link     string
}

type Pin struct {
	ID      string `json:"id"`
	BoardID string `json:"board_id"`
	Link    string `json:"link"`
}

type UserAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL, &http.Client{Timeout: 15 * time.Second})
}

func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type createPinBody struct {
	BoardID     string      `json:"board_id"`
	MediaSource mediaSource `json:"media_source"`
	Link        string      `json:"link,omitempty"`
}

type mediaSource struct {
	SourceType string `json:"source_type"`
	URL        string `json:"url"`
}

// CreatePin pins an image by URL. A response without a pin ID is an error.
func (c *Client) CreatePin(ctx context.Context, token string, req PinRequest) (Pin, error) {
	body := createPinBody{
		BoardID:     req.BoardID,
		MediaSource: mediaSource{SourceType: "image_url", URL: req.ImageURL},
		Link:        req.Link,
	}

	var pin Pin
	if err := c.do(ctx, "create_pin", http.MethodPost, "/pins", token, body, &pin); err != nil {
		return Pin{}, err
	}
	if pin.ID == "" {
		return Pin{}, errors.New("no pin ID returned")
	}
	return pin, nil
}

func (c *Client) UserAccount(ctx context.Context, token string) (UserAccount, error) {
	var acct UserAccount
	if err := c.do(ctx, "user_account", http.MethodGet, "/user_account", token, nil, &acct); err != nil {
		return UserAccount{}, err
	}
	if acct.ID == "" {
		return UserAccount{}, errors.New("no user ID returned")
	}
	return acct, nil
}

type boardsPage struct {
	Items    []Board `json:"items"`
	Bookmark string  `json:"bookmark"`
}

// ListBoards follows the bookmark cursor until every board is fetched.
func (c *Client) ListBoards(ctx context.Context, token string) ([]Board, error) {
	var boards []Board
	bookmark := ""
	for {
		q := url.Values{"page_size": {"100"}}
		if bookmark != "" {
			q.Set("bookmark", bookmark)
		}

		var page boardsPage
		if err := c.do(ctx, "list_boards", http.MethodGet, "/boards?"+q.Encode(), token, nil, &page); err != nil {
			return nil, err
		}
		for _, b := range page.Items {
			boards = append(boards, Board{ID: b.ID, Name: b.Name})
		}
		if page.Bookmark == "" || page.Bookmark == bookmark {
			return boards, nil
		}
		bookmark = page.Bookmark
	}
}

func (c *Client) do(ctx context.Context, endpoint, method, path, token string, body, out any) error {
	start := time.Now()
	err := c.send(ctx, method, path, token, body, out)
	metrics.PinterestAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.PinterestAPICallsTotal.WithLabelValues(endpoint, result).Inc()
	return err
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(raw, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
