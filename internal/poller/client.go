package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"support-service/internal/models"
)

// Client implements API over the service's HTTP surface. It carries either a
// bearer token (authenticated user) or a visitor token; the visitor token is
// captured from the first response and replayed on every later request so the
// anonymous identity stays stable for the session.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client

	mu           sync.Mutex
	visitorToken string
}

// NewClient constructs a client. authToken may be empty for anonymous
// visitors.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// VisitorToken returns the anonymous session token, if one was assigned.
func (c *Client) VisitorToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visitorToken
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	} else {
		c.mu.Lock()
		if c.visitorToken != "" {
			req.Header.Set("X-Visitor-Token", c.visitorToken)
		}
		c.mu.Unlock()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if token := resp.Header.Get("X-Visitor-Token"); token != "" {
		c.mu.Lock()
		c.visitorToken = token
		c.mu.Unlock()
	}

	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = resp.Status
		}
		return resp.StatusCode, fmt.Errorf("%s", payload.Error)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) PostMessage(ctx context.Context, content string, ticketID *int64) (models.Message, error) {
	body := map[string]any{"content": content}
	if ticketID != nil {
		body["ticket_id"] = *ticketID
	}

	var msg models.Message
	status, err := c.do(ctx, http.MethodPost, "/messages", body, &msg)
	if err != nil {
		switch status {
		case http.StatusNotFound:
			return models.Message{}, ErrTicketNotFound
		case http.StatusConflict:
			return models.Message{}, ErrTicketClosed
		case http.StatusForbidden, http.StatusUnauthorized:
			return models.Message{}, ErrNotAllowed
		}
		return models.Message{}, err
	}
	return msg, nil
}

func (c *Client) ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error) {
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/messages?limit="+strconv.Itoa(limit), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func (c *Client) ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, models.TicketStatus, error) {
	var payload struct {
		Messages     []models.Message    `json:"messages"`
		TicketStatus models.TicketStatus `json:"ticket_status"`
	}
	status, err := c.do(ctx, http.MethodGet, "/messages?ticket_id="+strconv.FormatInt(ticketID, 10), nil, &payload)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, "", ErrTicketNotFound
		}
		return nil, "", err
	}
	return payload.Messages, payload.TicketStatus, nil
}

func (c *Client) ToggleReaction(ctx context.Context, messageID int64, kind models.ReactionKind) (bool, models.ReactionCounts, error) {
	var payload struct {
		Applied bool                  `json:"applied"`
		Counts  models.ReactionCounts `json:"counts"`
	}
	path := fmt.Sprintf("/messages/%d/reactions", messageID)
	if _, err := c.do(ctx, http.MethodPost, path, map[string]any{"kind": kind}, &payload); err != nil {
		return false, models.ReactionCounts{}, err
	}
	return payload.Applied, payload.Counts, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	status, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", messageID), nil, nil)
	if err != nil && (status == http.StatusForbidden || status == http.StatusUnauthorized) {
		return ErrNotAllowed
	}
	return err
}

func (c *Client) CreateTicket(ctx context.Context, category string) (models.Ticket, error) {
	var ticket models.Ticket
	if _, err := c.do(ctx, http.MethodPost, "/tickets", map[string]any{"category": category}, &ticket); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (c *Client) CloseTicket(ctx context.Context, ticketID int64) error {
	status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/close", ticketID), nil, nil)
	if err != nil && status == http.StatusNotFound {
		return ErrTicketNotFound
	}
	return err
}

func (c *Client) GetTicket(ctx context.Context, ticketID int64) (models.Ticket, []models.Message, error) {
	var payload struct {
		Ticket   models.Ticket    `json:"ticket"`
		Messages []models.Message `json:"messages"`
	}
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", ticketID), nil, &payload)
	if err != nil {
		if status == http.StatusNotFound {
			return models.Ticket{}, nil, ErrTicketNotFound
		}
		return models.Ticket{}, nil, err
	}
	return payload.Ticket, payload.Messages, nil
}

func (c *Client) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var payload struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/tickets", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tickets, nil
}

func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/presence/heartbeat", nil, nil)
	return err
}

func (c *Client) OnlineCount(ctx context.Context) (int, error) {
	var payload struct {
		Online int `json:"online"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/presence/online", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Online, nil
}
