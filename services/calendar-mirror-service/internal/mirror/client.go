// Package mirror pushes confirmed appointments to the external office
// calendar over its REST API. Operations are idempotent: upserts key on the
// appointment ID, so replays converge.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Event is one appointment as the calendar vendor sees it.
type Event struct {
	AppointmentID string    `json:"-"`
	CalendarID    string    `json:"-"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL string, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) eventURL(calendarID, appointmentID string) string {
	return fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(calendarID), url.PathEscape(appointmentID))
}

func (c *Client) Upsert(ctx context.Context, evt Event) error {
	if c.baseURL == "" {
		return errors.New("calendar mirror url not configured")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.eventURL(evt.CalendarID, evt.AppointmentID), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar upsert returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, calendarID, appointmentID string) error {
	if c.baseURL == "" {
		return errors.New("calendar mirror url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.eventURL(calendarID, appointmentID), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Deleting an event that never made it to the calendar is fine.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar delete returned status %d", resp.StatusCode)
	}
	return nil
}
