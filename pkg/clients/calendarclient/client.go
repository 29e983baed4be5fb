package calendarclient

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/jakechorley/shift-mirror/internal/config"
	"github.com/jakechorley/shift-mirror/pkg/utils"
)

// Client wraps the Google Calendar API client.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Calendar client, running the OAuth flow if no
// valid token exists at tokenPath yet.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, tokenPath string) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg, []string{utils.ScopeCalendarEvents})
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	token, err := utils.GetToken(ctx, oauthConfig, tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// Service returns the underlying calendar service for direct API access.
func (c *Client) Service() *calendar.Service {
	return c.service
}

// ListOverlapping returns the events on the calendar that overlap the
// window [start, end), expanded to single events.
func (c *Client) ListOverlapping(ctx context.Context, calendarID string, start, end time.Time) ([]*calendar.Event, error) {
	resp, err := c.service.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return resp.Items, nil
}

// Insert creates an event on the calendar and returns the created event
// with its service-assigned id.
func (c *Client) Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return created, nil
}

// Delete removes an event from the calendar.
func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := c.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}
