package caldav

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/sergkorol/kommunist/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Client is a CalDAV-backed calendar store. It is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string

	mu      sync.Mutex
	homeSet string // Optional: skip principal discovery
	client  *caldav.Client
}

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.username != "" && c.password != ""
}

// SetHomeSet sets the calendar home collection, skipping discovery
func (c *Client) SetHomeSet(p string) {
	c.mu.Lock()
	c.homeSet = p
	c.mu.Unlock()
}

func (c *Client) cachedHomeSet() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.homeSet
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// Calendars returns the user's event calendars in server listing order
func (c *Client) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	homeSet := c.cachedHomeSet()
	if homeSet == "" {
		principal, err := client.FindCurrentUserPrincipal(ctx)
		if err != nil {
			return nil, fmt.Errorf("find principal: %w", err)
		}

		homeSet, err = client.FindCalendarHomeSet(ctx, principal)
		if err != nil {
			return nil, fmt.Errorf("find home set: %w", err)
		}
		c.SetHomeSet(homeSet)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []domain.Calendar
	for _, cal := range cals {
		if !supportsEvents(cal.SupportedComponentSet) {
			continue
		}
		name := cal.Name
		if name == "" {
			name = path.Base(strings.TrimSuffix(cal.Path, "/"))
		}
		result = append(result, domain.Calendar{
			ID:   cal.Path,
			Name: name,
		})
	}

	return result, nil
}

func supportsEvents(comps []string) bool {
	if len(comps) == 0 {
		return true
	}
	for _, comp := range comps {
		if strings.EqualFold(comp, ical.CompEvent) {
			return true
		}
	}
	return false
}

// Events returns events in the specified time range; zero bounds are open
func (c *Client) Events(ctx context.Context, calendarPath string, from, to time.Time) ([]domain.CalendarEvent, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	if calendarPath == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{
				{
					Name:  ical.CompEvent,
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []domain.CalendarEvent
	for _, obj := range objects {
		event, err := parseCalendarObject(&obj)
		if err != nil {
			continue // Skip invalid events
		}
		event.CalendarID = calendarPath
		events = append(events, event)
	}

	return events, nil
}

// CreateEvent stores a new event object in the calendar
func (c *Client) CreateEvent(ctx context.Context, calendarPath string, f domain.EventFields) (*domain.CalendarEvent, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	if calendarPath == "" {
		return nil, fmt.Errorf("calendar path not specified")
	}

	uid := uuid.NewString()
	eventPath := objectPath(calendarPath, uid)

	if _, err := client.PutCalendarObject(ctx, eventPath, eventToICS(uid, f)); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	e := &domain.CalendarEvent{ID: eventPath, CalendarID: calendarPath}
	f.Apply(e)
	return e, nil
}

// UpdateEvent replaces an existing event object, keeping its UID
func (c *Client) UpdateEvent(ctx context.Context, eventPath string, f domain.EventFields) (*domain.CalendarEvent, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetCalendarObject(ctx, eventPath)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	uid := eventUID(obj, strings.TrimSuffix(path.Base(eventPath), ".ics"))

	// For CalDAV, update is a PUT over the same path
	if _, err := client.PutCalendarObject(ctx, eventPath, eventToICS(uid, f)); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	e := &domain.CalendarEvent{ID: eventPath, CalendarID: path.Dir(eventPath) + "/"}
	f.Apply(e)
	return e, nil
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}
