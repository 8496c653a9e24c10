package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const BaseURL = "https://www.strava.com/api/v3"

// RateLimitError indicates the upstream rejected a request for quota
// reasons. The orchestrator schedules a longer backoff for these.
type RateLimitError struct {
	StatusCode int
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("strava rate limited (%d): %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err (anywhere in its chain) is an
// upstream rate-limit rejection.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Client is a Strava API client bound to one athlete's token source
type Client struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a new Strava API client. The shared rate limiter
// may be nil for tests; passing one lets all per-athlete clients in a
// process draw from the app's single upstream quota.
func NewClient(tokenSource oauth2.TokenSource, limiter *RateLimiter) *Client {
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	return &Client{
		httpClient:  oauth2.NewClient(context.Background(), tokenSource),
		rateLimiter: limiter,
	}
}

// GetActivities fetches one page of activities started after 'after'
func (c *Client) GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]Activity, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.get(ctx, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}

	return activities, nil
}

// GetAllActivities fetches all activities after a given time,
// paginating until the feed is exhausted.
func (c *Client) GetAllActivities(ctx context.Context, after time.Time) ([]Activity, error) {
	var all []Activity
	page := 1
	perPage := 100 // Max allowed by Strava

	for {
		activities, err := c.GetActivities(ctx, after, page, perPage)
		if err != nil {
			return all, fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(activities) == 0 {
			break
		}

		all = append(all, activities...)

		if len(activities) < perPage {
			break // Last page
		}

		page++
	}

	return all, nil
}

// GetActivity fetches a single activity by id, used when a webhook
// event names the exact object.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/activities/%d", activityID)
	resp, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var activity Activity
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		return nil, fmt.Errorf("decoding activity %d: %w", activityID, err)
	}

	return &activity, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Update rate limiter from response headers
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &RateLimitError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
