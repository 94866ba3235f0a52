package supplier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
)

const (
	defaultTwitterBaseURL = "https://api.twitter.com"
	defaultTwitterQuery   = "tech"
	// recent search accepts max_results in 10..100.
	twitterMinResults = 10
	twitterMaxResults = 100
)

// TwitterOptions configures the Twitter/X adapter.
type TwitterOptions struct {
	BaseURL     string
	BearerToken string
	Query       string
	// RateBuffer is the allowance kept in reserve; calls stop once the
	// remaining quota is at or below it.
	RateBuffer int
	Quota      QuotaTracker
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Twitter runs a recent-search query against the v2 API.
type Twitter struct {
	baseURL     string
	bearerToken string
	query       string
	rateBuffer  int
	quota       QuotaTracker
	httpClient  *http.Client
}

func NewTwitter(opts TwitterOptions) *Twitter {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwitterBaseURL
	}
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		query = defaultTwitterQuery
	}
	quota := opts.Quota
	if quota == nil {
		quota = NewMemoryQuota(100)
	}
	return &Twitter{
		baseURL:     baseURL,
		bearerToken: strings.TrimSpace(opts.BearerToken),
		query:       query,
		rateBuffer:  opts.RateBuffer,
		quota:       quota,
		httpClient:  httpClient,
	}
}

func (t *Twitter) Source() models.Source { return models.SourceTwitter }

type twitterSearchResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		AuthorID  string    `json:"author_id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []twitterUser `json:"users"`
	} `json:"includes"`
}

type twitterUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (t *Twitter) Fetch(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if t.bearerToken == "" {
		return nil, ErrMissingCredentials
	}
	remaining, err := t.quota.Remaining(ctx)
	if err != nil {
		return nil, err
	}
	if remaining <= t.rateBuffer {
		return nil, ErrQuotaExhausted
	}

	maxResults := limit
	if maxResults < twitterMinResults {
		maxResults = twitterMinResults
	}
	if maxResults > twitterMaxResults {
		maxResults = twitterMaxResults
	}
	params := url.Values{}
	params.Set("query", t.query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "name,username,profile_image_url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/2/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter request: %w", err)
	}
	defer resp.Body.Close()

	if err := t.quota.RecordCall(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to record supplier call", "source", models.SourceTwitter, "error", err)
	}
	t.trackRateLimit(ctx, resp)

	if err := checkStatus(models.SourceTwitter, resp); err != nil {
		return nil, err
	}

	var body twitterSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode twitter search: %w", err)
	}

	users := make(map[string]twitterUser, len(body.Includes.Users))
	for _, u := range body.Includes.Users {
		users[u.ID] = u
	}

	items := make([]models.ContentItem, 0, len(body.Data))
	for _, tweet := range body.Data {
		if len(items) == limit {
			break
		}
		user, ok := users[tweet.AuthorID]
		if !ok {
			user = twitterUser{Name: "Unknown User", Username: "unknown"}
		}
		items = append(items, models.ContentItem{
			Source:      models.SourceTwitter,
			OriginalID:  tweet.ID,
			Title:       fmt.Sprintf("Tweet by %s (@%s)", user.Name, user.Username),
			Content:     tweet.Text,
			URL:         fmt.Sprintf("https://twitter.com/%s/status/%s", user.Username, tweet.ID),
			Author:      user.Username,
			ImageURL:    user.ProfileImageURL,
			PublishedAt: tweet.CreatedAt,
		})
	}
	return items, nil
}

// trackRateLimit stores the window allowance the platform reports.
func (t *Twitter) trackRateLimit(ctx context.Context, resp *http.Response) {
	remaining, err := strconv.Atoi(resp.Header.Get("x-rate-limit-remaining"))
	if err != nil {
		if resp.StatusCode != http.StatusTooManyRequests {
			return
		}
		remaining = 0
	}
	var resetAt time.Time
	if unix, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64); err == nil {
		resetAt = time.Unix(unix, 0)
	}
	if err := t.quota.SetRemaining(ctx, remaining, resetAt); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to store rate limit", "source", models.SourceTwitter, "error", err)
	}
	if remaining <= t.rateBuffer {
		middleware.Logger.WarnContext(ctx, "Twitter rate limit critical",
			"remaining", remaining,
			"reset_at", resetAt,
		)
	}
}
