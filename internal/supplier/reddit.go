package supplier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"creditfeed/internal/models"
)

const (
	defaultRedditBaseURL   = "https://www.reddit.com"
	defaultRedditSubreddit = "programming"
	defaultRedditUserAgent = "creditfeed/1.0"
)

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// RedditOptions configures the Reddit adapter.
type RedditOptions struct {
	BaseURL    string
	Subreddit  string
	UserAgent  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Reddit reads the hot listing of one subreddit.
type Reddit struct {
	baseURL    string
	subreddit  string
	userAgent  string
	httpClient *http.Client
}

func NewReddit(opts RedditOptions) *Reddit {
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
		baseURL = defaultRedditBaseURL
	}
	subreddit := strings.TrimSpace(opts.Subreddit)
	if subreddit == "" {
		subreddit = defaultRedditSubreddit
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultRedditUserAgent
	}
	return &Reddit{baseURL: baseURL, subreddit: subreddit, userAgent: userAgent, httpClient: httpClient}
}

func (r *Reddit) Source() models.Source { return models.SourceReddit }

type redditListing struct {
	Data *struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Selftext            string  `json:"selftext"`
	URL                 string  `json:"url"`
	URLOverriddenByDest string  `json:"url_overridden_by_dest"`
	Permalink           string  `json:"permalink"`
	Author              string  `json:"author"`
	CreatedUTC          float64 `json:"created_utc"`
	Thumbnail           string  `json:"thumbnail"`
	RemovedByCategory   *string `json:"removed_by_category"`
	Preview             *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

func (r *Reddit) Fetch(ctx context.Context, limit int) ([]models.ContentItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", r.baseURL, url.PathEscape(r.subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(models.SourceReddit, resp); err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode reddit listing: %w", err)
	}
	if listing.Data == nil {
		return nil, fmt.Errorf("reddit listing has no data")
	}

	items := make([]models.ContentItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.ID == "" || post.RemovedByCategory != nil || isPlaceholder(post.Title) {
			continue
		}
		items = append(items, post.toItem())
	}
	return items, nil
}

func (p redditPost) toItem() models.ContentItem {
	content := p.Selftext
	if content == "" {
		content = p.Title
	}
	link := p.URLOverriddenByDest
	if link == "" {
		link = "https://reddit.com" + p.Permalink
	}
	return models.ContentItem{
		Source:      models.SourceReddit,
		OriginalID:  p.ID,
		Title:       p.Title,
		Content:     content,
		URL:         link,
		Author:      p.Author,
		ImageURL:    p.imageURL(),
		PublishedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}
}

// imageURL prefers the preview image, then a real thumbnail, then the link
// itself when it points at an image file.
func (p redditPost) imageURL() string {
	if p.Preview != nil && len(p.Preview.Images) > 0 && p.Preview.Images[0].Source.URL != "" {
		return strings.ReplaceAll(p.Preview.Images[0].Source.URL, "&amp;", "&")
	}
	if strings.HasPrefix(p.Thumbnail, "http") {
		return p.Thumbnail
	}
	if imageExtPattern.MatchString(p.URL) {
		return p.URL
	}
	return ""
}
