package supplier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditfeed/internal/featureflags"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
)

// mockWindow is how long generated items keep the same original ids, so
// repeated refreshes inside one window upsert instead of piling up.
const mockWindow = 5 * time.Minute

// Fallback serves generated items when the wrapped supplier fails and the
// supplier_mock_fallback flag is on.
type Fallback struct {
	primary Supplier
	flags   *featureflags.Manager
	now     func() time.Time
}

// WithFallback wraps primary with generated-content fallback.
func WithFallback(primary Supplier, flags *featureflags.Manager) *Fallback {
	return &Fallback{primary: primary, flags: flags, now: time.Now}
}

func (f *Fallback) Source() models.Source { return f.primary.Source() }

func (f *Fallback) Fetch(ctx context.Context, limit int) ([]models.ContentItem, error) {
	items, err := f.primary.Fetch(ctx, limit)
	if err == nil {
		return items, nil
	}
	if !f.flags.On(featureflags.SupplierMockFallback) || ctx.Err() != nil {
		return nil, err
	}

	reason := fallbackReason(err)
	observability.SupplierFallbacks.WithLabelValues(string(f.Source()), reason).Inc()
	middleware.Logger.WarnContext(ctx, "Supplier failed, serving generated content",
		"source", f.Source(),
		"reason", reason,
		"error", err,
	)
	return GenerateItems(f.Source(), limit, f.now()), nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "bad_status"
	}
	return "unreachable"
}

// GenerateItems builds limit placeholder items for source. Output is
// deterministic within one mock window.
func GenerateItems(source models.Source, limit int, now time.Time) []models.ContentItem {
	window := now.Unix() / int64(mockWindow/time.Second)
	faker := gofakeit.New(window + int64(len(source)))
	base := time.Unix(window*int64(mockWindow/time.Second), 0).UTC()

	items := make([]models.ContentItem, 0, limit)
	for i := 0; i < limit; i++ {
		username := faker.Username()
		id := fmt.Sprintf("mock_%s_%d_%d", source, window, i)
		item := models.ContentItem{
			Source:      source,
			OriginalID:  id,
			Content:     faker.Paragraph(1, 3, 12, " "),
			Author:      username,
			PublishedAt: base.Add(-time.Duration(faker.Number(0, 48*60)) * time.Minute),
		}
		switch source {
		case models.SourceTwitter:
			item.Title = fmt.Sprintf("Tweet by %s (@%s)", faker.Name(), username)
			item.Content = faker.HackerPhrase()
			item.URL = fmt.Sprintf("https://twitter.com/%s/status/%s", username, id)
			item.ImageURL = fmt.Sprintf("https://i.pravatar.cc/48?u=%s", username)
		default:
			item.Title = faker.Sentence(8)
			item.URL = fmt.Sprintf("https://reddit.com/r/programming/comments/%s", id)
			if i%4 == 0 {
				item.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/300/200", id)
			}
		}
		items = append(items, item)
	}
	return items
}
