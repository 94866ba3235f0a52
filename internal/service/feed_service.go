package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"
	"creditfeed/internal/policy"
	"creditfeed/internal/repository"
	"creditfeed/internal/supplier"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const DefaultFetchLimit = 5

// SourceResult is one supplier's share of a refresh.
type SourceResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Matched int    `json:"matched"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// RefreshResult summarizes a refresh across all suppliers. Success means at
// least one source contributed an item.
type RefreshResult struct {
	Success    bool                           `json:"success"`
	TotalCount int                            `json:"total_count"`
	PerSource  map[models.Source]SourceResult `json:"per_source"`
}

type FeedServiceOptions struct {
	FetchLimit      int
	SupplierTimeout time.Duration
	// StorageTimeout bounds the upsert of one source's batch.
	StorageTimeout time.Duration
}

// FeedService pulls content from suppliers into the store and serves the feed.
type FeedService struct {
	content   repository.ContentRepository
	suppliers []supplier.Supplier
	users     repository.UserRepository
	opts      FeedServiceOptions
	mu        sync.Mutex
}

func NewFeedService(content repository.ContentRepository, users repository.UserRepository, suppliers []supplier.Supplier, opts FeedServiceOptions) *FeedService {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = defaultStorageTimeout
	}
	return &FeedService{content: content, users: users, suppliers: suppliers, opts: opts}
}

// Sources lists the configured supplier sources in a stable order.
func (s *FeedService) Sources() []models.Source {
	out := make([]models.Source, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup.Source())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Refresh fetches every supplier concurrently and upserts what each returns.
// A failing source never affects the others; its slot carries the error.
// Overlapping refreshes are serialized.
func (s *FeedService) Refresh(ctx context.Context) RefreshResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]SourceResult, len(s.suppliers))
	g, gctx := errgroup.WithContext(ctx)
	for i, sup := range s.suppliers {
		i, sup := i, sup
		g.Go(func() error {
			results[i] = s.refreshSource(gctx, sup)
			return nil
		})
	}
	_ = g.Wait()

	out := RefreshResult{PerSource: make(map[models.Source]SourceResult, len(s.suppliers))}
	for i, sup := range s.suppliers {
		res := results[i]
		out.PerSource[sup.Source()] = res
		if res.Success {
			out.TotalCount += res.Count
		}
	}
	out.Success = out.TotalCount > 0

	middleware.Logger.InfoContext(ctx, "Feed refresh finished",
		"success", out.Success,
		"total_count", out.TotalCount,
	)
	return out
}

func (s *FeedService) refreshSource(ctx context.Context, sup supplier.Supplier) (res SourceResult) {
	source := sup.Source()
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "feed", "refresh_source", attribute.String("source", string(source)))
	defer func() {
		observability.ObserveRefresh(string(source), res.Count, res.Success, start)
		var spanErr error
		if !res.Success && res.Error != "" {
			spanErr = models.NewSupplierError(source, nil)
		}
		observability.EndSpan(span, spanErr)
	}()

	fetchCtx := ctx
	if s.opts.SupplierTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.opts.SupplierTimeout)
		defer cancel()
	}

	items, err := sup.Fetch(fetchCtx, s.opts.FetchLimit)
	if err != nil {
		appErr := models.NewSupplierError(source, err)
		middleware.Logger.WarnContext(ctx, "Supplier fetch failed", "source", source, "error", err)
		return SourceResult{Error: appErr.Error()}
	}
	if len(items) == 0 {
		return SourceResult{Success: true}
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	upserted, err := s.content.UpsertBatch(storeCtx, items)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to store refreshed items", "source", source, "error", err)
		return SourceResult{Error: err.Error()}
	}

	middleware.Logger.InfoContext(ctx, "Stored supplier items",
		"source", source,
		"count", len(items),
		"matched", upserted.Matched,
		"created", upserted.Created,
	)
	return SourceResult{
		Success: true,
		Count:   upserted.Matched + upserted.Created,
		Matched: upserted.Matched,
		Created: upserted.Created,
	}
}

// RefreshAs checks that actor may trigger a refresh before running it.
func (s *FeedService) RefreshAs(ctx context.Context, actorID uint) (*RefreshResult, error) {
	if err := s.require(ctx, actorID, policy.ActionRefreshFeed); err != nil {
		return nil, err
	}
	result := s.Refresh(ctx)
	return &result, nil
}

// RunScheduler refreshes every interval until ctx is done.
func (s *FeedService) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	middleware.Logger.Info("Feed refresh scheduler started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			middleware.Logger.Info("Feed refresh scheduler stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Feed returns one page of visible items, optionally for one source.
func (s *FeedService) Feed(ctx context.Context, page, pageSize int, source models.Source) (*repository.ContentPage, error) {
	if source != "" && !source.Valid() {
		return nil, models.NewValidationError("Unsupported source: " + string(source))
	}
	return s.content.FindPage(ctx, repository.ContentFilter{Source: source}, page, pageSize)
}

func (s *FeedService) Item(ctx context.Context, id uint) (*models.ContentItem, error) {
	return s.content.GetByID(ctx, id)
}

func (s *FeedService) SavedFeed(ctx context.Context, userID uint, page, pageSize int) (*repository.ContentPage, error) {
	return s.content.ListSavedBy(ctx, userID, page, pageSize)
}

func (s *FeedService) ReportedFeed(ctx context.Context, actorID uint, page, pageSize int) (*repository.ContentPage, error) {
	if err := s.require(ctx, actorID, policy.ActionModerateContent); err != nil {
		return nil, err
	}
	return s.content.ListReported(ctx, page, pageSize)
}

// ClearReports removes every report on an item.
func (s *FeedService) ClearReports(ctx context.Context, actorID, itemID uint) (*models.ContentItem, error) {
	if err := s.require(ctx, actorID, policy.ActionModerateContent); err != nil {
		return nil, err
	}
	item, err := s.content.ClearReports(ctx, itemID)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "Reports cleared", "admin_id", actorID, "content_id", itemID)
	return item, nil
}

// RemoveItem deletes an item together with its saves and reports.
func (s *FeedService) RemoveItem(ctx context.Context, actorID, itemID uint) error {
	if err := s.require(ctx, actorID, policy.ActionModerateContent); err != nil {
		return err
	}
	if err := s.content.Delete(ctx, itemID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Content item removed", "admin_id", actorID, "content_id", itemID)
	return nil
}

func (s *FeedService) require(ctx context.Context, actorID uint, action policy.Action) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	return policy.Require(policy.ActorFor(actor), action)
}
