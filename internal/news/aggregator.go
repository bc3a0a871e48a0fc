package news

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/upstream"
)

// Fetcher retrieves raw feed text.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

var feedHeader = http.Header{
	"Accept": []string{"application/rss+xml, application/xml, text/xml"},
}

// Aggregator pulls items from a fixed list of feeds. It has no error path:
// per-feed failures are logged and skipped and an empty result is replaced
// by FallbackItem.
type Aggregator struct {
	feeds   []string
	fetcher Fetcher
	now     func() time.Time
}

// NewAggregator creates an Aggregator over feeds, fetched in order.
func NewAggregator(feeds []string, fetcher Fetcher) *Aggregator {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	return &Aggregator{
		feeds:   feeds,
		fetcher: fetcher,
		now:     time.Now,
	}
}

// NewHTTPFetcher returns the default feed fetcher with a per-call timeout, one
// retry and a circuit breaker.
func NewHTTPFetcher(client *http.Client, timeout time.Duration) *upstream.Client {
	return upstream.New("rss", client, upstream.Options{
		Timeout: timeout,
		Backoff: upstream.BackoffConfig{
			MaxRetries:      1,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; NewsBot/1.0)",
		},
	})
}

// GetNews returns between 1 and MaxItems items, newest first.
func (a *Aggregator) GetNews(ctx context.Context) []Item {
	var all []Item
	seen := make(map[string]bool)

	for _, feedURL := range a.feeds {
		if len(all) >= MaxItems {
			break
		}
		if ctx.Err() != nil {
			logger.Warn("news: stopping feed scan: %v", ctx.Err())
			break
		}

		items, err := a.fetchFeed(ctx, feedURL)
		if err != nil {
			logger.Warn("news: fetch %s failed: %v", feedURL, err)
			continue
		}
		logger.Debug("news: parsed %d items from %s", len(items), feedURL)

		for _, it := range items {
			if seen[it.SourceURL] {
				continue
			}
			seen[it.SourceURL] = true
			all = append(all, it)
		}
	}

	if len(all) == 0 {
		logger.Info("news: no feed items available, using fallback")
		return []Item{FallbackItem(a.now())}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if len(all) > MaxItems {
		all = all[:MaxItems]
	}
	return all
}

func (a *Aggregator) fetchFeed(ctx context.Context, feedURL string) ([]Item, error) {
	if a.fetcher == nil {
		return nil, upstream.ErrNoHTTPClient
	}
	body, err := a.fetcher.Get(ctx, feedURL, feedHeader)
	if err != nil {
		return nil, err
	}
	return ExtractFeedItems(string(body), feedURL), nil
}
