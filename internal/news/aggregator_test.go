package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (s *stubFetcher) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	s.calls = append(s.calls, url)
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	return []byte(s.bodies[url]), nil
}

func feedWith(title string, entries ...[2]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<rss><channel><title>%s</title>", title)
	for _, e := range entries {
		fmt.Fprintf(&b, "<item><title>%s</title><link>https://news.example/%s</link><pubDate>%s</pubDate></item>", e[0], e[0], e[1])
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func TestGetNewsFallbackWhenNothingReachable(t *testing.T) {
	f := &stubFetcher{errs: map[string]error{
		"a": errors.New("dial tcp: refused"),
		"b": errors.New("503"),
	}}
	agg := NewAggregator([]string{"a", "b"}, f)
	fixed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	items := agg.GetNews(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, FallbackItem(fixed), items[0])
	assert.Equal(t, []string{"a", "b"}, f.calls)
}

func TestGetNewsFallbackOnEmptyFeeds(t *testing.T) {
	f := &stubFetcher{bodies: map[string]string{"a": "<rss></rss>", "b": "garbage"}}
	items := NewAggregator([]string{"a", "b"}, f).GetNews(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "Infocampo", items[0].SourceName)
}

func TestGetNewsSkipsFailedFeed(t *testing.T) {
	f := &stubFetcher{
		errs:   map[string]error{"a": errors.New("timeout")},
		bodies: map[string]string{"b": feedWith("B", [2]string{"uno", "Mon, 05 Jan 2026 10:00:00 +0000"})},
	}
	items := NewAggregator([]string{"a", "b"}, f).GetNews(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "uno", items[0].Title)
	assert.Equal(t, "B", items[0].SourceName)
}

func TestGetNewsStopsAfterFiveAndSorts(t *testing.T) {
	f := &stubFetcher{bodies: map[string]string{
		"a": feedWith("A",
			[2]string{"a1", "Mon, 05 Jan 2026 10:00:00 +0000"},
			[2]string{"a2", "bogus"},
			[2]string{"a3", "Wed, 07 Jan 2026 10:00:00 +0000"},
		),
		"b": feedWith("B",
			[2]string{"b1", "Tue, 06 Jan 2026 10:00:00 +0000"},
			[2]string{"b2", "Thu, 08 Jan 2026 10:00:00 +0000"},
			[2]string{"b3", "Fri, 02 Jan 2026 10:00:00 +0000"},
		),
		"c": feedWith("C", [2]string{"c1", "Sat, 10 Jan 2026 10:00:00 +0000"}),
	}}

	items := NewAggregator([]string{"a", "b", "c"}, f).GetNews(context.Background())
	require.Len(t, items, MaxItems)
	// Six items were collected from a and b, so c is never fetched.
	assert.Equal(t, []string{"a", "b"}, f.calls)

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].PublishedAt.After(items[i-1].PublishedAt), "items not sorted at %d", i)
	}
	assert.Equal(t, "b2", items[0].Title)
	assert.Equal(t, "a3", items[1].Title)
	assert.Equal(t, "b1", items[2].Title)
	assert.Equal(t, "a1", items[3].Title)
	assert.Equal(t, "b3", items[4].Title)
}

func TestGetNewsDeduplicatesByLink(t *testing.T) {
	dup := feedWith("A", [2]string{"same", "Mon, 05 Jan 2026 10:00:00 +0000"})
	f := &stubFetcher{bodies: map[string]string{"a": dup, "b": dup}}
	items := NewAggregator([]string{"a", "b"}, f).GetNews(context.Background())
	require.Len(t, items, 1)
}

func TestGetNewsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "NewsBot")
		assert.Contains(t, r.Header.Get("Accept"), "application/rss+xml")
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(feedWith("Campo RSS", [2]string{"ok", "Mon, 05 Jan 2026 10:00:00 +0000"})))
	}))
	defer srv.Close()

	agg := NewAggregator([]string{srv.URL + "/down", srv.URL + "/feed"}, NewHTTPFetcher(srv.Client(), time.Second))
	items := agg.GetNews(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Title)
	assert.Equal(t, "Campo", items[0].SourceName)
}
