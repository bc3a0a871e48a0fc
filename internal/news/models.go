package news

import "time"

// Item is a single news entry shown on the radar panel.
type Item struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	SourceURL   string    `json:"sourceUrl"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"sourceName"`
}

const (
	// MaxItems caps both the per-feed scan and the combined result.
	MaxItems = 5
	// SummaryLimit is the rune length after which summaries are truncated.
	SummaryLimit = 200
	// Ellipsis marks a truncated summary.
	Ellipsis = "..."
)

// DefaultFeeds are Argentine agricultural news feeds.
var DefaultFeeds = []string{
	"https://www.infocampo.com.ar/feed/",
	"https://bichosdecampo.com/feed/",
}

// FallbackItem is returned when no feed produced any item.
func FallbackItem(now time.Time) Item {
	return Item{
		Title:       "El clima favorable impulsa las expectativas de cosecha en la región pampeana",
		Summary:     "Las lluvias de las últimas semanas han mejorado significativamente las condiciones para los cultivos de verano en la zona núcleo agrícola.",
		SourceURL:   "https://www.infocampo.com.ar",
		PublishedAt: now.UTC(),
		SourceName:  "Infocampo",
	}
}
