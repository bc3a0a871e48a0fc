package news

import (
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ExtractFeedItems scans raw RSS text for up to MaxItems <item> blocks. It is a
// delimiter scanner, not an XML parser: tag values may be plain or wrapped in
// CDATA, tag names match case-insensitively, and items without both a title
// and a link are dropped.
func ExtractFeedItems(raw, feedURL string) []Item {
	source := sourceName(raw, feedURL)
	lower := asciiLower(raw)

	var items []Item
	pos := 0
	for len(items) < MaxItems {
		start := indexTag(lower, "item", pos)
		if start < 0 {
			break
		}
		openEnd := strings.IndexByte(lower[start:], '>')
		if openEnd < 0 {
			break
		}
		bodyStart := start + openEnd + 1
		closeIdx := strings.Index(lower[bodyStart:], "</item>")
		if closeIdx < 0 {
			break
		}
		bodyEnd := bodyStart + closeIdx
		pos = bodyEnd + len("</item>")

		block := raw[bodyStart:bodyEnd]
		title := StripHTML(tagValue(block, "title"))
		link := strings.TrimSpace(tagValue(block, "link"))
		if title == "" || link == "" {
			continue
		}

		items = append(items, Item{
			Title:       title,
			Summary:     Truncate(StripHTML(tagValue(block, "description")), SummaryLimit),
			SourceURL:   link,
			PublishedAt: parseDate(tagValue(block, "pubDate")),
			SourceName:  source,
		})
	}
	return items
}

// tagValue returns the trimmed text of the first <tag>...</tag> in xml,
// unwrapping CDATA.
func tagValue(xml, tag string) string {
	lower := asciiLower(xml)
	start := indexTag(lower, asciiLower(tag), 0)
	if start < 0 {
		return ""
	}
	openEnd := strings.IndexByte(lower[start:], '>')
	if openEnd < 0 {
		return ""
	}
	valueStart := start + openEnd + 1
	closing := "</" + asciiLower(tag) + ">"
	closeIdx := strings.Index(lower[valueStart:], closing)
	if closeIdx < 0 {
		return ""
	}

	value := strings.TrimSpace(xml[valueStart : valueStart+closeIdx])
	if strings.HasPrefix(value, "<![CDATA[") && strings.HasSuffix(value, "]]>") {
		value = value[len("<![CDATA[") : len(value)-len("]]>")]
	}
	return strings.TrimSpace(value)
}

// indexTag finds an opening <tag> or <tag attr...> at or after from. lower and
// tag must already be lower-cased.
func indexTag(lower, tag string, from int) int {
	open := "<" + tag
	for from < len(lower) {
		i := strings.Index(lower[from:], open)
		if i < 0 {
			return -1
		}
		i += from
		next := i + len(open)
		if next < len(lower) {
			switch lower[next] {
			case '>', ' ', '\t', '\n', '\r', '/':
				return i
			}
		}
		from = next
	}
	return -1
}

// asciiLower lower-cases ASCII letters only, so byte offsets stay aligned with
// the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func sourceName(raw, feedURL string) string {
	name := StripHTML(tagValue(raw, "title"))
	if name != "" {
		name = strings.TrimSuffix(name, " - RSS")
		name = strings.TrimSuffix(name, " RSS")
		return strings.TrimSpace(name)
	}
	if u, err := url.Parse(feedURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return feedURL
}

// parseDate parses an RSS pubDate. Unparseable or empty dates map to the Unix
// epoch so they sort oldest.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Unix(0, 0).UTC()
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return t.UTC()
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.UTC()
	}
	return time.Unix(0, 0).UTC()
}
