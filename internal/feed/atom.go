package feed

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// warningTitles are the feed entry titles that carry VPWW54-class reports.
// The JMA renamed the entry when emergency warnings were introduced, so both
// forms are accepted.
var warningTitles = map[string]bool{
	"気象特別警報・警報・注意報": true,
	"気象警報・注意報":      true,
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Updated string      `xml:"updated"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Author  atomAuthor `xml:"author"`
	Content string     `xml:"content"`
	Links   []atomLink `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ReportRef points at one inner report discovered in the outer feed.
type ReportRef struct {
	Office  string
	URL     string
	Updated time.Time
}

// FindLatestReports scans the outer Atom feed for warning report entries and
// returns, per monitored office, the most recently updated report reference.
// Offices with no matching entry are simply absent from the result.
func FindLatestReports(data []byte, offices []string) (map[string]ReportRef, error) {
	var f atomFeed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error decoding feed: %w", err)
	}

	latest := make(map[string]ReportRef)
	for _, e := range f.Entries {
		if !warningTitles[e.Title] {
			continue
		}

		url := e.reportURL()
		if url == "" {
			continue
		}

		updated, err := time.Parse(time.RFC3339, e.Updated)
		if err != nil {
			slog.Warn("feed entry timestamp parsing failed", "id", e.ID, "error", err.Error())
		}

		for _, office := range offices {
			if !e.matchesOffice(office) {
				continue
			}
			if prev, ok := latest[office]; !ok || updated.After(prev.Updated) {
				latest[office] = ReportRef{Office: office, URL: url, Updated: updated}
			}
		}
	}

	return latest, nil
}

// reportURL prefers the entry id, which the JMA feed sets to the document
// URL, and falls back to the first link.
func (e atomEntry) reportURL() string {
	if strings.HasPrefix(e.ID, "http") {
		return e.ID
	}
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	return ""
}

func (e atomEntry) matchesOffice(office string) bool {
	return e.Author.Name == office || strings.Contains(e.Content, office)
}
