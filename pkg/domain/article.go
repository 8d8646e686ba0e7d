package domain

import "time"

// Article is a normalized news item produced by the feed pipeline.
// Title serves as the deduplication key across all sources.
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Icon        string    `json:"icon"`
}
