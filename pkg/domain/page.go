package domain

// Page identifies a site page eligible for indexing. Defined in config,
// immutable for the lifetime of the process.
type Page struct {
	URL   string
	Title string
}

// Section is the atomic unit of the search index: a heading plus the text
// that belongs to it. Text includes the heading itself.
type Section struct {
	Heading string
	Text    string
}

// PageEntry holds the indexed sections of one successfully fetched page.
// Entries are created once per index build and never mutated afterwards.
type PageEntry struct {
	URL      string
	Title    string
	Sections []Section
}

// SearchResult is a single ranked hit produced for a query. Transient,
// never persisted.
type SearchResult struct {
	PageTitle      string `json:"pageTitle"`
	SectionHeading string `json:"sectionHeading"`
	URL            string `json:"url"`
	Snippet        string `json:"snippet"`
}
