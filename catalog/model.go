package catalog

// SearchItem is one volume in a search page.
type SearchItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	CoverImageURL string   `json:"cover_image_url,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
}

// SearchResult is one page of catalog search results.
type SearchResult struct {
	Items      []SearchItem `json:"items"`
	TotalItems int          `json:"total_items"`
}

// BookDetail is the full record for one volume.
type BookDetail struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	CoverImageURL string   `json:"cover_image_url,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// bookEntry is what gets cached under book:<id>. Found=false is a tombstone
// for a volume the upstream does not know.
type bookEntry struct {
	Found bool        `json:"found"`
	Book  *BookDetail `json:"book,omitempty"`
}

func emptySearch() SearchResult {
	return SearchResult{Items: []SearchItem{}}
}
