package models

// CrawlTask is one page of a search URL's pagination chain.
type CrawlTask struct {
	SearchURL   string `json:"search_url"`
	SearchIndex int    `json:"search_index"`
	PageIndex   int    `json:"page_index"` // 1-based
	URL         string `json:"url"`
}

// Next builds the task for the following page.
func (t CrawlTask) Next(url string) CrawlTask {
	return CrawlTask{
		SearchURL:   t.SearchURL,
		SearchIndex: t.SearchIndex,
		PageIndex:   t.PageIndex + 1,
		URL:         url,
	}
}
