package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Selectors lists the CSS selectors tried for each field. Comma-separated
// groups are evaluated as one selection; the first non-empty match wins.
type Selectors struct {
	Cards       []string // tried in order; the first selector with matches wins
	TitleLink   string
	Company     string
	Location    string
	Salary      string
	JobType     string
	Date        string
	Logo        string
	Description string
	DetailTitle string
	Next        []string
	ActivePage  string
}

// DefaultSelectors matches Bayt-style listing and detail markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Cards:       []string{"div.has-pointer-d", "div.job-card", "li.job", "article.job", "li[data-js-job]"},
		TitleLink:   "h2 a, h3 a, a.job-title, a.js-job-title",
		Company:     ".company, .company-name, .jbHeading span a, .jbHeading span, [itemprop=hiringOrganization]",
		Location:    ".location, .jbLoc, .job-location, [itemprop=jobLocation]",
		Salary:      ".salary, .job-salary, [itemprop=baseSalary]",
		JobType:     ".job-type, .jbType, .employment-type, [itemprop=employmentType]",
		Date:        ".date, .jbDate, .job-date, time[datetime], [itemprop=datePosted]",
		Logo:        "img[alt*=logo], img[alt*=Logo], img[src*=logo], img.company-logo",
		Description: ".job-desc, .job-description, .jbDescription, #job-description, [itemprop=description]",
		DetailTitle: "h1, .job-title, h2.jobTitle",
		Next:        []string{"a[rel=next]", "a.next, a.pagination-next, li.next a"},
		ActivePage:  "ul.pagination li.active, ul.pagination li.selected",
	}
}

// Parser turns listing and detail HTML into records. Relative dates are
// resolved against a fixed reference time so re-parsing is deterministic.
// A Parser is safe for concurrent use.
type Parser struct {
	sel Selectors
	ref time.Time
}

func NewParser(ref time.Time) *Parser {
	return NewParserWithSelectors(DefaultSelectors(), ref)
}

func NewParserWithSelectors(sel Selectors, ref time.Time) *Parser {
	return &Parser{sel: sel, ref: ref}
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return doc, nil
}

// firstText returns the cleaned text of the first non-empty match of selector.
func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var out string
	s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = CleanText(el.Text())
		return out == ""
	})
	return out
}

func (p *Parser) dateFrom(s *goquery.Selection) string {
	var out string
	s.Find(p.sel.Date).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if dt, ok := el.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			out = ParseRelativeDate(dt, p.ref)
		} else {
			out = ParseRelativeDate(el.Text(), p.ref)
		}
		return out == ""
	})
	return out
}

func (p *Parser) logoFrom(s *goquery.Selection, pageURL string) string {
	var out string
	s.Find(p.sel.Logo).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := el.Attr(attr); ok {
				if out = ResolveURL(pageURL, v); out != "" {
					return false
				}
			}
		}
		return true
	})
	return out
}

// careerLevelFrom reads "Career Level: X" text anywhere inside s.
func careerLevelFrom(s *goquery.Selection) string {
	text := CleanText(s.Text())
	idx := strings.Index(strings.ToLower(text), "career level:")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(text[idx+len("career level:"):])
	// Stop at the next "Label:" if the value runs into another field.
	if cut := labelBoundary.FindStringIndex(rest); cut != nil {
		rest = strings.TrimSpace(rest[:cut[0]])
	}
	return rest
}
