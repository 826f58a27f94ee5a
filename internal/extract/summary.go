package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"relentless-jobs/internal/models"
)

// SummaryPage is the parse result of one search-results page.
type SummaryPage struct {
	Records   []models.PartialRecord
	NextURL   string // absolute; "" when the page has no next affordance
	Anomalies []models.Anomaly
}

// ParseSummary extracts listing cards and the next-page link. Cards without
// a usable link are skipped and reported as parse anomalies; a card with a
// link but no title is kept so the detail page can supply the title.
// Ordinal.Card is set; the caller owns the search and page indexes.
func (p *Parser) ParseSummary(body []byte, pageURL, searchURL string) (SummaryPage, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return SummaryPage{}, err
	}

	var page SummaryPage
	cards := p.cards(doc)
	cards.Each(func(i int, card *goquery.Selection) {
		rec, reason := p.parseCard(card, pageURL, searchURL)
		if reason != "" {
			page.Anomalies = append(page.Anomalies, models.Anomaly{
				Kind:      models.AnomalyParse,
				SearchURL: searchURL,
				URL:       pageURL,
				Message:   fmt.Sprintf("card %d: %s", i, reason),
			})
			return
		}
		rec.Ordinal.Card = i
		page.Records = append(page.Records, rec)
	})
	page.NextURL = p.nextURL(doc, pageURL)
	return page, nil
}

func (p *Parser) cards(doc *goquery.Document) *goquery.Selection {
	for _, selector := range p.sel.Cards {
		if found := doc.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return doc.FindNodes()
}

func (p *Parser) parseCard(card *goquery.Selection, pageURL, searchURL string) (models.PartialRecord, string) {
	anchor := card.Find(p.sel.TitleLink).First()
	if anchor.Length() == 0 {
		anchor = card.Find("a[href]").First()
	}
	title := CleanText(anchor.Text())
	if title == "" {
		title = CleanText(anchor.AttrOr("title", ""))
	}
	link := CanonicalLink(ResolveURL(pageURL, anchor.AttrOr("href", "")))
	if link == "" {
		if title == "" {
			return models.PartialRecord{}, "missing title and link"
		}
		return models.PartialRecord{}, "missing link"
	}

	return models.PartialRecord{
		SearchURL:   searchURL,
		Title:       title,
		Link:        link,
		Company:     firstText(card, p.sel.Company),
		Location:    firstText(card, p.sel.Location),
		Salary:      firstText(card, p.sel.Salary),
		Type:        firstText(card, p.sel.JobType),
		CareerLevel: careerLevelFrom(card),
		CompanyLogo: p.logoFrom(card, pageURL),
		CreatedAt:   p.dateFrom(card),
	}, ""
}

// nextURL tries rel=next, then explicit next classes, then the page after the
// active pagination item.
func (p *Parser) nextURL(doc *goquery.Document, pageURL string) string {
	for _, selector := range p.sel.Next {
		var out string
		doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			out = ResolveURL(pageURL, a.AttrOr("href", ""))
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	if p.sel.ActivePage == "" {
		return ""
	}
	active := doc.Find(p.sel.ActivePage).First()
	if active.Length() == 0 {
		return ""
	}
	return ResolveURL(pageURL, active.NextFiltered("li").Find("a").First().AttrOr("href", ""))
}
