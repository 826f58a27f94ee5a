package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"relentless-jobs/internal/models"
)

type detailField int

const (
	fieldNone detailField = iota
	fieldType
	fieldCareerLevel
	fieldSalary
	fieldLocation
	fieldCompany
	fieldDate
)

var labelFields = map[string]detailField{
	"job type":        fieldType,
	"employment type": fieldType,
	"career level":    fieldCareerLevel,
	"salary":          fieldSalary,
	"monthly salary":  fieldSalary,
	"job location":    fieldLocation,
	"location":        fieldLocation,
	"company":         fieldCompany,
	"company name":    fieldCompany,
	"posted":          fieldDate,
	"posted on":       fieldDate,
	"date posted":     fieldDate,
}

// labelBoundary finds the start of the next known "Label:" in run-on text.
var labelBoundary = regexp.MustCompile(`(?i)\b(job type|employment type|career level|monthly salary|salary|job location|location|company name|company|date posted|posted on|job role|industry|nationality|degree|years of experience|gender)\s*:`)

const blockChildren = "div, li, p, ul, ol, dl, table, section, article"

// ParseDetail completes partial with fields from a listing's detail page.
// Summary values for title, company, location and salary win; the detail
// page only fills them when the card left them empty. Missing elements give
// empty strings.
func (p *Parser) ParseDetail(body []byte, pageURL string, partial models.PartialRecord) (models.JobRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return models.JobRecord{}, err
	}
	root := doc.Selection
	labels := labelPairs(root)

	detail := models.JobRecord{
		JobTitle:       firstText(root, p.sel.DetailTitle),
		JobSalary:      firstNonEmpty(firstText(root, p.sel.Salary), labels[fieldSalary]),
		JobType:        firstNonEmpty(firstText(root, p.sel.JobType), labels[fieldType]),
		JobCareerLevel: firstNonEmpty(labels[fieldCareerLevel], careerLevelFrom(root)),
		JobCompanyLogo: p.logoFrom(root, pageURL),
		JobCompany:     firstNonEmpty(firstText(root, p.sel.Company), labels[fieldCompany]),
		JobLocation:    firstNonEmpty(firstText(root, p.sel.Location), labels[fieldLocation]),
		JobDescription: p.description(root),
		JobCreatedAt:   p.dateFrom(root),
	}
	if detail.JobCreatedAt == "" && labels[fieldDate] != "" {
		detail.JobCreatedAt = ParseRelativeDate(labels[fieldDate], p.ref)
	}

	// Card values lead for title, salary, company and location; the detail
	// page leads for the rest. Backfill then fills whatever is still empty.
	summary := partial.Record()
	merged := models.JobRecord{
		SearchURL:      partial.SearchURL,
		JobTitle:       summary.JobTitle,
		JobLink:        partial.Link,
		JobSalary:      summary.JobSalary,
		JobType:        detail.JobType,
		JobCareerLevel: detail.JobCareerLevel,
		JobCompanyLogo: detail.JobCompanyLogo,
		JobCompany:     summary.JobCompany,
		JobLocation:    summary.JobLocation,
		JobDescription: detail.JobDescription,
		JobCreatedAt:   detail.JobCreatedAt,
	}
	return merged.Backfill(summary).Backfill(detail), nil
}

func (p *Parser) description(root *goquery.Selection) string {
	if text := firstText(root, p.sel.Description); text != "" {
		return text
	}
	return firstText(root, "p")
}

// labelPairs collects "Label: value" pairs from definition lists and from
// leaf-level elements. The first value seen for a field wins.
func labelPairs(root *goquery.Selection) map[detailField]string {
	out := make(map[detailField]string)
	set := func(label, value string) {
		field := labelFields[strings.ToLower(strings.TrimSuffix(CleanText(label), ":"))]
		value = CleanText(value)
		if field == fieldNone || value == "" {
			return
		}
		if _, ok := out[field]; !ok {
			out[field] = value
		}
	}

	root.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		set(dt.Text(), dt.NextFiltered("dd").Text())
	})

	root.Find("li, div, p, span").Each(func(_ int, el *goquery.Selection) {
		if el.Find(blockChildren).Length() > 0 {
			return
		}
		text := CleanText(el.Text())
		if len(text) > 200 {
			return
		}
		label, value, ok := strings.Cut(text, ":")
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		if cut := labelBoundary.FindStringIndex(value); cut != nil {
			value = value[:cut[0]]
		}
		set(label, value)
	})
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
