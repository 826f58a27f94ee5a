package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relentless-jobs/internal/models"
)

const (
	searchURL = "https://www.bayt.com/en/uae/jobs/software-engineer-jobs/"
	detailURL = "https://www.bayt.com/en/uae/jobs/senior-go-engineer-4901001"
)

var refTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func TestParseSummaryCards(t *testing.T) {
	p := NewParser(refTime)
	page, err := p.ParseSummary(readFixture(t, "search_page1.html"), searchURL, searchURL)
	require.NoError(t, err)
	require.Len(t, page.Records, 3)

	first := page.Records[0]
	assert.Equal(t, "Senior Go Engineer", first.Title)
	assert.Equal(t, "https://www.bayt.com/en/uae/jobs/senior-go-engineer-4901001", first.Link)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Dubai, UAE", first.Location)
	assert.Equal(t, "AED 20,000 - 25,000", first.Salary)
	assert.Equal(t, "2024-03-08", first.CreatedAt)
	assert.Equal(t, "https://www.bayt.com/logos/acme.png", first.CompanyLogo)
	assert.Equal(t, searchURL, first.SearchURL)
	assert.Equal(t, 0, first.Ordinal.Card)

	second := page.Records[1]
	assert.Equal(t, "https://www.bayt.com/en/uae/jobs/backend-developer-4901002", second.Link)
	assert.Equal(t, "Globex", second.Company)
	assert.Equal(t, "", second.Salary)
	assert.Equal(t, "2024-03-09", second.CreatedAt)
	assert.Equal(t, "Mid Career", second.CareerLevel)
	assert.Equal(t, 1, second.Ordinal.Card)

	untitled := page.Records[2]
	assert.Equal(t, "", untitled.Title)
	assert.Equal(t, "https://www.bayt.com/en/uae/jobs/untitled-4901004", untitled.Link)
	assert.Equal(t, 3, untitled.Ordinal.Card)

	require.Len(t, page.Anomalies, 1)
	assert.Equal(t, models.AnomalyParse, page.Anomalies[0].Kind)
	assert.Equal(t, searchURL, page.Anomalies[0].SearchURL)
	assert.Contains(t, page.Anomalies[0].Message, "card 2: missing link")

	assert.Equal(t, searchURL+"?page=2", page.NextURL)
}

func TestParseSummaryIsIdempotent(t *testing.T) {
	p := NewParser(refTime)
	body := readFixture(t, "search_page1.html")
	a, err := p.ParseSummary(body, searchURL, searchURL)
	require.NoError(t, err)
	b, err := p.ParseSummary(body, searchURL, searchURL)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseSummaryEmptyPage(t *testing.T) {
	page, err := NewParser(refTime).ParseSummary(readFixture(t, "empty.html"), searchURL, searchURL)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.Anomalies)
	assert.Equal(t, "", page.NextURL)
}

func TestParseSummaryNextAffordances(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "rel next",
			html: `<div class="job-card"><h3><a href="/job/1">A</a></h3></div><a rel="next" href="?page=3">next</a>`,
			want: searchURL + "?page=3",
		},
		{
			name: "next class",
			html: `<div class="job-card"><h3><a href="/job/1">A</a></h3></div><ul><li class="next"><a href="/p/2">»</a></li></ul>`,
			want: "https://www.bayt.com/p/2",
		},
		{
			name: "last page",
			html: `<div class="job-card"><h3><a href="/job/1">A</a></h3></div><ul class="pagination"><li><a href="?page=1">1</a></li><li class="selected"><a href="?page=2">2</a></li></ul>`,
			want: "",
		},
		{
			name: "fragment only",
			html: `<div class="job-card"><h3><a href="/job/1">A</a></h3></div><a rel="next" href="#">next</a>`,
			want: "",
		},
	}
	p := NewParser(refTime)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := p.ParseSummary([]byte(tc.html), searchURL, searchURL)
			require.NoError(t, err)
			require.Len(t, page.Records, 1)
			assert.Equal(t, tc.want, page.NextURL)
		})
	}
}

func TestParseSummaryFallsBackToFirstAnchor(t *testing.T) {
	html := `<article class="job"><span class="company">Initech</span><a href="/jobs/42/" title="Tester">Tester</a></article>`
	page, err := NewParser(refTime).ParseSummary([]byte(html), searchURL, searchURL)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Tester", page.Records[0].Title)
	assert.Equal(t, "https://www.bayt.com/jobs/42", page.Records[0].Link)
	assert.Equal(t, "Initech", page.Records[0].Company)
}

func TestParseSummaryKeepsCardWithoutTitleText(t *testing.T) {
	html := `<div class="job-card"><h2><a href="/job/x"><img src="/logo.png"></a></h2></div>` +
		`<div class="job-card"><h2><a href="javascript:void(0)"></a></h2></div>`
	page, err := NewParser(refTime).ParseSummary([]byte(html), searchURL, searchURL)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "", page.Records[0].Title)
	assert.Equal(t, "https://www.bayt.com/job/x", page.Records[0].Link)
	require.Len(t, page.Anomalies, 1)
	assert.Contains(t, page.Anomalies[0].Message, "missing title and link")
}

func TestParseDetailSuppliesMissingTitle(t *testing.T) {
	partial := models.PartialRecord{SearchURL: searchURL, Link: detailURL, Company: "Acme"}
	rec, err := NewParser(refTime).ParseDetail([]byte(`<html><body><h1>Senior Go Engineer</h1></body></html>`), detailURL, partial)
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Engineer", rec.JobTitle)
	assert.Equal(t, "Acme", rec.JobCompany)
}

func TestParseDetailMergesWithSummary(t *testing.T) {
	p := NewParser(refTime)
	summary, err := p.ParseSummary(readFixture(t, "search_page1.html"), searchURL, searchURL)
	require.NoError(t, err)
	partial := summary.Records[0]

	rec, err := p.ParseDetail(readFixture(t, "detail.html"), detailURL, partial)
	require.NoError(t, err)

	assert.Equal(t, models.JobRecord{
		SearchURL:      searchURL,
		JobTitle:       "Senior Go Engineer",
		JobLink:        "https://www.bayt.com/en/uae/jobs/senior-go-engineer-4901001",
		JobSalary:      "AED 20,000 - 25,000",
		JobType:        "Full Time",
		JobCareerLevel: "Mid Career",
		JobCompanyLogo: "https://cdn.example.com/acme.png",
		JobCompany:     "Acme Corp",
		JobLocation:    "Dubai, UAE",
		JobDescription: "Build payment services in Go. Work with Kafka and Redis.",
		JobCreatedAt:   "2024-02-18",
	}, rec)
}

func TestParseDetailBackfillsEmptySummaryFields(t *testing.T) {
	partial := models.PartialRecord{SearchURL: searchURL, Title: "Go Dev", Link: detailURL}
	rec, err := NewParser(refTime).ParseDetail(readFixture(t, "detail.html"), detailURL, partial)
	require.NoError(t, err)
	assert.Equal(t, "Go Dev", rec.JobTitle)
	assert.Equal(t, "Acme Corporation", rec.JobCompany)
	assert.Equal(t, "Dubai, United Arab Emirates", rec.JobLocation)
	assert.Equal(t, "AED 22,000", rec.JobSalary)
}

func TestParseDetailMissingElementsAreEmpty(t *testing.T) {
	partial := models.PartialRecord{SearchURL: searchURL, Title: "Go Dev", Link: detailURL, Company: "Acme"}
	rec, err := NewParser(refTime).ParseDetail([]byte("<html><body><h1>Go Dev</h1></body></html>"), detailURL, partial)
	require.NoError(t, err)
	assert.Equal(t, partial.Record(), rec)
}

func TestParseDetailIsIdempotent(t *testing.T) {
	p := NewParser(refTime)
	partial := models.PartialRecord{SearchURL: searchURL, Title: "Go Dev", Link: detailURL}
	body := readFixture(t, "detail.html")
	a, err := p.ParseDetail(body, detailURL, partial)
	require.NoError(t, err)
	b, err := p.ParseDetail(body, detailURL, partial)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
