package models

// Ordinal is the discovery position of a listing: search URL index, page, card.
// Sorting by ordinal gives deterministic output regardless of fetch completion order.
type Ordinal struct {
	Search int `json:"search"`
	Page   int `json:"page"`
	Card   int `json:"card"`
}

// Less orders ordinals lexicographically.
func (o Ordinal) Less(other Ordinal) bool {
	if o.Search != other.Search {
		return o.Search < other.Search
	}
	if o.Page != other.Page {
		return o.Page < other.Page
	}
	return o.Card < other.Card
}

// PartialRecord holds what a summary card shows before the detail page is read.
type PartialRecord struct {
	SearchURL   string  `json:"searchUrl"`
	Title       string  `json:"jobTitle"`
	Link        string  `json:"jobLink"`
	Company     string  `json:"jobCompany"`
	Location    string  `json:"jobLocation"`
	Salary      string  `json:"jobSalary"`
	Type        string  `json:"jobType,omitempty"`
	CareerLevel string  `json:"jobCareerLevel,omitempty"`
	CompanyLogo string  `json:"jobCompanyLogo,omitempty"`
	CreatedAt   string  `json:"jobCreatedAt,omitempty"`
	Ordinal     Ordinal `json:"ordinal"`
}

// Record converts the partial into a JobRecord; detail-only fields stay empty.
func (p PartialRecord) Record() JobRecord {
	return JobRecord{
		SearchURL:      p.SearchURL,
		JobTitle:       p.Title,
		JobLink:        p.Link,
		JobSalary:      p.Salary,
		JobType:        p.Type,
		JobCareerLevel: p.CareerLevel,
		JobCompanyLogo: p.CompanyLogo,
		JobCompany:     p.Company,
		JobLocation:    p.Location,
		JobCreatedAt:   p.CreatedAt,
	}
}
