package models

// FieldNames is the flat field order shared by every output format.
var FieldNames = []string{
	"searchUrl",
	"jobTitle",
	"jobLink",
	"jobSalary",
	"jobType",
	"jobCareerLevel",
	"jobCompanyLogo",
	"jobCompany",
	"jobLocation",
	"jobDescription",
	"jobCreatedAt",
}

// JobRecord is one extracted listing. Empty string means "not on the page".
// JobLink is canonical and is the identity key; SearchURL is provenance only.
type JobRecord struct {
	SearchURL      string `json:"searchUrl" xml:"searchUrl"`
	JobTitle       string `json:"jobTitle" xml:"jobTitle"`
	JobLink        string `json:"jobLink" xml:"jobLink"`
	JobSalary      string `json:"jobSalary" xml:"jobSalary"`
	JobType        string `json:"jobType" xml:"jobType"`
	JobCareerLevel string `json:"jobCareerLevel" xml:"jobCareerLevel"`
	JobCompanyLogo string `json:"jobCompanyLogo" xml:"jobCompanyLogo"`
	JobCompany     string `json:"jobCompany" xml:"jobCompany"`
	JobLocation    string `json:"jobLocation" xml:"jobLocation"`
	JobDescription string `json:"jobDescription" xml:"jobDescription"`
	JobCreatedAt   string `json:"jobCreatedAt" xml:"jobCreatedAt"`
}

// Values returns the field values in FieldNames order.
func (r JobRecord) Values() []string {
	return []string{
		r.SearchURL,
		r.JobTitle,
		r.JobLink,
		r.JobSalary,
		r.JobType,
		r.JobCareerLevel,
		r.JobCompanyLogo,
		r.JobCompany,
		r.JobLocation,
		r.JobDescription,
		r.JobCreatedAt,
	}
}

// RecordFromValues is the inverse of Values. Missing trailing values stay empty.
func RecordFromValues(values []string) JobRecord {
	get := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return JobRecord{
		SearchURL:      get(0),
		JobTitle:       get(1),
		JobLink:        get(2),
		JobSalary:      get(3),
		JobType:        get(4),
		JobCareerLevel: get(5),
		JobCompanyLogo: get(6),
		JobCompany:     get(7),
		JobLocation:    get(8),
		JobDescription: get(9),
		JobCreatedAt:   get(10),
	}
}

// Backfill copies every non-empty field of from into an empty field of r.
func (r JobRecord) Backfill(from JobRecord) JobRecord {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&r.SearchURL, from.SearchURL)
	fill(&r.JobTitle, from.JobTitle)
	fill(&r.JobLink, from.JobLink)
	fill(&r.JobSalary, from.JobSalary)
	fill(&r.JobType, from.JobType)
	fill(&r.JobCareerLevel, from.JobCareerLevel)
	fill(&r.JobCompanyLogo, from.JobCompanyLogo)
	fill(&r.JobCompany, from.JobCompany)
	fill(&r.JobLocation, from.JobLocation)
	fill(&r.JobDescription, from.JobDescription)
	fill(&r.JobCreatedAt, from.JobCreatedAt)
	return r
}
