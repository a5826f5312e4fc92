// Package model defines shared data structures for the collector service.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// JobRecord is a single posting as returned by the JSearch API. It is
// ephemeral: produced by the fetcher, consumed by the candidate filter and the
// job store, and discarded after persistence.
type JobRecord struct {
	JobID string `json:"job_id"`
	Title string `json:"job_title"`

	EmployerName    string `json:"employer_name"`
	EmployerLogo    string `json:"employer_logo,omitempty"`
	EmployerWebsite string `json:"employer_website,omitempty"`

	Country   string   `json:"job_country,omitempty"`
	State     string   `json:"job_state,omitempty"`
	City      string   `json:"job_city,omitempty"`
	Location  string   `json:"job_location,omitempty"`
	Latitude  *float64 `json:"job_latitude,omitempty"`
	Longitude *float64 `json:"job_longitude,omitempty"`

	Description string              `json:"job_description,omitempty"`
	Highlights  map[string][]string `json:"job_highlights,omitempty"`
	Benefits    FlexText            `json:"job_benefits,omitempty"`

	PostedAtUTC       string `json:"job_posted_at_datetime_utc,omitempty"`
	PostedAtTimestamp *int64 `json:"job_posted_at_timestamp,omitempty"`

	IsRemote        bool     `json:"job_is_remote"`
	EmploymentTypes []string `json:"job_employment_types,omitempty"`

	MinSalary    *float64 `json:"job_min_salary,omitempty"`
	MaxSalary    *float64 `json:"job_max_salary,omitempty"`
	SalaryPeriod string   `json:"job_salary_period,omitempty"`

	Publisher     string        `json:"job_publisher,omitempty"`
	IsDirectApply bool          `json:"job_is_direct_apply"`
	ApplyLink     string        `json:"job_apply_link,omitempty"`
	ApplyOptions  []ApplyOption `json:"job_apply_options,omitempty"`
	GoogleLink    string        `json:"job_google_link,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (j *JobRecord) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// PostedAt parses PostedAtUTC, falling back to the epoch timestamp.
func (j *JobRecord) PostedAt() *time.Time {
	if j.PostedAtUTC != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, j.PostedAtUTC); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	if j.PostedAtTimestamp != nil {
		t := time.Unix(*j.PostedAtTimestamp, 0).UTC()
		return &t
	}
	return nil
}

// ApplyOption is one of the alternative places a job can be applied to.
type ApplyOption struct {
	Publisher string `json:"publisher"`
	ApplyLink string `json:"apply_link"`
	IsDirect  bool   `json:"is_direct"`
}

// FlexText accepts either a JSON string or a list of strings (joined with
// ", "). JSearch has returned job_benefits in both shapes.
type FlexText string

func (f *FlexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*f = FlexText(strings.Join(parts, ", "))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexText(s)
	return nil
}

// Employer mirrors a companies row.
type Employer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
	Website string `json:"website,omitempty"`
}

// UnknownEmployer is the name persisted for postings without employer_name.
const UnknownEmployer = "Unknown Company"

// PersistedJob mirrors a jobs row joined with its employer.
type PersistedJob struct {
	ID      int64     `json:"id"`
	JobID   string    `json:"jobId"`
	AddedAt time.Time `json:"addedAt"`

	Country   *string  `json:"country,omitempty"`
	State     *string  `json:"state,omitempty"`
	City      *string  `json:"city,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Highlights  json.RawMessage `json:"highlights,omitempty"`
	Benefits    *string         `json:"benefits,omitempty"`

	PostedAtUTC *time.Time `json:"postedAtUtc,omitempty"`
	PostedAtTS  *int64     `json:"postedAtTs,omitempty"`

	IsRemote       *bool    `json:"isRemote,omitempty"`
	EmploymentType []string `json:"employmentType"`

	MinSalary    *int64  `json:"minSalary,omitempty"`
	MaxSalary    *int64  `json:"maxSalary,omitempty"`
	SalaryPeriod *string `json:"salaryPeriod,omitempty"`

	Publisher     *string         `json:"publisher,omitempty"`
	IsDirectApply *bool           `json:"isDirectApply,omitempty"`
	ApplyLink     *string         `json:"applyLink,omitempty"`
	ApplyOptions  json.RawMessage `json:"applyOptions,omitempty"`
	GoogleLink    *string         `json:"googleLink,omitempty"`

	IsSummarized bool    `json:"isSummarized"`
	IsEmbedded   bool    `json:"isEmbedded"`
	Summary      *string `json:"summary,omitempty"`

	Employer Employer `json:"employer"`
}

// UpsertStats summarises one JobStore.UpsertBatch call.
type UpsertStats struct {
	Inserted         int `json:"inserted"`
	Duplicates       int `json:"duplicates"`
	Failed           int `json:"failed"`
	EmployersCreated int `json:"employersCreated"`
}

// Profile mirrors a profiles row.
type Profile struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	AddedAt        time.Time    `json:"addedAt"`
	MyLocation     *string      `json:"myLocation,omitempty"`
	Latitude       *float64     `json:"latitude,omitempty"`
	Longitude      *float64     `json:"longitude,omitempty"`
	Filters        FilterConfig `json:"filters"`
	ResumeFilename *string      `json:"resumeFilename,omitempty"`
	HasResume      bool         `json:"hasResume"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left as they
// are; Latitude and Longitude are applied only as a pair.
type ProfileUpdate struct {
	MyLocation     *string
	Latitude       *float64
	Longitude      *float64
	Filters        *FilterConfig
	ResumeFilename *string
	Resume         []byte
}
