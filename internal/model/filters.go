package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

// EmploymentTypeOptions maps display labels to JSearch employment_types codes.
var EmploymentTypeOptions = map[string]string{
	"Full Time":  "FULLTIME",
	"Part Time":  "PARTTIME",
	"Contractor": "CONTRACTOR",
	"Internship": "INTERN",
}

// ExperienceOptions maps display labels to JSearch job_requirements codes.
var ExperienceOptions = map[string]string{
	"Less than 3 years":      "under_3_years_experience",
	"More than 3 years":      "more_than_3_years_experience",
	"No Experience Required": "no_experience",
	"No Degree Required":     "no_degree",
}

// FilterConfig is the search configuration stored in profiles.filter_data.
type FilterConfig struct {
	Keywords             string   `json:"keywords" validate:"required,max=200"`
	Location             string   `json:"location,omitempty" validate:"max=200"`
	Country              string   `json:"country" validate:"required,len=2"`
	Language             string   `json:"language" validate:"required,len=2"`
	DatePosted           string   `json:"date_posted" validate:"required,oneof=all today 3days week month"`
	WorkFromHome         bool     `json:"work_from_home"`
	EmploymentTypes      []string `json:"employment_types,omitempty" validate:"dive,oneof=FULLTIME PARTTIME CONTRACTOR INTERN"`
	JobRequirements      []string `json:"job_requirements,omitempty" validate:"dive,oneof=under_3_years_experience more_than_3_years_experience no_experience no_degree"`
	ExcludeJobPublishers []string `json:"exclude_job_publishers,omitempty"`
	Companies            []string `json:"companies,omitempty"`
	SalaryRange          [2]int   `json:"salary_range"`
	DistanceRadius       *float64 `json:"distance_radius,omitempty" validate:"omitempty,gte=0"`
	MaxJobs              int      `json:"max_jobs" validate:"gte=10,lte=300"`
}

// DefaultFilterConfig returns the filters a freshly created profile starts with.
func DefaultFilterConfig() FilterConfig {
	radius := 50.0
	return FilterConfig{
		Keywords:       "software engineer",
		Location:       "California",
		Country:        "us",
		Language:       "en",
		DatePosted:     "all",
		SalaryRange:    [2]int{80000, 180000},
		DistanceRadius: &radius,
		MaxJobs:        100,
	}
}

var (
	validate        = newValidator()
	profileNameExpr = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("profilename", func(fl validator.FieldLevel) bool {
		return profileNameExpr.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks field ranges, enumerations and the ISO codes.
func (f *FilterConfig) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	if err := validate.Var(strings.ToUpper(f.Country), "iso3166_1_alpha2"); err != nil {
		return fmt.Errorf("invalid filters: unknown country code %q", f.Country)
	}
	if _, err := language.ParseBase(f.Language); err != nil {
		return fmt.Errorf("invalid filters: unknown language code %q", f.Language)
	}
	if f.SalaryRange[0] > f.SalaryRange[1] {
		return fmt.Errorf("invalid filters: salary_range min %d exceeds max %d", f.SalaryRange[0], f.SalaryRange[1])
	}
	return nil
}

// Normalize lowercases the locale codes and trims the free text fields.
func (f *FilterConfig) Normalize() {
	f.Keywords = strings.TrimSpace(f.Keywords)
	f.Location = strings.TrimSpace(f.Location)
	f.Country = strings.ToLower(strings.TrimSpace(f.Country))
	f.Language = strings.ToLower(strings.TrimSpace(f.Language))
}

// ValidateProfileName enforces letters, digits, '_' and '-', at most 50 chars.
func ValidateProfileName(name string) error {
	if err := validate.Var(name, "required,profilename"); err != nil {
		return fmt.Errorf("invalid profile name %q: use only letters, numbers, _ or - (max 50 chars)", name)
	}
	return nil
}
