package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePosting = `{
	"job_id": "abc123==",
	"job_title": "Software Engineer",
	"employer_name": "Cisco",
	"employer_logo": "https://logo.example/cisco.png",
	"employer_website": "https://www.cisco.com",
	"job_city": "San Jose",
	"job_state": "California",
	"job_country": "US",
	"job_location": "San Jose, CA",
	"job_latitude": 37.33874,
	"job_longitude": -121.885,
	"job_highlights": {"Qualifications": ["Go", "Kubernetes"]},
	"job_benefits": ["health_insurance", "paid_time_off"],
	"job_posted_at_datetime_utc": "2025-07-15T00:00:00.000Z",
	"job_posted_at_timestamp": 1752537600,
	"job_is_remote": false,
	"job_employment_types": ["FULLTIME"],
	"job_min_salary": 184000,
	"job_max_salary": 266000.5,
	"job_salary_period": "YEAR",
	"job_publisher": "LinkedIn",
	"job_is_direct_apply": true,
	"job_apply_link": "https://apply.example/1",
	"job_apply_options": [{"publisher": "LinkedIn", "apply_link": "https://apply.example/1", "is_direct": true}],
	"job_google_link": "https://google.example/1"
}`

func TestJobRecord_Decode(t *testing.T) {
	var job JobRecord
	require.NoError(t, json.Unmarshal([]byte(samplePosting), &job))

	assert.Equal(t, "abc123==", job.JobID)
	assert.Equal(t, "Cisco", job.EmployerName)
	require.True(t, job.HasCoordinates())
	assert.InDelta(t, 37.33874, *job.Latitude, 1e-9)
	assert.Equal(t, []string{"Go", "Kubernetes"}, job.Highlights["Qualifications"])
	assert.Equal(t, FlexText("health_insurance, paid_time_off"), job.Benefits)
	assert.Equal(t, []string{"FULLTIME"}, job.EmploymentTypes)
	require.NotNil(t, job.MaxSalary)
	assert.InDelta(t, 266000.5, *job.MaxSalary, 1e-9)
	require.Len(t, job.ApplyOptions, 1)
	assert.True(t, job.ApplyOptions[0].IsDirect)
}

func TestJobRecord_MissingCoordinates(t *testing.T) {
	var job JobRecord
	require.NoError(t, json.Unmarshal([]byte(`{"job_id": "x", "job_latitude": 40.1}`), &job))
	assert.False(t, job.HasCoordinates())
}

func TestFlexText_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FlexText
	}{
		{"string", `"Dental"`, "Dental"},
		{"list", `["Dental","Vision"]`, "Dental, Vision"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexText
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestJobRecord_PostedAt(t *testing.T) {
	ts := int64(1752537600)

	withUTC := JobRecord{PostedAtUTC: "2025-07-15T00:00:00.000Z"}
	got := withUTC.PostedAt()
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), *got)

	onlyTS := JobRecord{PostedAtTimestamp: &ts}
	got = onlyTS.PostedAt()
	require.NotNil(t, got)
	assert.Equal(t, ts, got.Unix())

	assert.Nil(t, (&JobRecord{}).PostedAt())
}
