package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/collector-service/internal/geo"
	"jobmate/collector-service/internal/model"
)

func TestParsePoint(t *testing.T) {
	pt, err := parsePoint("40.7128, -74.0060")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 40.7128, Lon: -74.0060}, pt)

	for _, bad := range []string{"", "40.7", "north,-74", "40.7,west"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestDistanceCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"distance", "--from", "40.7128,-74.0060", "--to", "34.0522,-118.2437"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	require.Regexp(t, `^\d+\.\d{3} miles\n$`, out.String())

	miles, err := strconv.ParseFloat(strings.Fields(out.String())[0], 64)
	require.NoError(t, err)
	assert.InDelta(t, 2445, miles, 10)
}

func TestDistanceCommand_UnknownUnit(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"distance", "--from", "0,0", "--to", "1,1", "--unit", "furlongs"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil); distanceUnit = string(geo.Miles) })

	err := rootCmd.Execute()
	assert.ErrorIs(t, err, geo.ErrUnknownUnit)
}

func TestApplyFilterFlags(t *testing.T) {
	require.NoError(t, profileSetCmd.ParseFlags([]string{
		"--keywords", "rust developer",
		"--employment-types", "FULLTIME,INTERN",
		"--radius", "0",
		"--remote",
		"--salary-max", "250000",
	}))

	f := model.DefaultFilterConfig()
	require.NoError(t, applyFilterFlags(profileSetCmd, &f))

	assert.Equal(t, "rust developer", f.Keywords)
	assert.Equal(t, "California", f.Location, "unset flags keep their value")
	assert.Equal(t, []string{"FULLTIME", "INTERN"}, f.EmploymentTypes)
	require.NotNil(t, f.DistanceRadius)
	assert.Zero(t, *f.DistanceRadius)
	assert.True(t, f.WorkFromHome)
	assert.Equal(t, [2]int{80000, 250000}, f.SalaryRange)
	assert.Equal(t, 100, f.MaxJobs)
}
