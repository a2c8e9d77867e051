package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() FormRecord {
	r := FormRecord{
		FullName: "Nguyen Van A",
		Email:    "a@example.com",
		Skills:   []string{"Go"},
		Experiences: []Experience{
			{Position: "Engineer", Company: "Acme", StartDate: "2020-01", IsCurrent: true},
		},
		Education: []Education{{School: "HUST", Degree: DegreeBachelor, Year: "2019"}},
		Languages: []Language{{Name: "English", Level: LevelFluent}},
	}
	r.Normalize()
	return r
}

func TestValidateAcceptsWellFormedRecord(t *testing.T) {
	require.NoError(t, Validate(validRecord()))
}

func TestValidateAcceptsEmptySelects(t *testing.T) {
	r := validRecord()
	r.Education[0].Degree = ""
	r.Education[0].Year = ""
	r.Languages[0].Level = ""
	require.NoError(t, Validate(r))
}

func TestValidateRejectsOutOfRangeYear(t *testing.T) {
	for _, year := range []string{"1949", "2031", "20x0"} {
		r := validRecord()
		r.Education[0].Year = year
		err := Validate(r)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "year %s", year)
	}
	for _, year := range []string{"1950", "2030", "2001"} {
		r := validRecord()
		r.Education[0].Year = year
		assert.NoError(t, Validate(r), "year %s", year)
	}
}

func TestValidateRejectsUnknownEnums(t *testing.T) {
	r := validRecord()
	r.Education[0].Degree = "Doctorate"
	assert.Error(t, Validate(r))

	r = validRecord()
	r.Languages[0].Level = "Expert"
	assert.Error(t, Validate(r))
}

func TestValidateRejectsEndDateOnCurrentJob(t *testing.T) {
	r := validRecord()
	r.Experiences[0].EndDate = "2023-05"
	err := Validate(r)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)
}

func TestRequireExportable(t *testing.T) {
	r := validRecord()
	r.FullName = "   "
	assert.ErrorIs(t, RequireExportable(r), ErrMissingFullName)

	assert.NoError(t, RequireExportable(validRecord()))
}

func TestNormalizeFillsDefaults(t *testing.T) {
	var r FormRecord
	r.Normalize()
	assert.Equal(t, DefaultTemplate, r.Template)
	assert.NotNil(t, r.Experiences)
	assert.NotNil(t, r.Languages)
	assert.Empty(t, r.Skills)
}
