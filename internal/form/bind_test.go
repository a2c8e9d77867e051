package form

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindCollectsPostedValuesInOrder(t *testing.T) {
	m := New()
	m.Add(Experience)
	m.Add(Experience)
	m.Add(Language)

	in := url.Values{}
	in.Set("full_name", "Le Van C")
	in.Set("skills", "a, b,,\nc")
	in.Set("exp_position_0", "Intern")
	in.Set("exp_company_0", "Acme")
	in.Set("exp_end_0", "2020-01")
	in.Set("exp_position_1", "Engineer")
	in.Set("exp_company_1", "Globex")
	in.Set("exp_current_1", "true")
	in.Set("exp_end_1", "2099-01")
	in.Set("lang_name_0", "Japanese")
	in.Set("lang_level_0", "Basic")

	m.Bind(in)
	rec := m.Collect()

	assert.Equal(t, "Le Van C", rec.FullName)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Skills)
	require.Len(t, rec.Experiences, 2)
	assert.Equal(t, "Intern", rec.Experiences[0].Position)
	assert.Equal(t, "2020-01", rec.Experiences[0].EndDate)
	assert.False(t, rec.Experiences[0].IsCurrent)
	assert.Equal(t, "Engineer", rec.Experiences[1].Position)
	assert.True(t, rec.Experiences[1].IsCurrent)
	assert.Empty(t, rec.Experiences[1].EndDate)
	assert.Equal(t, "Japanese", rec.Languages[0].Name)
	assert.Equal(t, "Basic", rec.Languages[0].Level)
}

func TestBindMissingInputsDefaultToEmpty(t *testing.T) {
	m := New()
	m.Add(Education)
	require.NoError(t, m.Set(FieldRef{Education, 0, FieldSchool}, "old"))
	require.NoError(t, m.SetPersonal(PersonalEmail, "old@example.com"))

	m.Bind(url.Values{})
	rec := m.Collect()

	assert.Equal(t, "", rec.Email)
	require.Len(t, rec.Education, 1)
	assert.Equal(t, "", rec.Education[0].School)
	assert.Empty(t, rec.Certifications)
}

func TestBindUncheckingCurrentReenablesEndDate(t *testing.T) {
	m := New()
	m.Add(Experience)
	m.ToggleCurrentJob(0, true)

	m.Bind(url.Values{"exp_end_0": {"2024-02"}})
	assert.False(t, m.EndDateDisabled(0))
	assert.Equal(t, "2024-02", m.Collect().Experiences[0].EndDate)
}

func TestBindReportsInputsForMissingItems(t *testing.T) {
	m := New()
	m.Add(Project)

	orphans := m.Bind(url.Values{
		"full_name":     {"Ada"},
		"date_of_birth": {"1990-01-01"},
		"proj_name_0":   {"engine"},
		"proj_name_1":   {"gone"},
		"lang_name_0":   {"French"},
		"exp_bogus_0":   {"x"},
	})

	assert.Equal(t, []string{"lang_name_0", "proj_name_1"}, orphans)
	assert.Equal(t, 1, m.Len(Project))
	assert.Equal(t, 0, m.Len(Language))
	assert.Equal(t, "engine", m.Collect().Projects[0].Name)
}
