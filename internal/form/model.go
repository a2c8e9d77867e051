// Package form holds the in-memory state behind the CV builder page: five
// ordered repeatable sections plus the personal fields. It has no notion of
// HTML; render.go and bind.go project it onto inputs and read inputs back.
package form

import (
	"fmt"
	"sync"

	"cv-builder/internal/model"
)

const checked = "true"

type item struct {
	values      map[string]string
	endDisabled bool
}

func newItem() *item { return &item{values: map[string]string{}} }

func (it *item) clone() *item {
	c := &item{values: make(map[string]string, len(it.values)), endDisabled: it.endDisabled}
	for k, v := range it.values {
		c.values[k] = v
	}
	return c
}

// Model is the owned, per-session form state. It is safe for concurrent use.
type Model struct {
	mu       sync.Mutex
	id       *int64
	personal map[string]string
	sections map[Section][]*item
}

// New returns an empty model with no items in any section.
func New() *Model {
	m := &Model{personal: map[string]string{}, sections: map[Section][]*item{}}
	m.personal[PersonalTemplate] = model.DefaultTemplate
	return m
}

// NewDefault returns the model a freshly opened page starts with: one empty
// experience block and one empty education block.
func NewDefault() *Model {
	m := New()
	m.Add(Experience)
	m.Add(Education)
	return m
}

// Add appends an empty item to the section and returns its position.
func (m *Model) Add(s Section) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(s)
}

func (m *Model) addLocked(s Section) int {
	m.sections[s] = append(m.sections[s], newItem())
	return len(m.sections[s]) - 1
}

// Remove drops the item at position; later items move down by one so the
// positions stay 0..n-2. An absent position is ignored and reports false.
func (m *Model) Remove(s Section, position int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.sections[s]
	if position < 0 || position >= len(items) {
		return false
	}
	m.sections[s] = append(items[:position:position], items[position+1:]...)
	return true
}

// Reset empties one section.
func (m *Model) Reset(s Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sections, s)
}

// Len returns the number of items in the section.
func (m *Model) Len(s Section) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sections[s])
}

func (m *Model) lookup(ref FieldRef) (*item, error) {
	if _, ok := sectionDefs[ref.Section]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, ref.Section)
	}
	if !ref.Section.hasField(ref.Field) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, ref.Field)
	}
	items := m.sections[ref.Section]
	if ref.Position < 0 || ref.Position >= len(items) {
		return nil, fmt.Errorf("%w: %s", ErrNoItem, ref)
	}
	return items[ref.Position], nil
}

// Get returns the current value of one item field.
func (m *Model) Get(ref FieldRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.lookup(ref)
	if err != nil {
		return "", err
	}
	return it.values[ref.Field], nil
}

// Set writes one item field. Writing the end date of a current job fails with
// ErrFieldDisabled; writing the current flag behaves like ToggleCurrentJob.
func (m *Model) Set(ref FieldRef, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.lookup(ref)
	if err != nil {
		return err
	}
	return setLocked(it, ref, value)
}

func setLocked(it *item, ref FieldRef, value string) error {
	if ref.Section == Experience {
		switch ref.Field {
		case FieldCurrent:
			toggle(it, isTruthy(value))
			return nil
		case FieldEnd:
			if it.endDisabled {
				if value == "" {
					return nil
				}
				return fmt.Errorf("%w: %s", ErrFieldDisabled, ref)
			}
		}
	}
	it.values[ref.Field] = value
	return nil
}

// CompareAndSet writes value only if the field still holds old. It reports
// whether the write happened.
func (m *Model) CompareAndSet(ref FieldRef, old, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.lookup(ref)
	if err != nil {
		return false, err
	}
	if it.values[ref.Field] != old {
		return false, nil
	}
	return true, setLocked(it, ref, value)
}

// ToggleCurrentJob marks the experience at position as the current job,
// clearing and disabling its end date, or re-enables the end date when on is
// false. It reports false if there is no such item.
func (m *Model) ToggleCurrentJob(position int, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.sections[Experience]
	if position < 0 || position >= len(items) {
		return false
	}
	toggle(items[position], on)
	return true
}

func toggle(it *item, on bool) {
	it.endDisabled = on
	if on {
		it.values[FieldCurrent] = checked
		it.values[FieldEnd] = ""
		return
	}
	delete(it.values, FieldCurrent)
}

// EndDateDisabled reports whether the end date of an experience is locked.
func (m *Model) EndDateDisabled(position int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.sections[Experience]
	if position < 0 || position >= len(items) {
		return false
	}
	return items[position].endDisabled
}

// Personal returns one of the non-repeating fields.
func (m *Model) Personal(field string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.personal[field]
}

// SetPersonal writes one of the non-repeating fields.
func (m *Model) SetPersonal(field, value string) error {
	if !isPersonal(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personal[field] = value
	return nil
}

// CompareAndSetPersonal is CompareAndSet for a non-repeating field.
func (m *Model) CompareAndSetPersonal(field, old, value string) (bool, error) {
	if !isPersonal(field) {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.personal[field] != old {
		return false, nil
	}
	m.personal[field] = value
	return true, nil
}

// Collect builds a FormRecord from the current state. Sections never added
// to come back as empty sequences.
func (m *Model) Collect() model.FormRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.personal
	rec := model.FormRecord{
		ID:          m.id,
		FullName:    p[PersonalFullName],
		Email:       p[PersonalEmail],
		Phone:       p[PersonalPhone],
		Address:     p[PersonalAddress],
		DateOfBirth: p[PersonalDateOfBirth],
		LinkedIn:    p[PersonalLinkedIn],
		Website:     p[PersonalWebsite],
		Summary:     p[PersonalSummary],
		AvatarURL:   p[PersonalAvatarURL],
		Template:    p[PersonalTemplate],
		Skills:      model.ParseSkills(p[PersonalSkills]),
	}
	for _, it := range m.sections[Experience] {
		v := it.values
		rec.Experiences = append(rec.Experiences, model.Experience{
			Position:    v[FieldPosition],
			Company:     v[FieldCompany],
			StartDate:   v[FieldStart],
			EndDate:     v[FieldEnd],
			IsCurrent:   isTruthy(v[FieldCurrent]),
			Description: v[FieldDescription],
		})
	}
	for _, it := range m.sections[Education] {
		v := it.values
		rec.Education = append(rec.Education, model.Education{
			School: v[FieldSchool], Major: v[FieldMajor], Degree: v[FieldDegree], Year: v[FieldYear],
		})
	}
	for _, it := range m.sections[Certification] {
		v := it.values
		rec.Certifications = append(rec.Certifications, model.Certification{
			Name: v[FieldName], Organization: v[FieldOrg], Date: v[FieldDate],
		})
	}
	for _, it := range m.sections[Project] {
		v := it.values
		rec.Projects = append(rec.Projects, model.Project{
			Name: v[FieldName], URL: v[FieldURL], Description: v[FieldDescription],
		})
	}
	for _, it := range m.sections[Language] {
		v := it.values
		rec.Languages = append(rec.Languages, model.Language{Name: v[FieldName], Level: v[FieldLevel]})
	}
	rec.Normalize()
	return rec
}

// Replay loads a stored record into the model: personal fields are copied,
// then every section is reset and rebuilt item by item in stored order.
func (m *Model) Replay(rec model.FormRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.id = rec.ID
	m.personal = map[string]string{
		PersonalFullName:    rec.FullName,
		PersonalEmail:       rec.Email,
		PersonalPhone:       rec.Phone,
		PersonalAddress:     rec.Address,
		PersonalDateOfBirth: rec.DateOfBirth,
		PersonalLinkedIn:    rec.LinkedIn,
		PersonalWebsite:     rec.Website,
		PersonalSummary:     rec.Summary,
		PersonalAvatarURL:   rec.AvatarURL,
		PersonalTemplate:    rec.Template,
		PersonalSkills:      model.JoinSkills(rec.Skills),
	}
	if m.personal[PersonalTemplate] == "" {
		m.personal[PersonalTemplate] = model.DefaultTemplate
	}
	m.sections = map[Section][]*item{}

	for _, e := range rec.Experiences {
		it := m.replayItem(Experience, map[string]string{
			FieldPosition: e.Position, FieldCompany: e.Company, FieldStart: e.StartDate,
			FieldEnd: e.EndDate, FieldDescription: e.Description,
		})
		if e.IsCurrent {
			toggle(it, true)
		}
	}
	for _, e := range rec.Education {
		m.replayItem(Education, map[string]string{
			FieldSchool: e.School, FieldMajor: e.Major, FieldDegree: e.Degree, FieldYear: e.Year,
		})
	}
	for _, c := range rec.Certifications {
		m.replayItem(Certification, map[string]string{FieldName: c.Name, FieldOrg: c.Organization, FieldDate: c.Date})
	}
	for _, p := range rec.Projects {
		m.replayItem(Project, map[string]string{FieldName: p.Name, FieldURL: p.URL, FieldDescription: p.Description})
	}
	for _, l := range rec.Languages {
		m.replayItem(Language, map[string]string{FieldName: l.Name, FieldLevel: l.Level})
	}
}

func (m *Model) replayItem(s Section, values map[string]string) *item {
	pos := m.addLocked(s)
	it := m.sections[s][pos]
	for k, v := range values {
		if v != "" {
			it.values[k] = v
		}
	}
	return it
}

// ItemState is a read-only copy of one item used by the rendering layer.
type ItemState struct {
	Position        int
	Values          map[string]string
	EndDateDisabled bool
}

// Snapshot copies the state of every section and the personal fields.
func (m *Model) Snapshot() (map[string]string, map[Section][]ItemState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	personal := make(map[string]string, len(m.personal))
	for k, v := range m.personal {
		personal[k] = v
	}
	out := make(map[Section][]ItemState, len(Sections))
	for _, s := range Sections {
		states := make([]ItemState, 0, len(m.sections[s]))
		for i, it := range m.sections[s] {
			c := it.clone()
			states = append(states, ItemState{Position: i, Values: c.values, EndDateDisabled: c.endDisabled})
		}
		out[s] = states
	}
	return personal, out
}

func isTruthy(v string) bool {
	switch v {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
