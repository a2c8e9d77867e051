package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Section is one of the five repeatable form categories.
type Section string

const (
	Experience    Section = "experience"
	Education     Section = "education"
	Certification Section = "certification"
	Project       Section = "project"
	Language      Section = "language"
)

// Sections lists every section in page order.
var Sections = []Section{Experience, Education, Certification, Project, Language}

// Field keys per section. The key is the middle part of a rendered input name.
const (
	FieldPosition    = "position"
	FieldCompany     = "company"
	FieldStart       = "start"
	FieldEnd         = "end"
	FieldCurrent     = "current"
	FieldDescription = "description"

	FieldSchool = "school"
	FieldMajor  = "major"
	FieldDegree = "degree"
	FieldYear   = "year"

	FieldName = "name"
	FieldOrg  = "org"
	FieldDate = "date"
	FieldURL  = "url"

	FieldLevel = "level"
)

type sectionDef struct {
	prefix string
	label  string
	fields []string
}

var sectionDefs = map[Section]sectionDef{
	Experience:    {"exp", "Experience", []string{FieldPosition, FieldCompany, FieldStart, FieldEnd, FieldCurrent, FieldDescription}},
	Education:     {"edu", "Education", []string{FieldSchool, FieldMajor, FieldDegree, FieldYear}},
	Certification: {"cert", "Certifications", []string{FieldName, FieldOrg, FieldDate}},
	Project:       {"proj", "Projects", []string{FieldName, FieldURL, FieldDescription}},
	Language:      {"lang", "Languages", []string{FieldName, FieldLevel}},
}

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownField   = errors.New("unknown field")
	ErrNoItem         = errors.New("no item at position")
	ErrFieldDisabled  = errors.New("field is disabled")
)

// ParseSection accepts the singular section name, the plural container name
// used by the page ("experiences", "certifications", ...) or the field prefix.
func ParseSection(s string) (Section, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sec := range Sections {
		if s == string(sec) || s == string(sec)+"s" || s == sectionDefs[sec].prefix {
			return sec, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

func (s Section) Prefix() string { return sectionDefs[s].prefix }

func (s Section) Label() string { return sectionDefs[s].label }

// Fields returns the field keys of one item of the section.
func (s Section) Fields() []string {
	return append([]string(nil), sectionDefs[s].fields...)
}

func (s Section) hasField(f string) bool {
	for _, k := range sectionDefs[s].fields {
		if k == f {
			return true
		}
	}
	return false
}

// FieldRef addresses one input of one repeatable item.
type FieldRef struct {
	Section  Section
	Position int
	Field    string
}

// Name renders the input identifier, e.g. exp_position_0.
func (r FieldRef) Name() string {
	return fmt.Sprintf("%s_%s_%d", r.Section.Prefix(), r.Field, r.Position)
}

func (r FieldRef) String() string { return r.Name() }

// ParseFieldRef resolves a rendered input identifier back into a FieldRef.
func ParseFieldRef(name string) (FieldRef, error) {
	first := strings.IndexByte(name, '_')
	last := strings.LastIndexByte(name, '_')
	if first <= 0 || last <= first {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	sec, err := ParseSection(name[:first])
	if err != nil {
		return FieldRef{}, err
	}
	pos, err := strconv.Atoi(name[last+1:])
	if err != nil || pos < 0 {
		return FieldRef{}, fmt.Errorf("%w: bad position in %q", ErrUnknownField, name)
	}
	field := name[first+1 : last]
	if !sec.hasField(field) {
		return FieldRef{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return FieldRef{Section: sec, Position: pos, Field: field}, nil
}

// Personal field keys. They double as input names and match the record's
// JSON names.
const (
	PersonalFullName    = "full_name"
	PersonalEmail       = "email"
	PersonalPhone       = "phone"
	PersonalAddress     = "address"
	PersonalDateOfBirth = "date_of_birth"
	PersonalLinkedIn    = "linkedin"
	PersonalWebsite     = "website"
	PersonalSummary     = "summary"
	PersonalAvatarURL   = "avatar_url"
	PersonalTemplate    = "template"
	PersonalSkills      = "skills"
)

// PersonalFields lists the non-repeating inputs in page order.
var PersonalFields = []string{
	PersonalFullName, PersonalEmail, PersonalPhone, PersonalAddress, PersonalDateOfBirth,
	PersonalLinkedIn, PersonalWebsite, PersonalSummary, PersonalAvatarURL, PersonalTemplate, PersonalSkills,
}

func isPersonal(f string) bool {
	for _, k := range PersonalFields {
		if k == f {
			return true
		}
	}
	return false
}
