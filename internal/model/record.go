package model

// Go models that match the record posted by the CV builder page and accepted
// by the export and preview endpoints.

// Degree values accepted by the education section.
const (
	DegreeHighSchool = "High School"
	DegreeAssociate  = "Associate"
	DegreeBachelor   = "Bachelor"
	DegreeMaster     = "Master"
	DegreePhD        = "PhD"
)

// Proficiency levels accepted by the language section.
const (
	LevelNative       = "Native"
	LevelFluent       = "Fluent"
	LevelAdvanced     = "Advanced"
	LevelIntermediate = "Intermediate"
	LevelBasic        = "Basic"
)

const (
	MinGraduationYear = 1950
	MaxGraduationYear = 2030

	DefaultTemplate = "classic"
)

// Degrees lists the degree options in the order the form offers them.
var Degrees = []string{DegreeHighSchool, DegreeAssociate, DegreeBachelor, DegreeMaster, DegreePhD}

// Levels lists the language levels in the order the form offers them.
var Levels = []string{LevelNative, LevelFluent, LevelAdvanced, LevelIntermediate, LevelBasic}

type Experience struct {
	Position    string `json:"position" yaml:"position"`
	Company     string `json:"company" yaml:"company"`
	StartDate   string `json:"start_date" yaml:"start_date"`
	EndDate     string `json:"end_date" yaml:"end_date"`
	IsCurrent   bool   `json:"is_current" yaml:"is_current"`
	Description string `json:"description" yaml:"description"`
}

type Education struct {
	School string `json:"school" yaml:"school"`
	Major  string `json:"major" yaml:"major"`
	Degree string `json:"degree" yaml:"degree"`
	Year   string `json:"year" yaml:"year"`
}

type Certification struct {
	Name         string `json:"name" yaml:"name"`
	Organization string `json:"organization" yaml:"organization"`
	Date         string `json:"date" yaml:"date"`
}

type Project struct {
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

type Language struct {
	Name  string `json:"name" yaml:"name"`
	Level string `json:"level" yaml:"level"`
}

// FormRecord is everything collected from the form at one point in time.
// It is rebuilt on every collection and is what gets stored as a draft.
type FormRecord struct {
	ID          *int64 `json:"id" yaml:"id,omitempty"`
	FullName    string `json:"full_name" yaml:"full_name"`
	Email       string `json:"email" yaml:"email"`
	Phone       string `json:"phone" yaml:"phone"`
	Address     string `json:"address" yaml:"address"`
	DateOfBirth string `json:"date_of_birth" yaml:"date_of_birth"`
	LinkedIn    string `json:"linkedin" yaml:"linkedin"`
	Website     string `json:"website" yaml:"website"`
	Summary     string `json:"summary" yaml:"summary"`
	AvatarURL   string `json:"avatar_url" yaml:"avatar_url"`
	Template    string `json:"template" yaml:"template"`

	Skills         []string        `json:"skills" yaml:"skills"`
	Experiences    []Experience    `json:"experiences" yaml:"experiences"`
	Education      []Education     `json:"education" yaml:"education"`
	Certifications []Certification `json:"certifications" yaml:"certifications"`
	Projects       []Project       `json:"projects" yaml:"projects"`
	Languages      []Language      `json:"languages" yaml:"languages"`
}

// Normalize replaces nil sequences with empty ones so a record always
// serializes its sections as arrays, and fills the default template.
func (r *FormRecord) Normalize() {
	if r.Template == "" {
		r.Template = DefaultTemplate
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.Experiences == nil {
		r.Experiences = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Certifications == nil {
		r.Certifications = []Certification{}
	}
	if r.Projects == nil {
		r.Projects = []Project{}
	}
	if r.Languages == nil {
		r.Languages = []Language{}
	}
}
