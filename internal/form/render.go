package form

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"cv-builder/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").ParseFS(templateFS, "templates/*.html"))

// Input kinds understood by the templates.
const (
	KindText     = "text"
	KindMonth    = "month"
	KindNumber   = "number"
	KindURL      = "url"
	KindDate     = "date"
	KindCheckbox = "checkbox"
	KindTextarea = "textarea"
	KindSelect   = "select"
)

// InputView is one rendered input of an item block.
type InputView struct {
	Name     string
	Field    string
	Label    string
	Kind     string
	Value    string
	Options  []string
	Required bool
	Disabled bool
	Checked  bool
}

// ItemView is one item block. Index is the value of its data-index attribute.
// Host labels a project link by its registrable domain.
type ItemView struct {
	Section Section
	Index   int
	Host    string
	Inputs  []InputView
}

// SectionView is one container of item blocks.
type SectionView struct {
	Section   Section
	Container string
	Label     string
	Items     []ItemView
}

// PageView is everything the page template needs.
type PageView struct {
	Personal  map[string]string
	Sections  []SectionView
	Templates []string
	SignedIn  bool
	UserID    string
}

type fieldMeta struct {
	label    string
	kind     string
	required bool
	options  []string
}

var fieldMetas = map[Section]map[string]fieldMeta{
	Experience: {
		FieldPosition:    {label: "Position", kind: KindText, required: true},
		FieldCompany:     {label: "Company", kind: KindText, required: true},
		FieldStart:       {label: "Start date", kind: KindMonth},
		FieldEnd:         {label: "End date", kind: KindMonth},
		FieldCurrent:     {label: "I currently work here", kind: KindCheckbox},
		FieldDescription: {label: "Description", kind: KindTextarea},
	},
	Education: {
		FieldSchool: {label: "School", kind: KindText, required: true},
		FieldMajor:  {label: "Major", kind: KindText},
		FieldDegree: {label: "Degree", kind: KindSelect, options: model.Degrees},
		FieldYear:   {label: "Graduation year", kind: KindNumber},
	},
	Certification: {
		FieldName: {label: "Certificate", kind: KindText, required: true},
		FieldOrg:  {label: "Issued by", kind: KindText},
		FieldDate: {label: "Issue date", kind: KindMonth},
	},
	Project: {
		FieldName:        {label: "Project name", kind: KindText, required: true},
		FieldURL:         {label: "URL", kind: KindURL},
		FieldDescription: {label: "Description", kind: KindTextarea},
	},
	Language: {
		FieldName:  {label: "Language", kind: KindText, required: true},
		FieldLevel: {label: "Level", kind: KindSelect, options: model.Levels},
	},
}

// Templates lists the CV layouts the export server knows about.
var Templates = []string{"classic", "modern", "professional"}

// BuildView projects the model onto input blocks. Field names come from
// FieldRef.Name, so positions in names always equal block positions.
func BuildView(m *Model) PageView {
	personal, sections := m.Snapshot()
	view := PageView{Personal: personal, Templates: Templates}
	for _, s := range Sections {
		sv := SectionView{Section: s, Container: string(s) + "sContainer", Label: s.Label()}
		for _, st := range sections[s] {
			iv := ItemView{Section: s, Index: st.Position}
			if s == Project {
				iv.Host = LinkHost(st.Values[FieldURL])
			}
			for _, f := range s.Fields() {
				meta := fieldMetas[s][f]
				in := InputView{
					Name:     FieldRef{Section: s, Position: st.Position, Field: f}.Name(),
					Field:    f,
					Label:    meta.label,
					Kind:     meta.kind,
					Value:    st.Values[f],
					Options:  meta.options,
					Required: meta.required,
				}
				if meta.kind == KindCheckbox {
					in.Checked = isTruthy(st.Values[f])
				}
				if s == Experience && f == FieldEnd {
					in.Disabled = st.EndDateDisabled
				}
				iv.Inputs = append(iv.Inputs, in)
			}
			sv.Items = append(sv.Items, iv)
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}

// Render writes the full form page.
func Render(w io.Writer, view PageView) error {
	if err := pageTemplate.ExecuteTemplate(w, "page.html", view); err != nil {
		return fmt.Errorf("render form page: %w", err)
	}
	return nil
}

// RenderSection writes only one section container, used after add/remove so
// the page can swap the container in place.
func RenderSection(w io.Writer, sv SectionView) error {
	if err := pageTemplate.ExecuteTemplate(w, "section", sv); err != nil {
		return fmt.Errorf("render section %s: %w", sv.Section, err)
	}
	return nil
}

// SectionOf returns one section of a built view.
func (v PageView) SectionOf(s Section) SectionView {
	for _, sv := range v.Sections {
		if sv.Section == s {
			return sv
		}
	}
	return SectionView{Section: s}
}

// LinkHost returns the registrable domain of link (eTLD+1), or "" when link
// has no usable host.
func LinkHost(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld
	}
	return host
}
