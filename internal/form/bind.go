package form

import (
	"net/url"
	"sort"
)

// Bind reads every input the model currently renders and stores its value.
// Inputs that were not posted count as empty, and an unchecked box as false.
// Disabled inputs are never posted, so a locked end date stays empty.
//
// Bind returns the posted item inputs that address no item of the model, as
// a page rendered before a removal sends them; they are ignored.
func (m *Model) Bind(in url.Values) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range PersonalFields {
		m.personal[f] = in.Get(f)
	}
	for _, s := range Sections {
		for pos, it := range m.sections[s] {
			if s == Experience {
				// the flag decides whether the end date is writable
				ref := FieldRef{Section: s, Position: pos, Field: FieldCurrent}
				toggle(it, in.Has(ref.Name()) && isTruthy(in.Get(ref.Name())))
			}
			for _, f := range s.Fields() {
				if s == Experience && f == FieldCurrent {
					continue
				}
				ref := FieldRef{Section: s, Position: pos, Field: f}
				if s == Experience && f == FieldEnd && it.endDisabled {
					continue
				}
				it.values[f] = in.Get(ref.Name())
			}
		}
	}

	var orphans []string
	for name := range in {
		ref, err := ParseFieldRef(name)
		if err != nil {
			continue
		}
		if ref.Position >= len(m.sections[ref.Section]) {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans
}
