package model

// groupPanels collects fields tagged with a panel extension into Panel
// groups, preserving first-appearance order. Untagged fields stay in the
// form's flat field list only; tagged fields appear in both places so
// renderers can choose either traversal without losing fields.
func groupPanels(fields []Field, labeler func(string) string) []Panel {
	var panels []Panel
	index := make(map[string]int)

	for _, field := range fields {
		name := field.Panel
		if name == "" {
			continue
		}
		pos, ok := index[name]
		if !ok {
			pos = len(panels)
			index[name] = pos
			panels = append(panels, Panel{
				Name:       name,
				Label:      labeler(name),
				Instrument: field.Metadata["instrument"],
				Rule:       field.VisibilityRule,
			})
		}
		panels[pos].Fields = append(panels[pos].Fields, field)
		// The first tagged field wins panel-level metadata; later fields
		// fill gaps.
		if panels[pos].Instrument == "" {
			panels[pos].Instrument = field.Metadata["instrument"]
		}
		if panels[pos].Rule == "" {
			panels[pos].Rule = field.VisibilityRule
		}
	}

	return panels
}
