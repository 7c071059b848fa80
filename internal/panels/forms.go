package panels

// Form holds the date range and cloud filter entered on one panel. Values
// entered on any panel are synced to the others so the analyst sees one
// consistent range.
type Form struct {
	StartDate      string
	EndDate        string
	ClearThreshold float64
}

func (m *Manager) defaultForm() Form {
	end := m.now()
	start := end.AddDate(0, 0, -30)
	return Form{
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
		ClearThreshold: 0.75,
	}
}

func (m *Manager) ensureDefaultForm(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forms[name]; !ok {
		f := m.defaultForm()
		m.forms[name] = &f
	}
}

// Form returns the current form values for a panel, creating defaults on
// first use.
func (m *Manager) Form(name string) Form {
	m.ensureDefaultForm(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.forms[name]
}

// SetForm records values entered on one panel and syncs the date range and
// clear threshold across every panel that has a form.
func (m *Manager) SetForm(name string, f Form) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := f
	m.forms[name] = &copied

	for other, existing := range m.forms {
		if other == name {
			continue
		}
		existing.StartDate = f.StartDate
		existing.EndDate = f.EndDate
		existing.ClearThreshold = f.ClearThreshold
	}
}

// PointContext picks the context fields for a new point: control panel
// values win, then the imagery panel, then the extract panel, then defaults.
func (m *Manager) PointContext() (string, string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range []string{PanelControl, PanelMapImagery, PanelExtract} {
		if f, ok := m.forms[name]; ok {
			return f.StartDate, f.EndDate, f.ClearThreshold
		}
	}

	f := m.defaultForm()
	return f.StartDate, f.EndDate, f.ClearThreshold
}
