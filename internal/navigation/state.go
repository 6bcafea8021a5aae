package navigation

import "github.com/roach88/waypost/internal/ir"

// State is a serializable view of a coordinator, used by the admin API and
// scenario traces. Routes are rendered with Route.String.
type State struct {
	SelectedTab int        `json:"selected_tab" yaml:"selected_tab"`
	Tabs        []TabState `json:"tabs" yaml:"tabs"`
	Sheets      []string   `json:"sheets" yaml:"sheets"`
	FullScreen  string     `json:"full_screen,omitempty" yaml:"full_screen,omitempty"`
	Flows       []FlowView `json:"flows" yaml:"flows"`
}

// TabState is one tab and its path.
type TabState struct {
	Index int      `json:"index" yaml:"index"`
	Name  string   `json:"name" yaml:"name"`
	Path  []string `json:"path" yaml:"path"`
}

// FlowView is a read-only summary of an active flow.
type FlowView struct {
	ID      string    `json:"id" yaml:"id"`
	Type    string    `json:"type" yaml:"type"`
	Step    int       `json:"step" yaml:"step"`
	Path    string    `json:"path" yaml:"path"`
	Total   int       `json:"total" yaml:"total"`
	History []int     `json:"history" yaml:"history"`
	Data    ir.Object `json:"data" yaml:"-"`
}

// Snapshot captures the current state. Slices are never nil so the JSON
// form is stable.
func (c *Coordinator) Snapshot() State {
	st := State{
		SelectedTab: c.selected,
		Tabs:        make([]TabState, len(c.tabs)),
		Sheets:      routeStrings(c.sheets),
		Flows:       make([]FlowView, 0, len(c.flowOrder)),
	}
	for i, t := range c.tabs {
		st.Tabs[i] = TabState{Index: t.Index, Name: t.Name, Path: routeStrings(c.paths[i])}
	}
	if c.fullScreen != nil {
		st.FullScreen = c.fullScreen.String()
	}
	for _, id := range c.flowOrder {
		f := c.flows[id]
		st.Flows = append(st.Flows, FlowView{
			ID:      f.ID,
			Type:    f.Type,
			Step:    f.Current,
			Path:    f.CurrentPath(),
			Total:   f.TotalSteps(),
			History: append([]int{}, f.History...),
			Data:    f.Data.Clone(),
		})
	}
	return st
}

func routeStrings(rs []Route) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}
