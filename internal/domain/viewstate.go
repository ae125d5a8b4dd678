package domain

import (
	"encoding/json"
	"fmt"
)

// ViewState tracks which result tab is active and which tabs have been visited.
// The viewed set only grows, so once every tab has been seen the proceed gate stays open.
type ViewState struct {
	tabs   []Tab
	active Tab
	viewed map[Tab]struct{}
}

// NewViewState starts on the overview tab with only the overview viewed.
// tabs is the ordered tab list of the assessment and must contain the overview tab.
func NewViewState(tabs []Tab) (*ViewState, error) {
	if len(tabs) == 0 {
		return nil, fmt.Errorf("view state: %w", NewValidationError("tabs", "at least one tab is required", nil))
	}

	seen := make(map[Tab]struct{}, len(tabs))
	for _, t := range tabs {
		if !t.IsValid() {
			return nil, fmt.Errorf("view state: %w: %s", ErrUnknownTab, t)
		}
		if _, dup := seen[t]; dup {
			return nil, fmt.Errorf("view state: %w", NewValidationError("tabs", "duplicate tab", t))
		}
		seen[t] = struct{}{}
	}
	if _, ok := seen[TabOverview]; !ok {
		return nil, fmt.Errorf("view state: %w", NewValidationError("tabs", "overview tab is required", tabs))
	}

	vs := &ViewState{
		tabs:   append([]Tab(nil), tabs...),
		active: TabOverview,
		viewed: map[Tab]struct{}{TabOverview: {}},
	}
	return vs, nil
}

// Select activates a tab and marks it viewed in one step.
// Unknown tabs leave the state untouched.
func (vs *ViewState) Select(tab Tab) error {
	if !vs.hasTab(tab) {
		return fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	vs.active = tab
	vs.viewed[tab] = struct{}{}
	return nil
}

// Merge adds the tabs other has viewed. Tabs unknown to this state are ignored
// and the active tab is unchanged.
func (vs *ViewState) Merge(other *ViewState) {
	if other == nil {
		return
	}
	for t := range other.viewed {
		if vs.hasTab(t) {
			vs.viewed[t] = struct{}{}
		}
	}
}

// Active returns the active tab.
func (vs *ViewState) Active() Tab {
	return vs.active
}

// Tabs returns the assessment's tabs in display order.
func (vs *ViewState) Tabs() []Tab {
	return append([]Tab(nil), vs.tabs...)
}

// Viewed returns the viewed tabs in display order.
func (vs *ViewState) Viewed() []Tab {
	out := make([]Tab, 0, len(vs.viewed))
	for _, t := range vs.tabs {
		if _, ok := vs.viewed[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// HasViewed reports whether a tab has been visited.
func (vs *ViewState) HasViewed(tab Tab) bool {
	_, ok := vs.viewed[tab]
	return ok
}

// AllViewed reports whether every tab has been visited at least once.
func (vs *ViewState) AllViewed() bool {
	return len(vs.viewed) == len(vs.tabs)
}

// Remaining returns the tabs still to be visited, in display order.
func (vs *ViewState) Remaining() []Tab {
	var out []Tab
	for _, t := range vs.tabs {
		if _, ok := vs.viewed[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (vs *ViewState) hasTab(tab Tab) bool {
	for _, t := range vs.tabs {
		if t == tab {
			return true
		}
	}
	return false
}

type viewStateJSON struct {
	Tabs      []Tab `json:"tabs"`
	ActiveTab Tab   `json:"active_tab"`
	Viewed    []Tab `json:"viewed_tabs"`
}

// MarshalJSON encodes the state with the viewed set in display order.
func (vs *ViewState) MarshalJSON() ([]byte, error) {
	return json.Marshal(viewStateJSON{
		Tabs:      vs.tabs,
		ActiveTab: vs.active,
		Viewed:    vs.Viewed(),
	})
}

// UnmarshalJSON restores a stored state, re-establishing the active-is-viewed invariant.
func (vs *ViewState) UnmarshalJSON(data []byte) error {
	var raw viewStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	restored, err := NewViewState(raw.Tabs)
	if err != nil {
		return err
	}
	for _, t := range raw.Viewed {
		if err := restored.Select(t); err != nil {
			return err
		}
	}
	if raw.ActiveTab != "" {
		if err := restored.Select(raw.ActiveTab); err != nil {
			return err
		}
	}

	*vs = *restored
	return nil
}
