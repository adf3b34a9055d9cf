package store

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

const viewStateFileName = "view_state.json"

// Keys of the persisted review view state. Values hold the literal enum strings.
const (
	FilterStateKey = "verifierFilterState"
	SortStateKey   = "verifierSortState"
)

// ViewState is a small key/value document restored on launch.
//
// Loading is best effort: a missing or corrupt file reads as empty.
type ViewState struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
}

// serializes read-modify-write of view_state.json within this process
var viewStateMu sync.Mutex

// ViewStatePath is the view-state file location, or "" when the store is disabled.
func (s Store) ViewStatePath() string {
	if !s.enabled() {
		return ""
	}
	return s.path(viewStateFileName)
}

func (s Store) LoadViewState() (*ViewState, error) {
	if !s.enabled() {
		return &ViewState{Version: 1, Values: map[string]string{}}, nil
	}
	b, err := os.ReadFile(s.path(viewStateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ViewState{Version: 1, Values: map[string]string{}}, nil
		}
		return nil, err
	}
	var st ViewState
	if err := json.Unmarshal(b, &st); err != nil {
		return &ViewState{Version: 1, Values: map[string]string{}}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	if st.Values == nil {
		st.Values = map[string]string{}
	}
	return &st, nil
}

func (s Store) SaveViewState(st *ViewState) error {
	if st == nil || !s.enabled() {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.Dir, viewStateFileName+".*.tmp", s.path(viewStateFileName), b, 0o644)
}

// GetItem returns the stored value for key.
func (s Store) GetItem(key string) (string, bool, error) {
	viewStateMu.Lock()
	defer viewStateMu.Unlock()
	st, err := s.LoadViewState()
	if err != nil {
		return "", false, err
	}
	v, ok := st.Values[key]
	return v, ok, nil
}

// SetItem stores value under key, replacing any previous value.
func (s Store) SetItem(key, value string) error {
	viewStateMu.Lock()
	defer viewStateMu.Unlock()
	st, err := s.LoadViewState()
	if err != nil {
		return err
	}
	st.Values[key] = value
	return s.SaveViewState(st)
}
