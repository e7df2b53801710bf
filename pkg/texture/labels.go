package texture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrLabelMismatch is returned when a model references label ids missing from the label map.
var ErrLabelMismatch = errors.New("model labels do not match label map")

// LabelMap is a bidirectional person name ↔ label id mapping.
type LabelMap struct {
	byName map[string]int
	byID   map[int]string
	next   int // one past the highest id in use
}

// NewLabelMap creates an empty map.
func NewLabelMap() *LabelMap {
	return &LabelMap{
		byName: make(map[string]int),
		byID:   make(map[int]string),
	}
}

// Add returns the id for name, assigning one past the highest id on first use.
func (l *LabelMap) Add(name string) int {
	if id, ok := l.byName[name]; ok {
		return id
	}
	id := l.next
	l.byName[name] = id
	l.byID[id] = name
	l.next++
	return id
}

// ID returns the label id for name.
func (l *LabelMap) ID(name string) (int, bool) {
	id, ok := l.byName[name]
	return id, ok
}

// Name returns the person name for id.
func (l *LabelMap) Name(id int) (string, bool) {
	name, ok := l.byID[id]
	return name, ok
}

// Len returns the number of labels.
func (l *LabelMap) Len() int {
	return len(l.byName)
}

// Names returns the names ordered by label id.
func (l *LabelMap) Names() []string {
	ids := make([]int, 0, len(l.byID))
	for id := range l.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, l.byID[id])
	}
	return names
}

// Covers checks that every label id is present in the map.
func (l *LabelMap) Covers(ids []int) error {
	for _, id := range ids {
		if _, ok := l.byID[id]; !ok {
			return fmt.Errorf("%w: label %d has no name", ErrLabelMismatch, id)
		}
	}
	return nil
}

// MarshalJSON encodes the map as {"name": id}.
func (l *LabelMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.byName)
}

// UnmarshalJSON decodes {"name": id}, rejecting duplicate ids.
func (l *LabelMap) UnmarshalJSON(data []byte) error {
	var byName map[string]int
	if err := json.Unmarshal(data, &byName); err != nil {
		return err
	}

	byID := make(map[int]string, len(byName))
	next := 0
	for name, id := range byName {
		if other, ok := byID[id]; ok {
			return fmt.Errorf("label %d assigned to both %q and %q", id, other, name)
		}
		byID[id] = name
		if id >= next {
			next = id + 1
		}
	}

	l.byName = byName
	l.byID = byID
	l.next = next
	return nil
}

// Save writes the map as indented JSON.
func (l *LabelMap) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create labels directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}
	return nil
}

// LoadLabelMap reads a map written by Save.
func LoadLabelMap(path string) (*LabelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	l := NewLabelMap()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("failed to parse labels %s: %w", path, err)
	}
	return l, nil
}
