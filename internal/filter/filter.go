// Package filter implements the roster's multi-select filters. The predicate
// list is rebuilt from each roster snapshot: a fixed set of static predicates
// followed by one predicate per special group seen in the data.
package filter

import (
	"fmt"
	"sort"

	"pickupBoard/internal/model"
)

type Kind int

const (
	KindStatic Kind = iota
	KindDynamic
)

func (k Kind) String() string {
	if k == KindDynamic {
		return "dynamic"
	}
	return "static"
}

const (
	LabelConfirmed    = "Confirmed"
	LabelNotConfirmed = "Not Confirmed"
	LabelOnlyPackers  = "Only Packers"
	LabelOnlyDrivers  = "Only Drivers"
	LabelBoth         = "Packers & Drivers"
)

type Predicate struct {
	Kind   Kind
	Label  string
	Active bool
	Match  func(model.RosterSlot) bool
}

func static() []Predicate {
	return []Predicate{
		{Kind: KindStatic, Label: LabelConfirmed, Match: func(s model.RosterSlot) bool { return s.Confirmed }},
		{Kind: KindStatic, Label: LabelNotConfirmed, Match: func(s model.RosterSlot) bool { return !s.Confirmed }},
		{Kind: KindStatic, Label: LabelOnlyPackers, Match: func(s model.RosterSlot) bool { return s.Type == model.TypePacker }},
		{Kind: KindStatic, Label: LabelOnlyDrivers, Match: func(s model.RosterSlot) bool { return s.Type == model.TypeDriver }},
		{Kind: KindStatic, Label: LabelBoth, Match: func(s model.RosterSlot) bool { return s.Type == model.TypeBoth }},
	}
}

func specialGroup(label string) Predicate {
	return Predicate{
		Kind:  KindDynamic,
		Label: label,
		Match: func(s model.RosterSlot) bool { return s.SpecialGroup == label },
	}
}

// Set is an ordered predicate list with activation state.
type Set struct {
	preds []Predicate
}

// Build returns the predicates for roster, all inactive. Special groups are
// sorted so the same roster always yields the same indices.
func Build(roster []model.RosterSlot) *Set {
	seen := make(map[string]struct{})
	var groups []string
	for _, s := range roster {
		if s.SpecialGroup == "" {
			continue
		}
		if _, ok := seen[s.SpecialGroup]; ok {
			continue
		}
		seen[s.SpecialGroup] = struct{}{}
		groups = append(groups, s.SpecialGroup)
	}
	sort.Strings(groups)

	preds := static()
	for _, g := range groups {
		preds = append(preds, specialGroup(g))
	}
	return &Set{preds: preds}
}

func (s *Set) Len() int {
	return len(s.preds)
}

// Predicates returns a copy of the list.
func (s *Set) Predicates() []Predicate {
	return append([]Predicate(nil), s.preds...)
}

func (s *Set) Labels() []string {
	out := make([]string, len(s.preds))
	for i, p := range s.preds {
		out[i] = p.Label
	}
	return out
}

func (s *Set) SetActive(i int, active bool) error {
	if i < 0 || i >= len(s.preds) {
		return fmt.Errorf("filter index %d out of range [0,%d)", i, len(s.preds))
	}
	s.preds[i].Active = active
	return nil
}

// Activate marks the predicates at indices active. Nothing changes when any
// index is out of range.
func (s *Set) Activate(indices ...int) error {
	for _, i := range indices {
		if i < 0 || i >= len(s.preds) {
			return fmt.Errorf("filter index %d out of range [0,%d)", i, len(s.preds))
		}
	}
	for _, i := range indices {
		s.preds[i].Active = true
	}
	return nil
}

func (s *Set) Toggle(i int) error {
	if i < 0 || i >= len(s.preds) {
		return fmt.Errorf("filter index %d out of range [0,%d)", i, len(s.preds))
	}
	s.preds[i].Active = !s.preds[i].Active
	return nil
}

// Clear deactivates every predicate.
func (s *Set) Clear() {
	for i := range s.preds {
		s.preds[i].Active = false
	}
}

func (s *Set) Active() []string {
	var out []string
	for _, p := range s.preds {
		if p.Active {
			out = append(out, p.Label)
		}
	}
	return out
}

func (s *Set) Apply(roster []model.RosterSlot) []model.RosterSlot {
	return Apply(roster, s.preds)
}

// Apply keeps the rows satisfying every active predicate. With no active
// predicate the roster is returned unchanged.
func Apply(roster []model.RosterSlot, preds []Predicate) []model.RosterSlot {
	var active []Predicate
	for _, p := range preds {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return roster
	}

	out := make([]model.RosterSlot, 0, len(roster))
rows:
	for _, s := range roster {
		for _, p := range active {
			if !p.Match(s) {
				continue rows
			}
		}
		out = append(out, s)
	}
	return out
}
