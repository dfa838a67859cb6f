package filter

import (
	"reflect"
	"testing"

	"pickupBoard/internal/model"
)

func roster() []model.RosterSlot {
	return []model.RosterSlot{
		{ID: "1", Type: model.TypeDriver, Confirmed: true, SpecialGroup: "Scouts"},
		{ID: "2", Type: model.TypePacker, Confirmed: false},
		{ID: "3", Type: model.TypeBoth, Confirmed: true},
		{ID: "4", Type: model.TypeDriver, Confirmed: false, SpecialGroup: "Acme Corp"},
		{ID: "5", Type: model.TypePacker, Confirmed: true, SpecialGroup: "Scouts"},
	}
}

func ids(rows []model.RosterSlot) []string {
	out := []string{}
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestBuild_StaticThenSortedGroups(t *testing.T) {
	s := Build(roster())
	want := []string{LabelConfirmed, LabelNotConfirmed, LabelOnlyPackers, LabelOnlyDrivers, LabelBoth, "Acme Corp", "Scouts"}
	if !reflect.DeepEqual(s.Labels(), want) {
		t.Errorf("Labels = %v, want %v", s.Labels(), want)
	}
	for i, p := range s.Predicates() {
		if p.Active {
			t.Errorf("predicate %d active on build", i)
		}
		wantKind := KindStatic
		if i >= 5 {
			wantKind = KindDynamic
		}
		if p.Kind != wantKind {
			t.Errorf("predicate %d kind = %v, want %v", i, p.Kind, wantKind)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	r := roster()
	a, b := Build(r), Build(r)
	if a.Len() != b.Len() || !reflect.DeepEqual(a.Labels(), b.Labels()) {
		t.Errorf("builds differ: %v vs %v", a.Labels(), b.Labels())
	}

	// order of rows must not move group indices
	reversed := make([]model.RosterSlot, len(r))
	for i := range r {
		reversed[len(r)-1-i] = r[i]
	}
	if !reflect.DeepEqual(Build(reversed).Labels(), a.Labels()) {
		t.Errorf("row order changed predicate order")
	}
}

func TestApply_NoActiveIsIdentity(t *testing.T) {
	r := roster()
	if got := Build(r).Apply(r); !reflect.DeepEqual(got, r) {
		t.Errorf("Apply with nothing active changed the roster")
	}
}

func TestApply_AndSemantics(t *testing.T) {
	tests := []struct {
		name   string
		active []int
		want   []string
	}{
		{"confirmed", []int{0}, []string{"1", "3", "5"}},
		{"not confirmed", []int{1}, []string{"2", "4"}},
		{"only packers", []int{2}, []string{"2", "5"}},
		{"only drivers", []int{3}, []string{"1", "4"}},
		{"both", []int{4}, []string{"3"}},
		{"confirmed drivers", []int{0, 3}, []string{"1"}},
		{"confirmed and not confirmed", []int{0, 1}, []string{}},
		{"scouts", []int{6}, []string{"1", "5"}},
		{"confirmed packers in scouts", []int{0, 2, 6}, []string{"5"}},
		{"acme", []int{5}, []string{"4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := roster()
			s := Build(r)
			if err := s.Activate(tt.active...); err != nil {
				t.Fatal(err)
			}
			if got := ids(s.Apply(r)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_EveryActivationSubset(t *testing.T) {
	r := roster()
	base := Build(r)
	n := base.Len()
	for mask := 0; mask < 1<<n; mask++ {
		s := Build(r)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				_ = s.SetActive(i, true)
			}
		}
		got := s.Apply(r)
		var want []model.RosterSlot
		for _, row := range r {
			ok := true
			for _, p := range s.Predicates() {
				if p.Active && !p.Match(row) {
					ok = false
				}
			}
			if ok {
				want = append(want, row)
			}
		}
		if !reflect.DeepEqual(ids(got), ids(want)) {
			t.Fatalf("mask %b: got %v, want %v", mask, ids(got), ids(want))
		}
	}
}

func TestSet_ClearAndBounds(t *testing.T) {
	s := Build(roster())
	_ = s.Activate(0, 3)
	if len(s.Active()) != 2 {
		t.Fatalf("Active = %v", s.Active())
	}
	s.Clear()
	if len(s.Active()) != 0 {
		t.Errorf("Clear left %v active", s.Active())
	}
	if err := s.Activate(1, 99); err == nil {
		t.Errorf("expected range error")
	}
	if len(s.Active()) != 0 {
		t.Errorf("failed Activate must not change state")
	}
	if err := s.Toggle(2); err != nil || s.Active()[0] != LabelOnlyPackers {
		t.Errorf("Toggle: %v %v", err, s.Active())
	}
}
