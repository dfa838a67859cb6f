package snapshot

import "testing"

func TestStore_SlowSupersededResponseIsDropped(t *testing.T) {
	s := New[string]()

	slow := s.Begin("evt1")
	fast := s.Begin("evt1")

	if v, kept := s.Commit(fast, "new"); !kept || v != "new" {
		t.Fatalf("fast commit = %q, %v", v, kept)
	}
	v, kept := s.Commit(slow, "old")
	if kept {
		t.Errorf("stale response was kept")
	}
	if v != "new" {
		t.Errorf("held value = %q, want new", v)
	}
	if got, _ := s.Get("evt1"); got != "new" {
		t.Errorf("Get = %q", got)
	}
}

func TestStore_InOrderCommits(t *testing.T) {
	s := New[int]()
	a := s.Begin("k")
	if _, kept := s.Commit(a, 1); !kept {
		t.Fatal("first commit dropped")
	}
	b := s.Begin("k")
	if _, kept := s.Commit(b, 2); !kept {
		t.Fatal("second commit dropped")
	}
	if got, ok := s.Get("k"); !ok || got != 2 {
		t.Errorf("Get = %d, %v", got, ok)
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s := New[int]()
	a := s.Begin("a")
	b := s.Begin("b")
	s.Commit(b, 2)
	if _, kept := s.Commit(a, 1); !kept {
		t.Errorf("commit on a different key must not be stale")
	}
	s.Forget("a")
	if _, ok := s.Get("a"); ok {
		t.Errorf("Forget left a value")
	}
}

func TestStore_ForgetKeepsOrdering(t *testing.T) {
	s := New[string]()
	s.Begin("all")
	s.Begin("all")
	old := s.Begin("all")

	s.Forget("all")
	if _, ok := s.Get("all"); ok {
		t.Fatal("value survived Forget")
	}

	fresh := s.Begin("all")
	if v, kept := s.Commit(fresh, "post-write"); !kept || v != "post-write" {
		t.Fatalf("fresh commit = %q, %v", v, kept)
	}
	if v, kept := s.Commit(old, "pre-write"); kept || v != "post-write" {
		t.Errorf("fetch begun before Forget = %q, kept %v", v, kept)
	}

	next := s.Begin("all")
	if v, kept := s.Commit(next, "post-write-2"); !kept || v != "post-write-2" {
		t.Errorf("newest fetch = %q, kept %v", v, kept)
	}
	if got, _ := s.Get("all"); got != "post-write-2" {
		t.Errorf("Get = %q", got)
	}
}

func TestStore_StaleCommitAfterForgetIsNotCached(t *testing.T) {
	s := New[string]()
	slow := s.Begin("all")
	fast := s.Begin("all")
	s.Commit(fast, "a")
	s.Forget("all")

	v, kept := s.Commit(slow, "b")
	if kept {
		t.Errorf("stale response was kept")
	}
	if v != "b" {
		t.Errorf("returned %q, want the caller's own value", v)
	}
	if _, ok := s.Get("all"); ok {
		t.Errorf("stale response was cached")
	}
}
