package idgen

import (
	"testing"
)

func TestNew_Prefixes(t *testing.T) {
	for _, prefix := range []string{TaskPrefix, ApprovalPrefix, BallotPrefix} {
		id, err := New(prefix)
		if err != nil {
			t.Fatalf("New(%q) error: %v", prefix, err)
		}
		if len(id) != len(prefix)+length {
			t.Errorf("New(%q) length = %d, want %d (id=%q)", prefix, len(id), len(prefix)+length, id)
		}
		if !Valid(prefix, id) {
			t.Errorf("Valid(%q, %q) = false", prefix, id)
		}
	}
}

func TestNew_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := New(BallotPrefix)
		if err != nil {
			t.Fatalf("New() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	for _, tc := range []struct {
		prefix string
		id     string
		want   bool
	}{
		{TaskPrefix, "tk-abcdefABCDEF", true},
		{TaskPrefix, "ap-abcdefABCDEF", false},
		{TaskPrefix, "tk-short", false},
		{TaskPrefix, "tk-abcdefABCDE!", false},
		{ApprovalPrefix, "", false},
	} {
		if got := Valid(tc.prefix, tc.id); got != tc.want {
			t.Errorf("Valid(%q, %q) = %v, want %v", tc.prefix, tc.id, got, tc.want)
		}
	}
}
