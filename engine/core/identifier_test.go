package core

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestIdentifierTableReusesFreedIDs(t *testing.T) {
	table := NewIdentifierTable[string](2)

	a := table.Acquire("a")
	b := table.Acquire("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("ids = %d, %d", a, b)
	}
	if v, ok := table.Get(b); !ok || v != "b" {
		t.Errorf("Get(%d) = %q, %v", b, v, ok)
	}

	if v, err := table.Release(a); err != nil || v != "a" {
		t.Fatalf("Release(%d) = %q, %v", a, v, err)
	}
	if _, ok := table.Get(a); ok {
		t.Error("released id still resolves")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}

	c := table.Acquire("c")
	if c != a {
		t.Errorf("Acquire after release = %d, want reused %d", c, a)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestIdentifierTableReleaseErrors(t *testing.T) {
	table := NewIdentifierTable[int](0)
	if _, err := table.Release(0); err == nil {
		t.Error("released the null id")
	}
	if _, err := table.Release(7); err == nil {
		t.Error("released an id out of range")
	}
	id := table.Acquire(1)
	table.Release(id)
	if _, err := table.Release(id); err == nil {
		t.Error("released an id twice")
	}
	if _, ok := table.Get(0); ok {
		t.Error("null id resolved")
	}
}

func TestIdentifierTableReleaseErrorDetail(t *testing.T) {
	table := NewIdentifierTable[int](0)
	id := table.Acquire(1)
	table.Release(id)

	_, err := table.Release(id)
	if err == nil || !strings.Contains(err.Error(), "is not in use") {
		t.Fatalf("Release(%d) error = %v", id, err)
	}
	if errors.GetReportableStackTrace(err) == nil {
		t.Error("release error carries no stack trace")
	}
	if errors.IsAssertionFailure(err) {
		t.Error("double release reported as assertion failure")
	}

	_, err = table.Release(99)
	if err == nil || !strings.Contains(err.Error(), "out of range (max=1)") {
		t.Errorf("Release(99) error = %v", err)
	}
}
