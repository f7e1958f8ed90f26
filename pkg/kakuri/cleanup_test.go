package kakuri

import (
	"errors"
	"testing"
)

func TestCleanupStackRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	s := &CleanupStack{}
	s.Push("first", func() error { order = append(order, "first"); return nil })
	s.Push("second", func() error { order = append(order, "second"); return nil })
	s.Push("third", func() error { order = append(order, "third"); return nil })

	s.Run()

	if len(order) != 3 || order[0] != "third" || order[1] != "second" || order[2] != "first" {
		t.Errorf("cleanup order = %v, want LIFO", order)
	}
	if s.Len() != 0 {
		t.Errorf("stack not cleared after Run, %d actions left", s.Len())
	}
}

func TestCleanupStackContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	var ran []string
	s := &CleanupStack{}
	s.Push("a", func() error { ran = append(ran, "a"); return nil })
	s.Push("b", func() error { return errors.New("boom") })
	s.Push("c", func() error { ran = append(ran, "c"); return nil })

	s.Run()

	if len(ran) != 2 || ran[0] != "c" || ran[1] != "a" {
		t.Errorf("a failing action stopped cleanup: ran %v", ran)
	}
}

func TestCleanupStackRunTwice(t *testing.T) {
	t.Parallel()

	count := 0
	s := &CleanupStack{}
	s.Push("once", func() error { count++; return nil })

	s.Run()
	s.Run()

	if count != 1 {
		t.Errorf("action ran %d times, want 1", count)
	}
}
