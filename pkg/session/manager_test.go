package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antibyte/retrocalc/pkg/calculator"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCreateAndGet(t *testing.T) {
	m := NewManager()
	s, err := m.Create("10.0.0.1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.ID == "" || s.Calc == nil || s.IPAddress != "10.0.0.1" {
		t.Fatalf("session = %+v", s)
	}
	if run, _ := s.Calc.Mode(); run != calculator.ModeDone {
		t.Errorf("new calculator mode = %v", run)
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestMaxSessions(t *testing.T) {
	m := NewManager(WithMaxSessions(2))
	for i := 0; i < 2; i++ {
		if _, err := m.Create("ip"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Create("ip"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("third Create = %v, want ErrTooManySessions", err)
	}
}

func TestRemove(t *testing.T) {
	m := NewManager()
	s, _ := m.Create("ip")
	if !m.Remove(s.ID) {
		t.Error("Remove returned false for a live session")
	}
	if m.Remove(s.ID) {
		t.Error("second Remove returned true")
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d", m.Count())
	}
}

func TestCleanup(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewManager(WithMaxInactive(time.Minute))
	m.now = clock.Now

	idle, _ := m.Create("a")
	attached, _ := m.Create("b")
	detach := attached.Attach()

	clock.Advance(2 * time.Minute)
	fresh, _ := m.Create("c")

	if removed := m.Cleanup(); removed != 1 {
		t.Fatalf("Cleanup removed %d, want 1", removed)
	}
	if _, err := m.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Error("idle session survived cleanup")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Error("fresh session was removed")
	}
	if _, err := m.Get(attached.ID); err != nil {
		t.Error("connected session was removed")
	}

	detach()
	detach()
	if attached.Connected() {
		t.Error("session still connected after detach")
	}
}

func TestTouch(t *testing.T) {
	m := NewManager()
	s, _ := m.Create("ip")
	before := s.LastActivity()
	time.Sleep(2 * time.Millisecond)
	s.Touch()
	if !s.LastActivity().After(before) {
		t.Errorf("LastActivity %v not after %v", s.LastActivity(), before)
	}
}

func TestFactory(t *testing.T) {
	var ids []string
	m := NewManager(WithFactory(func(id string) *calculator.Calculator {
		ids = append(ids, id)
		return calculator.New()
	}))
	s, _ := m.Create("ip")
	if len(ids) != 1 || ids[0] != s.ID {
		t.Errorf("factory ids = %v, session %s", ids, s.ID)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
