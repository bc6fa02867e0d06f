package netstatus

import "testing"

func TestSetNotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor(true)
	ch := m.Subscribe()

	m.Set(true) // no change, no event
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %v for unchanged state", v)
	default:
	}

	m.Set(false)
	select {
	case v := <-ch:
		if v {
			t.Fatal("expected offline event")
		}
	default:
		t.Fatal("offline transition not delivered")
	}
	if m.Online() {
		t.Fatal("monitor still reports online")
	}

	m.Set(true)
	select {
	case v := <-ch:
		if !v {
			t.Fatal("expected online event")
		}
	default:
		t.Fatal("online transition not delivered")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewMonitor(false)
	m.Subscribe() // never drained

	// Overflow the buffer; Set must not block.
	for i := 1; i <= 10; i++ {
		m.Set(i%2 == 1)
	}
	if m.Online() {
		t.Fatal("final state lost")
	}
}
