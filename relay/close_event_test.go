package relay

import "testing"

func TestCloseEventTryRecv(t *testing.T) {
	c := NewCloseEvent()
	if c.TryRecv() {
		t.Fatal("expected TryRecv=false before Close")
	}
	c.Close()
	if !c.TryRecv() {
		t.Fatal("expected TryRecv=true after Close")
	}
}

func TestCloseEventIdempotent(t *testing.T) {
	c := NewCloseEvent()
	c.Close()
	c.Close() // must not panic
	select {
	case <-c.Done():
	default:
		t.Fatal("expected Done() to be closed")
	}
}
