package instance

import (
	"testing"
	"time"
)

func TestExitChannelBroadcastOnce(t *testing.T) {
	c := NewExitChannel()

	if _, ok := c.Result(); ok {
		t.Fatal("Result() reported a status before any write")
	}

	// Waiter registered before the write.
	before := make(chan ExitStatus, 1)
	go func() { before <- c.Wait() }()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Set(42, at)

	// Second write must not change the stored value.
	c.Set(7, at.Add(time.Hour))

	got := <-before
	if got.Code != 42 || !got.ExitedAt.Equal(at) {
		t.Errorf("pre-registered waiter got %+v, want code 42 at %v", got, at)
	}

	// Waiter registered after the write observes the identical value and
	// does not block.
	after := c.Wait()
	if after != got {
		t.Errorf("post-registered waiter got %+v, want %+v", after, got)
	}

	if st, ok := c.Result(); !ok || st != got {
		t.Errorf("Result() = %+v, %v, want %+v, true", st, ok, got)
	}
}

func TestExitChannelDone(t *testing.T) {
	c := NewExitChannel()

	select {
	case <-c.Done():
		t.Fatal("Done() fired before any write")
	default:
	}

	c.Set(0, time.Now().UTC())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() did not fire after the write")
	}
}
