package http

import (
	"errors"
	"testing"
	"time"
)

func TestOutboxDeliverStopsAfterWriterFails(t *testing.T) {
	out := newOutbox(4)
	failed := make(chan error, 1)
	go out.run(func(interface{}) error { return errors.New("broken pipe") }, func(err error) { failed <- err })

	finished := make(chan int, 1)
	go func() {
		rejected := 0
		for i := 0; i < 20; i++ {
			if !out.deliver(outboundMessage[any]{Type: "session"}, nil) {
				rejected++
			}
		}
		finished <- rejected
	}()

	select {
	case rejected := <-finished:
		if rejected == 0 {
			t.Fatalf("expected deliveries to be rejected once the writer failed")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deliver blocked after the writer exited")
	}
	if err := <-failed; err == nil {
		t.Fatalf("expected the write error to be reported")
	}
	out.stop()
}

func TestOutboxDeliverHonoursAbort(t *testing.T) {
	out := newOutbox(1)
	abort := make(chan struct{})
	close(abort)

	if !out.deliver(outboundMessage[any]{Type: "quiz"}, nil) {
		t.Fatalf("first message must fit the buffer")
	}
	if out.deliver(outboundMessage[any]{Type: "session"}, abort) {
		t.Fatalf("expected deliver to give up on abort with a full queue")
	}
}

func TestOutboxWritesInOrder(t *testing.T) {
	out := newOutbox(4)
	var written []string
	go out.run(func(v interface{}) error {
		written = append(written, v.(outboundMessage[any]).Type)
		return nil
	}, func(error) {})

	for _, typ := range []string{"quiz", "session", "result"} {
		out.deliver(outboundMessage[any]{Type: typ}, nil)
	}
	out.stop()

	if len(written) != 3 || written[0] != "quiz" || written[2] != "result" {
		t.Fatalf("unexpected write order %v", written)
	}
}
