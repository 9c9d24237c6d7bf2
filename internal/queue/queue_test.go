package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/julienstroheker/tgc/internal/message"
)

func msg(s string) message.Message {
	return message.Message{Content: []byte(s)}
}

func TestQueue_FIFO(t *testing.T) {
	q := New("test")
	for i := 0; i < 200; i++ {
		if err := q.Push(msg(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	if q.Len() != 200 {
		t.Errorf("Expected 200 queued messages, got: %d", q.Len())
	}

	for i := 0; i < 200; i++ {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if want := fmt.Sprintf("m%d", i); string(got.Content) != want {
			t.Fatalf("Expected %s, got: %s", want, got.Content)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got: %d", q.Len())
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New("test")
	done := make(chan message.Message, 1)

	go func() {
		m, err := q.Pop(context.Background())
		if err != nil {
			t.Errorf("Pop failed: %v", err)
		}
		done <- m
	}()

	select {
	case <-done:
		t.Fatal("Expected Pop to block on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	_ = q.Push(msg("late"))

	select {
	case m := <-done:
		if string(m.Content) != "late" {
			t.Errorf("Expected late, got: %s", m.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Pop to return after Push")
	}
}

func TestQueue_PopContextCancel(t *testing.T) {
	q := New("test")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got: %v", err)
	}

	// a cancelled consumer must not lose a later message
	_ = q.Push(msg("kept"))
	m, err := q.Pop(context.Background())
	if err != nil || string(m.Content) != "kept" {
		t.Errorf("Expected kept message, got: %q, %v", m.Content, err)
	}
}

func TestQueue_Close(t *testing.T) {
	q := New("test")
	_ = q.Push(msg("pending"))
	q.Close()

	if err := q.Push(msg("rejected")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed on push after close, got: %v", err)
	}

	m, err := q.Pop(context.Background())
	if err != nil || string(m.Content) != "pending" {
		t.Errorf("Expected pending message before close error, got: %q, %v", m.Content, err)
	}

	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got: %v", err)
	}

	// closing twice is harmless
	q.Close()
}

func TestQueue_CloseWakesConsumer(t *testing.T) {
	q := New("test")
	errCh := make(chan error, 1)

	go func() {
		_, err := q.Pop(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Close to wake the consumer")
	}
}

func TestQueue_Wait(t *testing.T) {
	q := New("test")
	waited := make(chan error, 1)

	go func() {
		waited <- q.Wait(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	_ = q.Push(msg("x"))

	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Wait to return after Push")
	}

	if q.Len() != 1 {
		t.Errorf("Expected Wait to leave the message queued, got len %d", q.Len())
	}
}

func TestQueue_MultipleProducers(t *testing.T) {
	q := New("test")
	const producers = 4
	const perProducer = 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(msg(fmt.Sprintf("%d:%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	last := make(map[int]int)
	for p := 0; p < producers; p++ {
		last[p] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		m, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		var p, i int
		if _, err := fmt.Sscanf(string(m.Content), "%d:%d", &p, &i); err != nil {
			t.Fatalf("Unexpected content %q", m.Content)
		}
		if i != last[p]+1 {
			t.Fatalf("Expected producer %d message %d, got: %d", p, last[p]+1, i)
		}
		last[p] = i
	}
}

func TestPair(t *testing.T) {
	p := NewPair()
	if p.ToRemote == p.ToLocal {
		t.Fatal("Expected two distinct queues")
	}

	p.Close()
	if err := p.ToRemote.Push(msg("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ToRemote closed, got: %v", err)
	}
	if err := p.ToLocal.Push(msg("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ToLocal closed, got: %v", err)
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New("test")
	_ = q.Push(msg("a"))
	_ = q.Push(msg("b"))

	first, _ := q.Pop(context.Background())
	q.Requeue(first)

	for _, want := range []string{"a", "b"} {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if string(got.Content) != want {
			t.Errorf("Expected %s, got: %s", want, got.Content)
		}
	}

	// requeue on an empty, fully compacted queue
	q.Requeue(msg("c"))
	if got, _ := q.Pop(context.Background()); string(got.Content) != "c" {
		t.Errorf("Expected c, got: %s", got.Content)
	}
}

func TestQueue_RequeueAfterClose(t *testing.T) {
	q := New("test")
	q.Close()
	q.Requeue(msg("kept"))

	got, err := q.Pop(context.Background())
	if err != nil || string(got.Content) != "kept" {
		t.Errorf("Expected requeued message to drain after close, got: %q, %v", got.Content, err)
	}
}
