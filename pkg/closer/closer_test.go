package closer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCloseLIFO(t *testing.T) {
	c := NewCloser(0)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	c.AddFunc("postgres", record("postgres"))
	c.AddFunc("redis", record("redis"))
	c.AddFunc("http", record("http"))

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := strings.Join(order, ","); got != "http,redis,postgres" {
		t.Fatalf("unexpected order %s", got)
	}

	// повторный вызов ничего не закрывает
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("resources closed twice: %v", order)
	}
}

func TestCloseCollectsNamedErrors(t *testing.T) {
	c := NewCloser(0)
	c.Add("kafka", func(context.Context) error { return errors.New("broker gone") })
	c.AddFunc("qdrant", func() {})

	err := c.Close(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "kafka: broker gone") {
		t.Errorf("error must name the resource: %v", err)
	}
}

func TestCloseForcedOnTimeout(t *testing.T) {
	c := NewCloser(100 * time.Millisecond)

	var forced bool
	c.Add("slow-first", func(ctx context.Context) error {
		forced = true
		return nil
	})
	c.Add("stuck", func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	if err == nil || !strings.Contains(err.Error(), "shutdown interrupted") {
		t.Fatalf("expected interrupted shutdown, got %v", err)
	}
	if !forced {
		t.Error("remaining resource must be closed in forced mode")
	}
}
