package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ephyphonic/uptime/server/internal/api"
)

type staticSource struct{}

func (staticSource) Status(context.Context) (api.StatusResponse, error) {
	return api.StatusResponse{Status: "online", LastEvents: []string{}}, nil
}

// Clients leaving while a broadcast is in flight must never be sent to
// after their channel is closed.
func TestBroadcast_ConcurrentUnregister(t *testing.T) {
	h := New(staticSource{}, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2000; i++ {
		c := &client{send: make(chan []byte, 1)}
		h.register(c)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.unregister(c)
		}()
		h.broadcast(ctx)
	}
	wg.Wait()

	if n := h.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestBroadcast_ConcurrentCloseAll(t *testing.T) {
	h := New(staticSource{}, time.Hour)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		for j := 0; j < 4; j++ {
			h.register(&client{send: make(chan []byte, 1)})
		}
		done := make(chan struct{})
		go func() {
			h.closeAll()
			close(done)
		}()
		h.broadcast(ctx)
		<-done
	}
}

func TestBroadcast_DropsSlowClient(t *testing.T) {
	h := New(staticSource{}, time.Hour)
	c := &client{send: make(chan []byte, 1)}
	h.register(c)

	h.broadcast(context.Background()) // fills the buffer
	h.broadcast(context.Background()) // buffer full: dropped

	if n := h.Count(); n != 0 {
		t.Fatalf("Count: got %d, want slow client dropped", n)
	}
	if _, ok := <-c.send; !ok {
		t.Fatal("first message lost")
	}
	if _, ok := <-c.send; ok {
		t.Error("send: want closed after drop")
	}
}
