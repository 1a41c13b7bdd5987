package bus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// startBus spins up a hub, a mux and the WebSocket endpoint, and returns them
// with the ws:// URL surfaces would dial.
func startBus(t *testing.T) (*Hub, *Mux, string) {
	t.Helper()
	hub := NewHub(nil)
	mux := NewMux(nil)
	srv := httptest.NewServer(NewServer(hub, mux, nil))
	t.Cleanup(srv.Close)
	return hub, mux, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRequestRoundTrip(t *testing.T) {
	_, mux, url := startBus(t)
	mux.Handle("sum", func(_ context.Context, payload json.RawMessage) (any, error) {
		var nums []int
		if err := json.Unmarshal(payload, &nums); err != nil {
			return nil, err
		}
		total := 0
		for _, n := range nums {
			total += n
		}
		return total, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	var total int
	if err := c.RequestJSON(ctx, "sum", []int{1, 2, 3}, &total); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if total != 6 {
		t.Errorf("Expected 6, got %d", total)
	}
}

func TestBroadcastReachesAllSurfaces(t *testing.T) {
	hub, _, url := startBus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recv := make(chan string, 2)
	for i := 0; i < 2; i++ {
		c, err := Dial(ctx, url, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer c.Close()
		c.OnEvent(KindStateChanged, func(payload json.RawMessage) {
			var s string
			_ = json.Unmarshal(payload, &s)
			recv <- s
		})
	}

	// Registration is asynchronous with respect to the upgrade handshake.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Surfaces() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Surfaces() != 2 {
		t.Fatalf("Expected 2 surfaces, got %d", hub.Surfaces())
	}

	hub.Broadcast(KindStateChanged, "fresh")

	for i := 0; i < 2; i++ {
		select {
		case got := <-recv:
			if got != "fresh" {
				t.Errorf("Expected %q, got %q", "fresh", got)
			}
		case <-ctx.Done():
			t.Fatal("Timed out waiting for broadcast")
		}
	}
}

func TestEventsProcessedInArrivalOrder(t *testing.T) {
	_, mux, url := startBus(t)

	var mu sync.Mutex
	var seen []int
	mux.Handle(KindProfileScraped, func(_ context.Context, payload json.RawMessage) (any, error) {
		var n int
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, err
		}
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	const events = 20
	for i := 0; i < events; i++ {
		if err := c.Send(ctx, KindProfileScraped, i); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == events {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out: processed %d of %d events", n, events)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range seen {
		if n != i {
			t.Fatalf("Events from one surface must keep arrival order, got %v", seen)
		}
	}
}

func TestRequest_ErrorPayloadSurfacesAsError(t *testing.T) {
	_, mux, url := startBus(t)
	mux.Handle(KindSignIn, func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("invalid credentials")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	_, err = c.Request(ctx, KindSignIn, map[string]string{"email": "a@b.c"})
	if err == nil {
		t.Fatal("Expected the handler error to surface")
	}
	if err.Error() != "invalid credentials" {
		t.Errorf("Expected error message to cross the wire, got %q", err.Error())
	}
}

func TestRequest_ContextDeadlineWithoutReply(t *testing.T) {
	_, mux, url := startBus(t)
	mux.Handle("stall", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	c, err := Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.Request(ctx, "stall", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the caller's deadline to govern, got %v", err)
	}
}
