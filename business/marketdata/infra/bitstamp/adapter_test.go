package bitstamp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/book-aggregator/business/marketdata/app"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// bitstampServer expects a subscribe frame, answers with confirmEvent,
// then plays back the given frames.
func bitstampServer(t *testing.T, confirmEvent string, frames []string, gotChannel chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()

		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return
		}
		if gotChannel != nil {
			gotChannel <- req.Data.Channel
		}

		confirm, _ := json.Marshal(map[string]any{
			"event":   confirmEvent,
			"channel": req.Data.Channel,
			"data":    map[string]any{},
		})
		if err := conn.Write(ctx, websocket.MessageText, confirm); err != nil {
			return
		}

		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func nextEvent(t *testing.T, events <-chan app.FeedEvent) app.FeedEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	panic("unreachable")
}

func TestAdapterSubscribesAndStreams(t *testing.T) {
	gotChannel := make(chan string, 1)
	srv := bitstampServer(t, eventSubscribed, []string{
		`{"event":"data","channel":"order_book_ethbtc","data":{"bids":[["10.0","1"]],"asks":[["11.0","2"]]}}`,
	}, gotChannel)
	defer srv.Close()

	adapter, err := NewAdapter(Config{BaseURL: wsURL(srv)}, testLogger())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	events, err := adapter.Connect(context.Background(), "ethbtc", 20)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer adapter.Close()

	if ch := <-gotChannel; ch != "order_book_ethbtc" {
		t.Errorf("subscribed channel = %q, want %q", ch, "order_book_ethbtc")
	}

	ev := nextEvent(t, events)
	if ev.Err != nil {
		t.Fatalf("unexpected event error: %v", ev.Err)
	}
	if ev.Snapshot.Bids[0].Price != 10.0 || ev.Snapshot.Asks[0].Amount != 2 {
		t.Errorf("snapshot = %+v", ev.Snapshot)
	}
}

func TestAdapterHandshakeRejected(t *testing.T) {
	srv := bitstampServer(t, "bts:error", nil, nil)
	defer srv.Close()

	adapter, err := NewAdapter(Config{BaseURL: wsURL(srv)}, testLogger())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	_, err = adapter.Connect(context.Background(), "ethbtc", 20)
	if err == nil {
		t.Fatal("Connect succeeded despite rejected subscription")
	}
	if apperror.GetCode(err) != apperror.CodeHandshakeFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeHandshakeFailed)
	}
}

func TestAdapterReportsDisconnect(t *testing.T) {
	srv := bitstampServer(t, eventSubscribed, []string{
		`{"event":"data","channel":"order_book_ethbtc","data":{"bids":[["10.0","1"]],"asks":[]}}`,
	}, nil)

	adapter, err := NewAdapter(Config{BaseURL: wsURL(srv)}, testLogger())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	events, err := adapter.Connect(context.Background(), "ethbtc", 20)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer adapter.Close()

	nextEvent(t, events)
	srv.CloseClientConnections()
	srv.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("channel closed without terminal disconnect event")
			}
			if apperror.GetCode(ev.Err) == apperror.CodeFeedDisconnected {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for disconnect event")
		}
	}
}
