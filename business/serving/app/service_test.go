package app

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	marketdataapp "github.com/fd1az/book-aggregator/business/marketdata/app"
	marketdata "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/bookrpc"
	"github.com/fd1az/book-aggregator/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// stubAdapter replays canned snapshots, then keeps the feed open until
// the subscription context ends.
type stubAdapter struct {
	venue     marketdata.Venue
	snapshots []*marketdata.Snapshot
	holdOpen  bool
}

func (a *stubAdapter) Venue() marketdata.Venue { return a.venue }

func (a *stubAdapter) Connect(ctx context.Context, symbol string, depth int) (<-chan marketdataapp.FeedEvent, error) {
	events := make(chan marketdataapp.FeedEvent, len(a.snapshots))
	for _, snap := range a.snapshots {
		events <- marketdataapp.FeedEvent{Venue: a.venue, Snapshot: snap}
	}
	if a.holdOpen {
		go func() {
			<-ctx.Done()
			close(events)
		}()
	} else {
		close(events)
	}
	return events, nil
}

func (a *stubAdapter) Close() error { return nil }

func snapshot(bids, asks [][2]float64) *marketdata.Snapshot {
	snap := &marketdata.Snapshot{}
	for _, p := range bids {
		snap.Bids = append(snap.Bids, marketdata.PriceLevel{Price: p[0], Amount: p[1]})
	}
	for _, p := range asks {
		snap.Asks = append(snap.Asks, marketdata.PriceLevel{Price: p[0], Amount: p[1]})
	}
	return snap
}

// startServer serves the given service over an in-memory listener and
// returns a connected client.
func startServer(t *testing.T, svc *Service) bookrpc.OrderbookAggregatorClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	bookrpc.RegisterOrderbookAggregatorServer(server, svc)

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return bookrpc.NewOrderbookAggregatorClient(conn)
}

func TestBookSummaryEndToEnd(t *testing.T) {
	factory := func() ([]marketdataapp.FeedAdapter, error) {
		return []marketdataapp.FeedAdapter{
			&stubAdapter{
				venue: marketdata.VenueBinance,
				snapshots: []*marketdata.Snapshot{snapshot(
					[][2]float64{{10.0, 1}, {9.5, 1}, {9.0, 1}},
					[][2]float64{{11.0, 1}, {11.5, 1}, {12.0, 1}},
				)},
				holdOpen: true,
			},
			&stubAdapter{
				venue: marketdata.VenueBitstamp,
				snapshots: []*marketdata.Snapshot{snapshot(
					[][2]float64{{10.2, 2}},
					[][2]float64{{10.9, 2}},
				)},
				holdOpen: true,
			},
		}, nil
	}

	svc, err := NewService(Config{Symbol: "ethbtc", Depth: 2}, factory, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	client := startServer(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.BookSummary(ctx, &bookrpc.Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}

	// Both venues publish one snapshot each. Early summaries may carry
	// only one venue (or be dropped for a slow reader); the final merged
	// summary always arrives, with Bitstamp's 10.2 on top.
	var summary *bookrpc.Summary
	for {
		summary, err = stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if len(summary.Bids) > 0 && summary.Bids[0].Price == 10.2 {
			break
		}
	}

	if len(summary.Bids) != 2 || len(summary.Asks) != 2 {
		t.Fatalf("sides = %d/%d, want 2/2", len(summary.Bids), len(summary.Asks))
	}
	if summary.Spread <= 0 {
		t.Errorf("spread = %v, want > 0", summary.Spread)
	}
	for _, l := range append(summary.Bids, summary.Asks...) {
		if l.Exchange != "Binance" && l.Exchange != "Bitstamp" {
			t.Errorf("exchange = %q, want Binance or Bitstamp", l.Exchange)
		}
	}
	// Best bid across venues is Bitstamp's 10.2; best ask Bitstamp's 10.9.
	if summary.Bids[0].Price != 10.2 || summary.Bids[0].Exchange != "Bitstamp" {
		t.Errorf("best bid = %+v, want 10.2 from Bitstamp", summary.Bids[0])
	}
	if summary.Asks[0].Price != 10.9 {
		t.Errorf("best ask = %+v, want 10.9", summary.Asks[0])
	}

	cancel()
}

func TestBookSummaryAbortsWhenBuildFails(t *testing.T) {
	factory := func() ([]marketdataapp.FeedAdapter, error) {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError)
	}

	svc, err := NewService(Config{Symbol: "ethbtc", Depth: 2}, factory, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	client := startServer(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.BookSummary(ctx, &bookrpc.Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}
	_, err = stream.Recv()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("Recv error is not a status: %v", err)
	}
	if st.Code() != codes.Aborted {
		t.Errorf("code = %s, want %s", st.Code(), codes.Aborted)
	}
	if st.Message() != "could not create orderbook" {
		t.Errorf("message = %q, want %q", st.Message(), "could not create orderbook")
	}
}

func TestBookSummaryReportsDataLossWhenFeedsEnd(t *testing.T) {
	factory := func() ([]marketdataapp.FeedAdapter, error) {
		return []marketdataapp.FeedAdapter{
			&stubAdapter{
				venue: marketdata.VenueBinance,
				snapshots: []*marketdata.Snapshot{snapshot(
					[][2]float64{{10.0, 1}},
					[][2]float64{{11.0, 1}},
				)},
				// Feed closes after its single snapshot.
			},
		}, nil
	}

	svc, err := NewService(Config{Symbol: "ethbtc", Depth: 2}, factory, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	client := startServer(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.BookSummary(ctx, &bookrpc.Empty{})
	if err != nil {
		t.Fatalf("BookSummary: %v", err)
	}

	var last error
	for {
		_, err := stream.Recv()
		if err != nil {
			last = err
			break
		}
	}
	st, ok := status.FromError(last)
	if !ok {
		t.Fatalf("terminal error is not a status: %v", last)
	}
	if st.Code() != codes.DataLoss {
		t.Errorf("code = %s, want %s", st.Code(), codes.DataLoss)
	}
	if st.Message() != "could not retrieve update from orderbook" {
		t.Errorf("message = %q, want %q", st.Message(), "could not retrieve update from orderbook")
	}
}
