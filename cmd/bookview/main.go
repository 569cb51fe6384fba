// Package main is the terminal viewer for the orderbook aggregator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fd1az/book-aggregator/internal/bookrpc"
	"github.com/fd1az/book-aggregator/pkg/ui"
)

const retryDelay = 2 * time.Second

func main() {
	addr := flag.String("addr", "localhost:50054", "Aggregator gRPC address")
	symbol := flag.String("symbol", "ethbtc", "Trading pair shown in the header")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go streamSummaries(ctx, *addr)

	if err := ui.Run(*symbol); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// streamSummaries consumes the BookSummary stream and feeds the TUI,
// reconnecting until the context is cancelled.
func streamSummaries(ctx context.Context, addr string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		ui.Send(ui.ErrorMsg{Err: err})
		return
	}
	defer conn.Close()

	client := bookrpc.NewOrderbookAggregatorClient(conn)

	for ctx.Err() == nil {
		if err := consumeStream(ctx, client, addr); err != nil && ctx.Err() == nil {
			ui.Send(ui.ConnStateMsg{Connected: false, Addr: addr})
			ui.Send(ui.ErrorMsg{Err: err})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func consumeStream(ctx context.Context, client bookrpc.OrderbookAggregatorClient, addr string) error {
	stream, err := client.BookSummary(ctx, &bookrpc.Empty{})
	if err != nil {
		return err
	}

	ui.Send(ui.ConnStateMsg{Connected: true, Addr: addr})

	for {
		summary, err := stream.Recv()
		if err != nil {
			return err
		}
		ui.Send(ui.SummaryMsg{Summary: summary})
	}
}
