package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"stockticker/internal/domain"
)

// Client connects to a QuoteFeed server and hands each received snapshot to
// a callback.
type Client struct {
	addr string
	opts []grpc.DialOption
	log  *slog.Logger
}

// NewClient creates a client targeting the given gRPC address. Without
// options the connection is insecure.
func NewClient(addr string, log *slog.Logger, opts ...grpc.DialOption) *Client {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Client{addr: addr, opts: opts, log: log}
}

// Tail streams snapshots into fn. It blocks until ctx is cancelled, the
// stream ends, or fn returns an error.
func (c *Client) Tail(ctx context.Context, fn func(domain.Snapshot) error) error {
	conn, err := grpc.NewClient(c.addr, c.opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	cs, err := conn.NewStream(ctx, &serviceDesc.Streams[0], streamMethodPath)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	c.log.Info("connected to quote feed", "addr", c.addr)

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receiving snapshot: %w", err)
		}

		snap, err := structToSnapshot(msg)
		if err != nil {
			c.log.Warn("skipping undecodable snapshot", "error", err)
			continue
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}
