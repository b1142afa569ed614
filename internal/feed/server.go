package feed

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "stockticker.QuoteFeed"
	streamName       = "StreamSnapshots"
	streamMethodPath = "/" + serviceName + "/" + streamName
)

// QuoteFeedServer is the server API of the QuoteFeed service.
type QuoteFeedServer interface {
	StreamSnapshots(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// serviceDesc describes QuoteFeed using well-known message types, so no
// generated code is needed.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*QuoteFeedServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamName,
			Handler:       streamSnapshotsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "stockticker/feed",
}

func streamSnapshotsHandler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(QuoteFeedServer).StreamSnapshots(m, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

var _ QuoteFeedServer = (*Server)(nil)

// Server implements the StreamSnapshots gRPC endpoint.
type Server struct {
	broker *Broker
	log    *slog.Logger
}

// NewServer creates a gRPC server backed by the given Broker.
func NewServer(broker *Broker, log *slog.Logger) *Server {
	return &Server{broker: broker, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// StreamSnapshots sends the latest snapshot, then streams each new one as
// it is published. The stream ends when the client disconnects.
func (s *Server) StreamSnapshots(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	// Subscribe before sending the latest so nothing published in between
	// is lost.
	subID, ch := s.broker.Subscribe(64)
	defer s.broker.Unsubscribe(subID)

	if snap, ok := s.broker.Latest(); ok {
		msg, err := snapshotToStruct(snap)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}

	s.log.Info("grpc client subscribed", "subID", subID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := snapshotToStruct(snap)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
