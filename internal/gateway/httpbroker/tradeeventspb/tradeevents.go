// Package tradeeventspb is the generated-style gRPC client for the trade
// events stream: one bidi-free server-streaming RPC that pushes order and
// account lifecycle events for a subscribed region/account credential.
//
// There is no .proto checked in upstream for this feed; the message shapes
// below mirror the wire fields the stream actually carries and are wired
// directly against google.golang.org/grpc's generic NewStream call, the
// same call protoc-gen-go-grpc emits for a real .proto streaming service.
package tradeeventspb

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// SubscribeRequest authenticates and scopes a trade-events stream to one
// region/credential pair.
type SubscribeRequest struct {
	RegionID    string
	AccessToken string
	DeviceID    string
}

// TradeEvent is one pushed message on the stream. EventType distinguishes
// the control messages (SubscribeSuccess, Ping, AuthError, ...) from order
// lifecycle payloads (EventType == "ORDER").
type TradeEvent struct {
	EventType      string
	SubscribeType  string // "ORDER_STATUS_CHANGED" for order payloads
	AccountID      string
	OrderID        string
	ClientOrderID  string
	Symbol         string
	OrderStatus    string
	SceneType      string
	FilledQty      float64
	Qty            float64
	Message        string // populated on AuthError/NumOfConnExceed
}

// TradeEventsClient is the client half of the trade-events streaming
// service.
type TradeEventsClient interface {
	Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (TradeEvents_SubscribeClient, error)
}

// TradeEvents_SubscribeClient is the server-streaming handle returned by
// Subscribe, following the naming convention protoc-gen-go-grpc uses for a
// streaming method's client-side iterator.
type TradeEvents_SubscribeClient interface {
	Recv() (*TradeEvent, error)
	grpc.ClientStream
}

const serviceName = "janus.tradeevents.TradeEvents"

type tradeEventsClient struct {
	cc grpc.ClientConnInterface
}

// NewTradeEventsClient adapts a dialed *grpc.ClientConn into a
// TradeEventsClient.
func NewTradeEventsClient(cc grpc.ClientConnInterface) TradeEventsClient {
	return &tradeEventsClient{cc: cc}
}

func (c *tradeEventsClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (TradeEvents_SubscribeClient, error) {
	opts = append(opts, grpc.CallContentSubtype(jsonCodecName))
	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "Subscribe",
		ServerStreams: true,
	}, "/"+serviceName+"/Subscribe", opts...)
	if err != nil {
		return nil, err
	}
	cs := &tradeEventsSubscribeClient{ClientStream: stream}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

type tradeEventsSubscribeClient struct {
	grpc.ClientStream
}

func (x *tradeEventsSubscribeClient) Recv() (*TradeEvent, error) {
	m := new(TradeEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// IsStreamClosed reports whether err is the clean end-of-stream signal
// rather than a transport error that should trigger a reconnect.
func IsStreamClosed(err error) bool {
	return err == io.EOF
}

func init() {
	// Registered so the generic NewStream call above can marshal
	// TradeEvent/SubscribeRequest without a protobuf-generated codec; the
	// stream already carries self-describing JSON frames from the gateway
	// side, consistent with the teacher's socket-protocol JSON framing.
	encoding.RegisterCodec(jsonCodec{})
}
