// Package handler exposes the dispatcher over gRPC as metering.v1.MeteringService.
package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"metering-collector/internal/metering/dispatcher"
	"metering-collector/internal/metering/domain"
	"metering-collector/internal/metering/repository"
)

// Recorder is the dispatcher API the server forwards to. *dispatcher.Dispatcher implements it.
type Recorder interface {
	RecordSamples(ctx context.Context, batch domain.Batch[domain.Sample]) (dispatcher.Report, error)
	RecordEvents(ctx context.Context, batch domain.Batch[domain.Event]) (repository.Result, error)
}

// Server implements MeteringServiceServer.
type Server struct {
	rec Recorder
}

// NewServer returns a new metering gRPC server. If rec is nil, every RPC returns Unimplemented.
func NewServer(rec Recorder) *Server {
	return &Server{rec: rec}
}

// RecordMeteringData decodes one sample or an array of samples and dispatches them. The reply
// counts stored, rejected and failed samples. Per-sample failures do not fail the RPC unless the
// collector surfaces storage failures, in which case the RPC returns Unavailable.
func (s *Server) RecordMeteringData(ctx context.Context, req *structpb.Value) (*structpb.Struct, error) {
	if s.rec == nil {
		return nil, status.Error(codes.Unimplemented, "method RecordMeteringData not implemented")
	}
	raw, err := payload(req)
	if err != nil {
		return nil, err
	}
	batch, err := domain.DecodeSamples(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode samples: %v", err)
	}
	report, err := s.rec.RecordSamples(ctx, batch)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "record samples: %v", err)
	}
	return summary(map[string]interface{}{
		"received": len(batch),
		"stored":   report.Count(dispatcher.StatusStored),
		"rejected": report.Count(dispatcher.StatusRejected),
		"failed":   report.Count(dispatcher.StatusFailed),
	})
}

// RecordEvents decodes one event or an array of events and relays the batch in a single
// connector call. A connector error fails the RPC with Unavailable.
func (s *Server) RecordEvents(ctx context.Context, req *structpb.Value) (*structpb.Struct, error) {
	if s.rec == nil {
		return nil, status.Error(codes.Unimplemented, "method RecordEvents not implemented")
	}
	raw, err := payload(req)
	if err != nil {
		return nil, err
	}
	batch, err := domain.DecodeEvents(raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode events: %v", err)
	}
	res, err := s.rec.RecordEvents(ctx, batch)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "record events: %v", err)
	}
	return summary(map[string]interface{}{
		"received": len(batch),
		"stored":   res.Stored,
	})
}

// payload re-encodes the request value as the JSON the domain decoders read.
func payload(req *structpb.Value) (json.RawMessage, error) {
	if req == nil || req.GetKind() == nil {
		return nil, status.Error(codes.InvalidArgument, "payload is required")
	}
	raw, err := req.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "payload: %v", err)
	}
	return raw, nil
}

func summary(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build reply: %v", err)
	}
	return out, nil
}

// PayloadValue converts a JSON-encodable payload (a sample, an event, or slices of them) into
// the request value sent by clients.
func PayloadValue(v interface{}) (*structpb.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Value)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out, nil
}
