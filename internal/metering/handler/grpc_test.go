package handler

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"metering-collector/internal/metering/dispatcher"
	"metering-collector/internal/metering/domain"
	"metering-collector/internal/metering/repository"
	"metering-collector/internal/metering/signature"
)

const testSecret = "handler-secret"

// mockRecorder implements Recorder for tests.
type mockRecorder struct {
	samples   domain.Batch[domain.Sample]
	events    domain.Batch[domain.Event]
	report    dispatcher.Report
	samplesFn func() error
	eventsErr error
}

func (m *mockRecorder) RecordSamples(_ context.Context, b domain.Batch[domain.Sample]) (dispatcher.Report, error) {
	m.samples = b
	if m.samplesFn != nil {
		return m.report, m.samplesFn()
	}
	return m.report, nil
}

func (m *mockRecorder) RecordEvents(_ context.Context, b domain.Batch[domain.Event]) (repository.Result, error) {
	m.events = b
	if m.eventsErr != nil {
		return repository.Result{}, m.eventsErr
	}
	return repository.Result{Stored: len(b)}, nil
}

func mustValue(t *testing.T, v interface{}) *structpb.Value {
	t.Helper()
	out, err := PayloadValue(v)
	if err != nil {
		t.Fatalf("PayloadValue: %v", err)
	}
	return out
}

func number(t *testing.T, s *structpb.Struct, key string) int {
	t.Helper()
	v, ok := s.GetFields()[key]
	if !ok {
		t.Fatalf("reply missing %q: %v", key, s)
	}
	return int(v.GetNumberValue())
}

func TestNilRecorder_Unimplemented(t *testing.T) {
	srv := NewServer(nil)
	v := mustValue(t, map[string]interface{}{"a": 1})
	if _, err := srv.RecordMeteringData(context.Background(), v); status.Code(err) != codes.Unimplemented {
		t.Errorf("RecordMeteringData code = %v, want Unimplemented", status.Code(err))
	}
	if _, err := srv.RecordEvents(context.Background(), v); status.Code(err) != codes.Unimplemented {
		t.Errorf("RecordEvents code = %v, want Unimplemented", status.Code(err))
	}
}

func TestRecordMeteringData_Summary(t *testing.T) {
	rec := &mockRecorder{report: dispatcher.Report{Outcomes: []dispatcher.Outcome{
		{Index: 0, Status: dispatcher.StatusStored},
		{Index: 1, Status: dispatcher.StatusRejected},
	}}}
	srv := NewServer(rec)

	v := mustValue(t, []domain.Sample{
		{CounterName: "cpu", ResourceID: "r1", CounterVolume: 1},
		{CounterName: "cpu", ResourceID: "r2", CounterVolume: 2},
	})
	reply, err := srv.RecordMeteringData(context.Background(), v)
	if err != nil {
		t.Fatalf("RecordMeteringData: %v", err)
	}
	if len(rec.samples) != 2 || rec.samples[1].ResourceID != "r2" {
		t.Errorf("dispatched = %+v", rec.samples)
	}
	if number(t, reply, "received") != 2 || number(t, reply, "stored") != 1 || number(t, reply, "rejected") != 1 || number(t, reply, "failed") != 0 {
		t.Errorf("reply = %v", reply)
	}
}

func TestRecordMeteringData_BareItem(t *testing.T) {
	rec := &mockRecorder{}
	srv := NewServer(rec)
	if _, err := srv.RecordMeteringData(context.Background(), mustValue(t, domain.Sample{CounterName: "cpu", ResourceID: "r1"})); err != nil {
		t.Fatalf("RecordMeteringData: %v", err)
	}
	if len(rec.samples) != 1 {
		t.Errorf("dispatched %d samples, want 1", len(rec.samples))
	}
}

func TestRecordMeteringData_InvalidPayload(t *testing.T) {
	srv := NewServer(&mockRecorder{})
	testCases := []struct {
		name string
		req  *structpb.Value
	}{
		{"nil", nil},
		{"empty value", &structpb.Value{}},
		{"string", structpb.NewStringValue("cpu")},
		{"bad timestamp type", mustValue(t, map[string]interface{}{"counter_name": "cpu", "timestamp": 5})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.RecordMeteringData(context.Background(), tc.req)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("code = %v, want InvalidArgument (err %v)", status.Code(err), err)
			}
		})
	}
}

func TestRecordMeteringData_SurfacedStorageFailure(t *testing.T) {
	rec := &mockRecorder{samplesFn: func() error { return errors.New("storage down") }}
	srv := NewServer(rec)
	_, err := srv.RecordMeteringData(context.Background(), mustValue(t, domain.Sample{CounterName: "cpu", ResourceID: "r1"}))
	if status.Code(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", status.Code(err))
	}
}

func TestRecordEvents(t *testing.T) {
	rec := &mockRecorder{}
	srv := NewServer(rec)
	reply, err := srv.RecordEvents(context.Background(), mustValue(t, []map[string]interface{}{
		{"event_type": "compute.instance.create.end"},
		{"event_type": "compute.instance.delete.end"},
	}))
	if err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if len(rec.events) != 2 {
		t.Errorf("relayed %d events, want 2", len(rec.events))
	}
	if number(t, reply, "stored") != 2 {
		t.Errorf("reply = %v", reply)
	}
}

func TestRecordEvents_ErrorSurfaced(t *testing.T) {
	srv := NewServer(&mockRecorder{eventsErr: errors.New("store unavailable")})
	_, err := srv.RecordEvents(context.Background(), mustValue(t, map[string]interface{}{"event_type": "x"}))
	if status.Code(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", status.Code(err))
	}
}

// TestMeteringService_EndToEnd runs signed samples through a real gRPC server, dispatcher and
// memory connector.
func TestMeteringService_EndToEnd(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	conn := repository.NewMemoryConnector()
	s := grpc.NewServer()
	RegisterMeteringServiceServer(s, NewServer(dispatcher.New(conn, testSecret)))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer cc.Close()
	client := NewMeteringServiceClient(cc)

	good, err := signature.Sign(domain.Sample{
		CounterName:      "cpu",
		CounterVolume:    42.5,
		ResourceID:       "instance-1",
		Timestamp:        domain.RawTimestamp("2012-07-02T13:53:40"),
		ResourceMetadata: map[string]interface{}{"flavor": map[string]interface{}{"vcpus": 2}},
	}, testSecret)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	forged := good
	forged.CounterVolume = 1000

	reply, err := client.RecordMeteringData(context.Background(), mustValue(t, []domain.Sample{good, forged}))
	if err != nil {
		t.Fatalf("RecordMeteringData: %v", err)
	}
	if number(t, reply, "stored") != 1 || number(t, reply, "rejected") != 1 {
		t.Errorf("reply = %v", reply)
	}
	stored := conn.Samples()
	if len(stored) != 1 || stored[0].CounterVolume != 42.5 || !stored[0].Timestamp.Normalized() {
		t.Errorf("stored = %+v", stored)
	}

	if _, err := client.RecordEvents(context.Background(), mustValue(t, map[string]interface{}{"event_type": "x"})); err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if len(conn.Events()) != 1 {
		t.Errorf("events = %d, want 1", len(conn.Events()))
	}
}
