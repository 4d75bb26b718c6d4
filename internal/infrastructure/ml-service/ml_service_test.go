package ml_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeConn отвечает заранее заданными результатами по порядку вызовов.
type fakeConn struct {
	replies []func(out *structpb.Struct) error
	calls   int
	lastReq *structpb.Struct
	method  string
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.method = method
	f.lastReq = args.(*structpb.Struct)
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	f.calls++
	return f.replies[idx](reply.(*structpb.Struct))
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams are not supported")
}

func vectorReply(values ...any) func(out *structpb.Struct) error {
	return func(out *structpb.Struct) error {
		s, err := structpb.NewStruct(map[string]any{"vector": values})
		if err != nil {
			return err
		}
		out.Fields = s.Fields
		return nil
	}
}

func failWith(code codes.Code) func(out *structpb.Struct) error {
	return func(*structpb.Struct) error { return status.Error(code, "boom") }
}

func newTestService(conn *fakeConn, retries int) *MLService {
	s := NewMLService(conn, "mini-lm", retries, time.Second, logger.NewNopLogger())
	s.baseBackoff = time.Millisecond
	s.maxBackoff = 2 * time.Millisecond
	return s
}

func TestEmbedSendsTextAndModel(t *testing.T) {
	conn := &fakeConn{replies: []func(*structpb.Struct) error{vectorReply(0.5, -0.5, 1.0)}}

	vec, err := newTestService(conn, 3).Embed(context.Background(), "red mug")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if conn.method != embedTextMethod {
		t.Errorf("method = %s", conn.method)
	}
	if conn.lastReq.GetFields()["text"].GetStringValue() != "red mug" || conn.lastReq.GetFields()["model"].GetStringValue() != "mini-lm" {
		t.Errorf("unexpected request: %v", conn.lastReq)
	}
	want := []float32{0.5, -0.5, 1.0}
	for i := range want {
		if vec[i] != want[i] {
			t.Fatalf("vec = %v, want %v", vec, want)
		}
	}
}

func TestEmbedRetriesUnavailable(t *testing.T) {
	conn := &fakeConn{replies: []func(*structpb.Struct) error{
		failWith(codes.Unavailable),
		failWith(codes.Unavailable),
		vectorReply(1.0),
	}}

	if _, err := newTestService(conn, 3).Embed(context.Background(), "mug"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if conn.calls != 3 {
		t.Errorf("calls = %d, want 3", conn.calls)
	}
}

func TestEmbedDoesNotRetryInvalidArgument(t *testing.T) {
	conn := &fakeConn{replies: []func(*structpb.Struct) error{failWith(codes.InvalidArgument)}}

	_, err := newTestService(conn, 5).Embed(context.Background(), "mug")
	if !errors.Is(err, e.ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
	if conn.calls != 1 {
		t.Errorf("calls = %d, want 1", conn.calls)
	}
}

func TestEmbedRejectsMalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		reply func(*structpb.Struct) error
	}{
		{"no vector", func(*structpb.Struct) error { return nil }},
		{"empty vector", vectorReply()},
		{"non numeric", vectorReply(1.0, "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{replies: []func(*structpb.Struct) error{tt.reply}}
			if _, err := newTestService(conn, 1).Embed(context.Background(), "mug"); !errors.Is(err, e.ErrEmbedding) {
				t.Errorf("expected ErrEmbedding, got %v", err)
			}
		})
	}
}
