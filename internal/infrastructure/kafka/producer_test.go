package kafka

import (
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func decode(t *testing.T, value []byte) *structpb.Struct {
	t.Helper()
	s := &structpb.Struct{}
	if err := proto.Unmarshal(value, s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return s
}

func TestToMessageUpsert(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := ToMessage(domain.ProductEvent{
		ID:         "ev-1",
		Type:       domain.EventUpsert,
		ProductID:  "6f1c3b1e-8a47-4d4e-9b4a-2f0f6b1d7c3a",
		Affected:   1,
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	if string(msg.Key) != "6f1c3b1e-8a47-4d4e-9b4a-2f0f6b1d7c3a" {
		t.Errorf("key = %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "upsert" {
		t.Errorf("headers = %v", msg.Headers)
	}

	fields := decode(t, msg.Value).GetFields()
	if fields["event_id"].GetStringValue() != "ev-1" || fields["event_type"].GetStringValue() != "upsert" {
		t.Errorf("unexpected payload: %v", fields)
	}
	if fields["affected"].GetNumberValue() != 1 {
		t.Errorf("affected = %v", fields["affected"])
	}
	if fields["event_timestamp"].GetStringValue() != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %s", fields["event_timestamp"].GetStringValue())
	}
}

func TestToMessageDeleteAllUsesCatalogKey(t *testing.T) {
	msg, err := ToMessage(domain.ProductEvent{ID: "ev-2", Type: domain.EventDeleteAll, Affected: 42, OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}

	if string(msg.Key) != deleteAllKey {
		t.Errorf("key = %s, want %s", msg.Key, deleteAllKey)
	}
	if decode(t, msg.Value).GetFields()["affected"].GetNumberValue() != 42 {
		t.Error("affected count lost")
	}
}
