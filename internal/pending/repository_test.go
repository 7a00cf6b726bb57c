package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/schema"
)

func newRepo(t *testing.T) (*Repository, *kvstore.Memory) {
	t.Helper()
	store := kvstore.NewMemory()
	repo, err := NewRepository(store, Keys{})
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo, store
}

func TestRepositoryEmpty(t *testing.T) {
	repo, _ := newRepo(t)
	_, ok, err := repo.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected no marker")
	}
	if err := repo.Clear(context.Background()); err != nil {
		t.Fatalf("clear empty: %v", err)
	}
}

func TestRepositoryArmGetClear(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 123456789, time.UTC)

	armed, err := repo.Arm(ctx, "B1", now)
	if err != nil {
		t.Fatalf("arm: %v", err)
	}
	if armed.CreatedAtEpochMillis() != now.UnixMilli() {
		t.Fatalf("unexpected armed millis %d", armed.CreatedAtEpochMillis())
	}
	raw, ok, _ := store.Get(ctx, DefaultCreatedAtKey)
	if !ok || raw != "1748779200123" {
		t.Fatalf("expected stringified epoch millis, got %q", raw)
	}
	raw, ok, _ = store.Get(ctx, DefaultBookingIDKey)
	if !ok || raw != "B1" {
		t.Fatalf("expected booking id, got %q", raw)
	}

	got, ok, err := repo.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.BookingID != "B1" || !got.CreatedAt.Equal(armed.CreatedAt) {
		t.Fatalf("unexpected marker %+v", got)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := repo.Get(ctx); ok {
		t.Fatalf("expected marker cleared")
	}
}

func TestRepositoryMalformed(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{name: "id-only", values: map[string]string{DefaultBookingIDKey: "B1"}},
		{name: "timestamp-only", values: map[string]string{DefaultCreatedAtKey: "1700000000000"}},
		{name: "not-a-number", values: map[string]string{DefaultBookingIDKey: "B1", DefaultCreatedAtKey: "yesterday"}},
		{name: "float", values: map[string]string{DefaultBookingIDKey: "B1", DefaultCreatedAtKey: "1.7e12"}},
		{name: "zero", values: map[string]string{DefaultBookingIDKey: "B1", DefaultCreatedAtKey: "0"}},
		{name: "control-id", values: map[string]string{DefaultBookingIDKey: "B\x01", DefaultCreatedAtKey: "1700000000000"}},
		{name: "empty-id", values: map[string]string{DefaultBookingIDKey: "", DefaultCreatedAtKey: "1700000000000"}},
	}
	for _, tc := range tests {
		repo, store := newRepo(t)
		for key, value := range tc.values {
			_ = store.Set(context.Background(), key, value)
		}
		_, ok, err := repo.Get(context.Background())
		if ok {
			t.Fatalf("%s: expected no marker", tc.name)
		}
		if !errors.Is(err, schema.ErrInvalidMarker) {
			t.Fatalf("%s: expected ErrInvalidMarker, got %v", tc.name, err)
		}
	}
}

func TestRepositoryOpaqueIDs(t *testing.T) {
	for _, id := range []schema.BookingID{"bk+42==", "réserva-1", "B 1", "42/../1"} {
		repo, store := newRepo(t)
		_ = store.Set(context.Background(), DefaultBookingIDKey, string(id))
		_ = store.Set(context.Background(), DefaultCreatedAtKey, "1700000000000")
		marker, ok, err := repo.Get(context.Background())
		if err != nil || !ok {
			t.Fatalf("%q: expected marker, ok=%v err=%v", id, ok, err)
		}
		if marker.BookingID != id {
			t.Fatalf("%q: got id %q", id, marker.BookingID)
		}
	}
}

func TestRepositorySetValidates(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	if err := repo.Set(ctx, schema.PendingBooking{BookingID: "", CreatedAt: time.Now()}); !errors.Is(err, schema.ErrInvalidBooking) {
		t.Fatalf("expected ErrInvalidBooking, got %v", err)
	}
	if err := repo.Set(ctx, schema.PendingBooking{BookingID: "B1"}); !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRepositoryKeys(t *testing.T) {
	store := kvstore.NewMemory()
	repo, err := NewRepository(store, Keys{BookingID: "bid"})
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if repo.Keys().BookingID != "bid" || repo.Keys().CreatedAt != DefaultCreatedAtKey {
		t.Fatalf("unexpected keys %+v", repo.Keys())
	}
	if _, err := NewRepository(store, Keys{BookingID: "same", CreatedAt: "same"}); err == nil {
		t.Fatalf("expected error for identical keys")
	}
	if _, err := NewRepository(nil, Keys{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

type failingStore struct {
	kvstore.Store
	err error
}

func (f failingStore) Delete(context.Context, string) error { return f.err }

func TestRepositoryClearReportsErrors(t *testing.T) {
	boom := errors.New("disk gone")
	repo, err := NewRepository(failingStore{Store: kvstore.NewMemory(), err: boom}, Keys{})
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.Clear(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected clear error, got %v", err)
	}
}
