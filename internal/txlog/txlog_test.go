package txlog

import (
	"context"
	"fmt"
	"testing"
)

func TestRingKeepsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		_ = r.Record(ctx, Entry{ID: fmt.Sprintf("tx-%d", i)})
	}

	got, _ := r.Recent(ctx, 0)
	if len(got) != 3 {
		t.Fatalf("expected capacity-bounded result, got %d", len(got))
	}
	want := []string{"tx-5", "tx-4", "tx-3"}
	for i, e := range got {
		if e.ID != want[i] {
			t.Fatalf("position %d: got %s want %s", i, e.ID, want[i])
		}
	}

	two, _ := r.Recent(ctx, 2)
	if len(two) != 2 || two[0].ID != "tx-5" {
		t.Fatalf("unexpected limited result: %+v", two)
	}
}

func TestRingPartiallyFilled(t *testing.T) {
	ctx := context.Background()
	r := NewRing(10)
	_ = r.Record(ctx, Entry{ID: "a"})
	_ = r.Record(ctx, Entry{ID: "b"})

	got, _ := r.Recent(ctx, 5)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if NewRing(0).Capacity() != 10 {
		t.Fatalf("expected default capacity")
	}
}
