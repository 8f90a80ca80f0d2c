package engine

import "testing"

func TestCommandQueueFIFO(t *testing.T) {
	q := NewCommandQueue()
	for i := 0; i < 3; i++ {
		if !q.Push(Command{Stop: &Stop{}}) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 0; i < 3; i++ {
		if _, ok := q.TryPop(); !ok {
			t.Fatalf("pop %d failed", i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestErrorQueueDropsNewestWhenFull(t *testing.T) {
	q := &ErrorQueue{r: newRing[AudioError](2)} // nextPow2 rounds to 2
	first := AudioError{Kind: ParamUpdateFailed, ModuleID: "a"}
	second := AudioError{Kind: ParamUpdateFailed, ModuleID: "b"}
	overflow := AudioError{Kind: ParamUpdateFailed, ModuleID: "c"}
	if !q.Push(first) || !q.Push(second) {
		t.Fatalf("expected capacity for two pushes")
	}
	if q.Push(overflow) {
		t.Fatalf("expected overflow push to report full (drop newest)")
	}
	got, ok := q.TryPop()
	if !ok || got.ModuleID != "a" {
		t.Fatalf("expected first error preserved, got %+v ok=%v", got, ok)
	}
}

func TestGarbageQueueFullDefersToSideList(t *testing.T) {
	d := &Driver{garbage: &GarbageQueue{r: newRing[GarbageItem](1)}}
	d.toGarbage(GarbageItem{ID: "a"})
	d.toGarbage(GarbageItem{ID: "b"}) // queue full now, goes to side list
	if len(d.garbageSideList) != 1 {
		t.Fatalf("expected 1 item deferred to side list, got %d", len(d.garbageSideList))
	}
	d.retryGarbageSideList()
	if len(d.garbageSideList) != 1 {
		t.Fatalf("expected side list to remain full until queue drains, got %d", len(d.garbageSideList))
	}
	if _, ok := d.garbage.TryPop(); !ok {
		t.Fatalf("expected one queued item")
	}
	d.retryGarbageSideList()
	if len(d.garbageSideList) != 0 {
		t.Fatalf("expected side list to drain once space freed, got %d", len(d.garbageSideList))
	}
}
