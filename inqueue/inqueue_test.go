package inqueue

import "testing"

func TestPushPop(t *testing.T) {
	q := New(2)
	if !q.Push("a") {
		t.Fatalf("Push(a) rejected")
	}
	if !q.Push("b") {
		t.Fatalf("Push(b) rejected")
	}
	if q.Push("c") {
		t.Fatalf("Push(c) accepted past capacity")
	}
	item, ok := q.Pop()
	if !ok || item != "a" {
		t.Fatalf("Pop() = %v, %v; want a, true", item, ok)
	}
}

func TestPopMatchingRequeuesNonMatches(t *testing.T) {
	q := New(DefaultCapacity)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	got, ok := q.PopMatching(func(v any) bool { return v.(int) == 2 })
	if !ok || got.(int) != 2 {
		t.Fatalf("PopMatching = %v, %v; want 2, true", got, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	first, _ := q.Pop()
	second, _ := q.Pop()
	if first.(int) != 1 || second.(int) != 3 {
		t.Fatalf("remaining order = %v, %v; want 1, 3", first, second)
	}
}

func TestPopMatchingNoMatch(t *testing.T) {
	q := New(DefaultCapacity)
	q.Push(1)
	_, ok := q.PopMatching(func(v any) bool { return v.(int) == 99 })
	if ok {
		t.Fatalf("expected no match")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (frame must remain queued)", q.Len())
	}
}
