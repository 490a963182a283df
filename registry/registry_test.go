package registry

import (
	"testing"

	"github.com/golang-io/mqttsn/pkt"
)

func TestUpsertLookup(t *testing.T) {
	r := New()
	r.Upsert("sensors/temp", 7, pkt.TopicIDNormal)

	id, ok := r.LookupID("sensors/temp")
	if !ok || id != 7 {
		t.Fatalf("LookupID = %d, %v; want 7, true", id, ok)
	}
	name, ok := r.LookupName(7)
	if !ok || name != "sensors/temp" {
		t.Fatalf("LookupName = %q, %v; want sensors/temp, true", name, ok)
	}
}

func TestUpsertReplacesPriorMapping(t *testing.T) {
	r := New()
	r.Upsert("a", 1, pkt.TopicIDNormal)
	r.Upsert("b", 1, pkt.TopicIDNormal) // id 1 reassigned to a new name

	if _, ok := r.LookupID("a"); ok {
		t.Fatalf("expected stale name->id mapping for 'a' to be evicted")
	}
	name, ok := r.LookupName(1)
	if !ok || name != "b" {
		t.Fatalf("LookupName(1) = %q, %v; want b, true", name, ok)
	}
}

func TestUpsertReassignsNameToNewID(t *testing.T) {
	r := New()
	r.Upsert("a", 1, pkt.TopicIDNormal)
	r.Upsert("a", 2, pkt.TopicIDNormal)

	if _, ok := r.LookupName(1); ok {
		t.Fatalf("expected stale id->name mapping for 1 to be evicted")
	}
	id, ok := r.LookupID("a")
	if !ok || id != 2 {
		t.Fatalf("LookupID(a) = %d, %v; want 2, true", id, ok)
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.Upsert("a", 1, pkt.TopicIDNormal)
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", r.Len())
	}
	if _, ok := r.LookupID("a"); ok {
		t.Fatalf("expected no mapping after Clear")
	}
}

func TestKind(t *testing.T) {
	r := New()
	id := pkt.ShortTopicID("ab")
	r.Upsert("ab", id, pkt.TopicIDShort)
	kind, ok := r.Kind(id)
	if !ok || kind != pkt.TopicIDShort {
		t.Fatalf("Kind = %v, %v; want TopicIDShort, true", kind, ok)
	}
}
