// Package registry implements the bidirectional topic-name/topic-id
// mapping a connected client keeps for itself (§4.B Topic Registry).
package registry

import (
	"sync"

	"github.com/golang-io/mqttsn/pkt"
)

// entry pairs a name with the kind of topic-id it was assigned, mirroring
// the teacher's mem_topic.go convention of one small value struct per map
// entry rather than parallel maps.
type entry struct {
	name string
	kind pkt.TopicIDType
}

// Registry is a connection-scoped name<->id map. The zero value is not
// usable; construct with New.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]uint16
	byID   map[uint16]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]uint16),
		byID:   make(map[uint16]entry),
	}
}

// Upsert records that name resolves to id with the given kind, evicting
// any prior mapping that used either name or id so the two maps stay
// consistent (no two distinct names may share the same (kind, id)).
func (r *Registry) Upsert(name string, id uint16, kind pkt.TopicIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if oldID, ok := r.byName[name]; ok && oldID != id {
		delete(r.byID, oldID)
	}
	if old, ok := r.byID[id]; ok && old.name != name {
		delete(r.byName, old.name)
	}
	r.byName[name] = id
	r.byID[id] = entry{name: name, kind: kind}
}

// LookupID returns the id registered for name.
func (r *Registry) LookupID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// LookupName returns the name registered for id.
func (r *Registry) LookupName(id uint16) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.name, ok
}

// Kind returns the topic-id kind under which id was registered.
func (r *Registry) Kind(id uint16) (pkt.TopicIDType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e.kind, ok
}

// Clear discards every mapping. Called on a clean-session reconnect
// (§4.B: entries persist for the connection; clean session resets them).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]uint16)
	r.byID = make(map[uint16]entry)
}

// Len reports the number of registered names, for diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
