package chat

import "github.com/mcoutinho/chatcore/internal/transport"

// Registry is the identity and dedup layer: the single source of truth
// mapping message id to message record. A confirmed message is reachable
// under both its local id and its server id, but both keys resolve to the
// same record so every mutation is visible through one update path.
//
// Registry is not safe for concurrent use; the store serializes access.
type Registry struct {
	records map[string]*transport.Message
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*transport.Message)}
}

// Put admits a record under msg.ID unless that id already exists. It is the
// single admission gate for every inbound and outbound message: retries,
// multi-device echoes and duplicate push deliveries all collapse here.
// Returns true when the insertion was new.
func (r *Registry) Put(msg *transport.Message) bool {
	if _, ok := r.records[msg.ID]; ok {
		return false
	}
	r.records[msg.ID] = msg
	return true
}

// Get returns the record stored under id, or nil.
func (r *Registry) Get(id string) *transport.Message {
	return r.records[id]
}

// Remove deletes the record stored under id. Callers are responsible for
// also removing any server-id alias.
func (r *Registry) Remove(id string) {
	delete(r.records, id)
}

// UpdateStatus replaces a record's delivery status in place. A record
// already in read state is never regressed, so a stale delivered receipt
// arriving after a read receipt cannot corrupt the status. Returns whether
// the status changed.
func (r *Registry) UpdateStatus(id string, status transport.Status) bool {
	msg, ok := r.records[id]
	if !ok {
		return false
	}
	if msg.Status == transport.StatusRead {
		return false
	}
	if msg.Status == status {
		return false
	}
	msg.Status = status
	return true
}

// Rekey installs the confirmed record under both the original local id and
// its server id. Existing references resolving through localID keep
// working, and later server-driven events (recall, receipts, edits) that
// only know the server id resolve to the same record.
func (r *Registry) Rekey(localID string, confirmed *transport.Message) {
	r.records[localID] = confirmed
	if confirmed.ServerID != "" && confirmed.ServerID != localID {
		r.records[confirmed.ServerID] = confirmed
	}
}

// Len returns the number of stored keys (aliases included).
func (r *Registry) Len() int {
	return len(r.records)
}

// Clear drops every record.
func (r *Registry) Clear() {
	r.records = make(map[string]*transport.Message)
}
