package chat

import (
	"testing"

	"github.com/mcoutinho/chatcore/internal/transport"
)

func TestPutIsIdempotent(t *testing.T) {
	r := NewRegistry()
	m := &transport.Message{ID: "m1", Body: "hello"}

	if !r.Put(m) {
		t.Error("first Put should report new")
	}
	dup := &transport.Message{ID: "m1", Body: "duplicate"}
	if r.Put(dup) {
		t.Error("second Put of same id should report not new")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
	if got := r.Get("m1").Body; got != "hello" {
		t.Errorf("body = %q, duplicate must not overwrite", got)
	}
}

func TestUpdateStatusNeverRegressesRead(t *testing.T) {
	r := NewRegistry()
	r.Put(&transport.Message{ID: "m1", Status: transport.StatusSent})

	if !r.UpdateStatus("m1", transport.StatusRead) {
		t.Fatal("sent -> read should apply")
	}
	// A stale delivered receipt after read must be a no-op.
	if r.UpdateStatus("m1", transport.StatusDelivered) {
		t.Error("read -> delivered should be refused")
	}
	if got := r.Get("m1").Status; got != transport.StatusRead {
		t.Errorf("status = %q, want read", got)
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	r := NewRegistry()
	if r.UpdateStatus("ghost", transport.StatusRead) {
		t.Error("unknown id should report no change")
	}
}

func TestRekeyResolvesBothIdentities(t *testing.T) {
	r := NewRegistry()
	local := &transport.Message{ID: "local-1", Status: transport.StatusSending}
	r.Put(local)

	confirmed := &transport.Message{ID: "local-1", ServerID: "srv-9", Status: transport.StatusSent}
	r.Rekey("local-1", confirmed)

	byLocal := r.Get("local-1")
	byServer := r.Get("srv-9")
	if byLocal == nil || byServer == nil {
		t.Fatal("record must resolve under both ids")
	}
	if byLocal != byServer {
		t.Error("both keys must resolve to the same record")
	}

	// A mutation through the server id is visible through the local id.
	r.UpdateStatus("srv-9", transport.StatusRead)
	if byLocal.Status != transport.StatusRead {
		t.Error("mutation through server id not visible through local id")
	}
}

func TestRemoveLeavesAliasToCaller(t *testing.T) {
	r := NewRegistry()
	confirmed := &transport.Message{ID: "local-1", ServerID: "srv-9"}
	r.Rekey("local-1", confirmed)

	r.Remove("local-1")
	if r.Get("local-1") != nil {
		t.Error("removed id still resolves")
	}
	// The alias is a separate key; pipelines remove it explicitly.
	if r.Get("srv-9") == nil {
		t.Error("alias should survive until removed explicitly")
	}
	r.Remove("srv-9")
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0", r.Len())
	}
}
