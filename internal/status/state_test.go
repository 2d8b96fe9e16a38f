package status

import (
	"testing"

	"github.com/mcoutinho/chatcore/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Offline {
		t.Errorf("initial state = %s, want OFFLINE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Offline, Connecting},
		{Connecting, Connected},
		{Connecting, Disconnected},
		{Connected, Reconnecting},
		{Connected, Disconnected},
		{Reconnecting, Connected},
		{Disconnected, Connecting},
		{Connected, Offline},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(OFFLINE -> CONNECTED) should fail")
	}
}

func TestSelfTransitionIsNoOp(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Offline); err != nil {
		t.Errorf("self transition error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("self transition published event: %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "session.status_changed" {
		t.Errorf("event kind = %q, want session.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Offline || change.To != Connecting {
		t.Errorf("change = %v -> %v, want OFFLINE -> CONNECTING", change.From, change.To)
	}
}

// TestDisconnectReconnectCycle verifies the reconnect loop:
// CONNECTED → RECONNECTING → CONNECTED
func TestDisconnectReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	steps := []State{Reconnecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Connected {
		t.Errorf("final state = %s, want CONNECTED", m.Current())
	}
}

// TestLogoutReturnsToOffline verifies closing the session from any live state.
func TestLogoutReturnsToOffline(t *testing.T) {
	for _, from := range []State{Connecting, Connected, Reconnecting, Disconnected} {
		m := NewMachine(nil)
		walkTo(t, m, from)
		if err := m.Transition(Offline); err != nil {
			t.Errorf("%s -> OFFLINE: %v", from, err)
		}
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Offline:      {},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		Reconnecting: {Connecting, Connected, Reconnecting},
		Disconnected: {Connecting, Connected, Disconnected},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
