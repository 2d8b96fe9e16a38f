package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcoutinho/chatcore/internal/chat"
	"github.com/mcoutinho/chatcore/internal/status"
	"github.com/mcoutinho/chatcore/internal/transport"
	"github.com/mcoutinho/chatcore/internal/users"
	"go.uber.org/zap"
)

// Engine is the single consumer of the transport's push stream. It applies
// each event to the chat store, the user cache and the connection state
// machine, in arrival order, then exits when the stream closes. One event,
// one dispatch; the store's own locking provides the atomicity.
type Engine struct {
	conn    transport.Conn
	store   *chat.Store
	users   *users.Cache
	machine *status.Machine
	log     *zap.Logger

	wg sync.WaitGroup
}

// New creates an engine. users may be nil.
func New(conn transport.Conn, store *chat.Store, uc *users.Cache, machine *status.Machine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		conn:    conn,
		store:   store,
		users:   uc,
		machine: machine,
		log:     logger,
	}
}

// Start launches the event pump. It returns immediately; Wait blocks until
// the transport closes its stream.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()
}

// Wait blocks until the event pump exits.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run() {
	for ev := range e.conn.Events() {
		e.dispatch(ev)
	}
	e.log.Info("event stream closed")
}

func (e *Engine) dispatch(ev transport.Event) {
	switch ev := ev.(type) {
	case transport.MessageEvent:
		e.store.OnMessage(ev.Message)
	case transport.RecallEvent:
		e.store.OnRecall(ev)
	case transport.ReceiptEvent:
		e.store.OnReceipt(ev)
	case transport.ChannelAckEvent:
		e.store.OnChannelAck(ev)
	case transport.ModifiedEvent:
		e.store.OnModified(ev)
	case transport.MultiDeviceEvent:
		e.store.ApplyMultiDeviceOp(ev)
	case transport.GroupEvent:
		e.onGroupEvent(ev)
	case transport.ContactEvent:
		e.onContactEvent(ev)
	case transport.PresenceEvent:
		if e.users != nil {
			e.users.ApplyPresence(ev.Entries)
		}
	case transport.ConnStateEvent:
		e.onConnState(ev)
	default:
		e.log.Debug("unhandled event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

// onGroupEvent surfaces a group membership change as a notice in the
// group's timeline.
func (e *Engine) onGroupEvent(ev transport.GroupEvent) {
	e.store.InsertNotice(
		transport.ConversationRef{ID: ev.GroupID, Type: transport.GroupChat},
		&transport.NoticeInfo{
			Type:      transport.NoticeGroup,
			From:      ev.From,
			Operation: ev.Operation,
		},
	)
}

// onContactEvent schedules a profile fetch for the counterpart so contact
// notifications render with a name.
func (e *Engine) onContactEvent(ev transport.ContactEvent) {
	e.log.Info("contact event",
		zap.String("op", string(ev.Op)),
		zap.String("from", ev.From))
	if e.users != nil && (ev.Op == transport.ContactAgreed || ev.Op == transport.ContactAdded) {
		e.users.Ensure(context.Background(), []string{ev.From})
	}
}

func (e *Engine) onConnState(ev transport.ConnStateEvent) {
	var target status.State
	switch ev.State {
	case transport.ConnConnected:
		target = status.Connected
	case transport.ConnReconnecting:
		target = status.Reconnecting
	case transport.ConnDisconnected:
		target = status.Disconnected
	default:
		return
	}
	if err := e.machine.Transition(target); err != nil {
		e.log.Warn("state transition rejected", zap.Error(err))
	}
}
