package users

import (
	"context"
	"sync"
	"time"

	"github.com/mcoutinho/chatcore/internal/bus"
	"github.com/mcoutinho/chatcore/internal/config"
	"github.com/mcoutinho/chatcore/internal/transport"
	"go.uber.org/zap"
)

// Event kinds published when cached user data changes.
const (
	EventInfoUpdated     = "users.info_updated"
	EventPresenceUpdated = "users.presence_updated"
)

// InfoChange is the payload of users.info_updated.
type InfoChange struct {
	Users []transport.UserInfo
}

// PresenceChange is the payload of users.presence_updated.
type PresenceChange struct {
	Entries []transport.Presence
}

// Cache holds resolved user profiles and presence snapshots. Profile
// resolution is best effort and asynchronous: Ensure schedules fetches for
// ids not yet cached and returns immediately, so the message pipelines are
// never blocked on directory lookups.
type Cache struct {
	mu       sync.Mutex
	conn     transport.Conn
	cfg      *config.Config
	bus      *bus.Bus
	log      *zap.Logger
	info     map[string]transport.UserInfo
	presence map[string]transport.Presence
	pending  map[string]struct{}
}

// New creates an empty cache.
func New(conn transport.Conn, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Cache{
		conn:     conn,
		cfg:      cfg,
		bus:      b,
		log:      logger,
		info:     make(map[string]transport.UserInfo),
		presence: make(map[string]transport.Presence),
		pending:  make(map[string]struct{}),
	}
}

// Ensure schedules profile fetches for the given ids and, when enabled,
// presence subscriptions. Already cached and already in-flight ids are
// skipped. The fetch runs in the background; failures are logged and the
// ids released for a later retry.
func (c *Cache) Ensure(ctx context.Context, userIDs []string) {
	if !c.cfg.Features.EnrichUserInfo {
		return
	}

	c.mu.Lock()
	var missing []string
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := c.info[id]; ok {
			continue
		}
		if _, ok := c.pending[id]; ok {
			continue
		}
		c.pending[id] = struct{}{}
		missing = append(missing, id)
	}
	c.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	go c.fetch(context.WithoutCancel(ctx), missing)
}

func (c *Cache) fetch(ctx context.Context, ids []string) {
	infos, err := c.conn.FetchUserInfo(ctx, ids)

	c.mu.Lock()
	for _, id := range ids {
		delete(c.pending, id)
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("user info fetch failed", zap.Int("count", len(ids)), zap.Error(err))
		return
	}
	changed := make([]transport.UserInfo, 0, len(infos))
	for id, info := range infos {
		c.info[id] = info
		changed = append(changed, info)
	}
	c.mu.Unlock()

	if len(changed) > 0 {
		c.publish(EventInfoUpdated, InfoChange{Users: changed})
	}

	if c.cfg.Features.SubscribePresence {
		if err := c.conn.SubscribePresence(ctx, ids); err != nil {
			c.log.Debug("presence subscribe failed", zap.Error(err))
		}
	}
}

// Info returns the cached profile for id.
func (c *Cache) Info(id string) (transport.UserInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.info[id]
	return info, ok
}

// Presence returns the last known presence snapshot for id.
func (c *Cache) Presence(id string) (transport.Presence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.presence[id]
	return p, ok
}

// ApplyPresence folds a pushed presence batch into the cache.
func (c *Cache) ApplyPresence(entries []transport.Presence) {
	if len(entries) == 0 {
		return
	}
	c.mu.Lock()
	for _, e := range entries {
		c.presence[e.UserID] = e
	}
	c.mu.Unlock()
	c.publish(EventPresenceUpdated, PresenceChange{Entries: entries})
}

// Clear wipes the cache at logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = make(map[string]transport.UserInfo)
	c.presence = make(map[string]transport.Presence)
	c.pending = make(map[string]struct{})
}

func (c *Cache) publish(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
