package autoconfig

import (
	"fmt"
	"sync"
	"time"
)

// ChangeEvent is one observable effect of applying a Message to the
// merge engine's cache.
type ChangeEvent interface {
	isChangeEvent()
}

// InsertEvent is emitted the first time an environment is seen.
type InsertEvent struct{ Environment Environment }

// UpdateEvent is emitted when a newer version of a known environment
// replaces the cached one.
type UpdateEvent struct{ Previous, Current Environment }

// DeleteEvent is emitted when an environment is removed from the cache.
type DeleteEvent struct{ EnvID ClientSideID }

// InitializedEvent is emitted exactly once, the first time a full
// snapshot ("put" to "/") is applied to the cache.
type InitializedEvent struct{}

func (InsertEvent) isChangeEvent()       {}
func (UpdateEvent) isChangeEvent()       {}
func (DeleteEvent) isChangeEvent()       {}
func (InitializedEvent) isChangeEvent()  {}

// Client is the merge engine: it applies Messages from the autoconfig
// stream to an in-memory cache of Environments, keyed by environment
// id, and reports the minimal set of ChangeEvents that applying each
// message produced.
type Client struct {
	mu            sync.RWMutex
	environments  map[ClientSideID]Environment
	isInitialized bool
}

// NewClient returns an empty merge engine.
func NewClient() *Client {
	return &Client{environments: make(map[ClientSideID]Environment)}
}

// LoadEnvironments seeds the cache from a previously-persisted snapshot
// without emitting any ChangeEvents, for warm-starting before the
// stream connects. It does not mark the cache as initialized: the
// stream's own first full "put" still fires InitializedEvent once.
func (c *Client) LoadEnvironments(envs []Environment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range envs {
		c.environments[e.EnvID] = e
	}
}

// Environment looks up a single cached environment by id.
func (c *Client) Environment(id ClientSideID) (Environment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.environments[id]
	return e, ok
}

// AllEnvironments returns every cached environment, in no particular
// order.
func (c *Client) AllEnvironments() []Environment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Environment, 0, len(c.environments))
	for _, e := range c.environments {
		out = append(out, e)
	}
	return out
}

// EnvironmentsByProjectKey returns every cached environment belonging
// to the given project.
func (c *Client) EnvironmentsByProjectKey(projKey string) []Environment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Environment
	for _, e := range c.environments {
		if e.ProjKey == projKey {
			out = append(out, e)
		}
	}
	return out
}

// Process applies one decoded Message to the cache and returns the
// ChangeEvents it produced. Apart from LoadEnvironments it is the only
// path by which the cache mutates; Reconnect messages leave the cache as
// it is and emit nothing, and InitializedEvent never fires again.
func (c *Client) Process(msg Message) ([]ChangeEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case PutMessage:
		return c.applyPut(m)
	case PatchMessage:
		return c.applyPatch(m)
	case DeleteMessage:
		return c.applyDelete(m)
	case ReconnectMessage:
		// Reconnect forces the owned event source back to the start of
		// its stream; the cache itself is left untouched and still
		// merges the post-reconnect snapshot against what it already
		// holds, so Initialized never fires a second time.
		return nil, nil
	default:
		return nil, fmt.Errorf("autoconfig: unknown message type %T", msg)
	}
}

func (c *Client) applyPut(m PutMessage) ([]ChangeEvent, error) {
	if m.Path == "/" {
		if len(c.environments) == 0 {
			var events []ChangeEvent
			for id, we := range m.All {
				env, err := environmentFromWire(ClientSideID(id), we)
				if err != nil {
					return nil, err
				}
				c.environments[env.EnvID] = env
			}
			if !c.isInitialized {
				c.isInitialized = true
				events = append(events, InitializedEvent{})
			}
			for _, env := range c.environments {
				events = append(events, InsertEvent{Environment: env})
			}
			return events, nil
		}

		// The cache already holds a snapshot: a later full put merges in
		// rather than replacing, applying the same version rule as Patch
		// to each entry. A cache seeded by LoadEnvironments still gets its
		// one InitializedEvent from the first full put.
		var events []ChangeEvent
		if !c.isInitialized {
			c.isInitialized = true
			events = append(events, InitializedEvent{})
		}
		for id, we := range m.All {
			env, err := environmentFromWire(ClientSideID(id), we)
			if err != nil {
				return nil, err
			}
			evs, err := c.upsert(env)
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		}
		return events, nil
	}

	id, err := envIDFromPath(m.Path)
	if err != nil || m.One == nil {
		if err == nil {
			err = fmt.Errorf("put message for %q carries no environment data", m.Path)
		}
		return nil, err
	}
	env, err := environmentFromWire(ClientSideID(id), *m.One)
	if err != nil {
		return nil, err
	}
	return c.upsert(env)
}

func (c *Client) applyPatch(m PatchMessage) ([]ChangeEvent, error) {
	id, err := envIDFromPath(m.Path)
	if err != nil {
		return nil, err
	}
	env, err := environmentFromWire(ClientSideID(id), m.Env)
	if err != nil {
		return nil, err
	}
	return c.upsert(env)
}

// upsert applies the shared insert-or-version-gated-update rule used by
// both a "/environments/{id}" patch and each entry of a merging full
// put: insert if the id is unseen, replace and emit Update if the
// incoming version is strictly greater than the cached one, otherwise
// ignore.
func (c *Client) upsert(env Environment) ([]ChangeEvent, error) {
	previous, existed := c.environments[env.EnvID]
	if !existed {
		c.environments[env.EnvID] = env
		return []ChangeEvent{InsertEvent{Environment: env}}, nil
	}
	if env.Version <= previous.Version {
		return nil, nil
	}
	c.environments[env.EnvID] = env
	return []ChangeEvent{UpdateEvent{Previous: previous, Current: env}}, nil
}

func (c *Client) applyDelete(m DeleteMessage) ([]ChangeEvent, error) {
	id, err := envIDFromPath(m.Path)
	if err != nil {
		return nil, err
	}
	cid := ClientSideID(id)
	previous, existed := c.environments[cid]
	if !existed {
		return nil, nil
	}
	if m.Version <= previous.Version {
		return nil, nil
	}
	delete(c.environments, cid)
	return []ChangeEvent{DeleteEvent{EnvID: cid}}, nil
}

func environmentFromWire(id ClientSideID, we wireEnvironment) (Environment, error) {
	mobKey, err := NewMobileKey(we.MobKey)
	if err != nil {
		return Environment{}, err
	}
	sdkKey, err := NewServerSideKey(we.SDKKey.Value)
	if err != nil {
		return Environment{}, err
	}
	expirable := Expirable{Current: sdkKey}
	if we.SDKKey.Expiring != nil {
		expiringKey, err := NewServerSideKey(we.SDKKey.Expiring.Value)
		if err != nil {
			return Environment{}, err
		}
		expiresAt, err := time.Parse(time.RFC3339, we.SDKKey.Expiring.ExpiresAt)
		if err != nil {
			return Environment{}, fmt.Errorf("autoconfig: invalid expiresAt %q: %w", we.SDKKey.Expiring.ExpiresAt, err)
		}
		expirable.Expiring = &ExpiringKey{Value: expiringKey, ExpiresAt: expiresAt}
	}

	return Environment{
		EnvID:      id,
		EnvKey:     we.EnvKey,
		EnvName:    we.EnvName,
		ProjKey:    we.ProjKey,
		ProjName:   we.ProjName,
		MobKey:     mobKey,
		SDKKey:     expirable,
		DefaultTTL: time.Duration(we.DefaultTTL) * time.Second,
		SecureMode: we.SecureMode,
		Version:    we.Version,
	}, nil
}
