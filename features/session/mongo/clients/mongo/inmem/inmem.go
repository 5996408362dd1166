// Package inmem provides an in-memory fake of mongo.Client for tests and local tooling.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/agentgrove/corert/runtime/agent/session"
)

// Client is an in-memory stand-in for the Mongo-backed session client. It is
// safe for concurrent use.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	runs     map[string]session.RunMeta
}

// New returns an empty Client.
func New() *Client {
	return &Client{
		sessions: make(map[string]session.Session),
		runs:     make(map[string]session.RunMeta),
	}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "session-mongo-inmem" }

// Ping implements health.Pinger.
func (c *Client) Ping(ctx context.Context) error { return nil }

// CreateSession implements mongo.Client.
func (c *Client) CreateSession(_ context.Context, sessionID string, createdAt time.Time) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sessions[sessionID]; ok {
		if existing.Status == session.StatusEnded {
			return session.Session{}, session.ErrSessionEnded
		}
		return cloneSession(existing), nil
	}
	out := session.Session{ID: sessionID, Status: session.StatusActive, CreatedAt: createdAt.UTC()}
	c.sessions[sessionID] = out
	return cloneSession(out), nil
}

// LoadSession implements mongo.Client.
func (c *Client) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	existing, ok := c.sessions[sessionID]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	return cloneSession(existing), nil
}

// EndSession implements mongo.Client.
func (c *Client) EndSession(_ context.Context, sessionID string, endedAt time.Time) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.sessions[sessionID]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	if existing.Status == session.StatusEnded {
		return cloneSession(existing), nil
	}
	at := endedAt.UTC()
	existing.Status = session.StatusEnded
	existing.EndedAt = &at
	c.sessions[sessionID] = existing
	return cloneSession(existing), nil
}

// UpsertRun implements mongo.Client.
func (c *Client) UpsertRun(_ context.Context, run session.RunMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := c.runs[run.RunID]; ok && run.StartedAt.IsZero() {
		run.StartedAt = existing.StartedAt
	} else if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.UpdatedAt = now
	c.runs[run.RunID] = cloneRunMeta(run)
	return nil
}

// LoadRun implements mongo.Client.
func (c *Client) LoadRun(_ context.Context, runID string) (session.RunMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[runID]
	if !ok {
		return session.RunMeta{}, session.ErrRunNotFound
	}
	return cloneRunMeta(run), nil
}

// ListRunsBySession implements mongo.Client.
func (c *Client) ListRunsBySession(_ context.Context, sessionID string, statuses []session.RunStatus) ([]session.RunMeta, error) {
	var allowed map[session.RunStatus]struct{}
	if len(statuses) > 0 {
		allowed = make(map[session.RunStatus]struct{}, len(statuses))
		for _, st := range statuses {
			allowed[st] = struct{}{}
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]session.RunMeta, 0, len(c.runs))
	for _, run := range c.runs {
		if run.SessionID != sessionID {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[run.Status]; !ok {
				continue
			}
		}
		out = append(out, cloneRunMeta(run))
	}
	return out, nil
}

// Reset clears all stored sessions and runs (useful in tests).
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]session.Session)
	c.runs = make(map[string]session.RunMeta)
}

func cloneSession(in session.Session) session.Session {
	out := in
	if in.EndedAt != nil {
		at := *in.EndedAt
		out.EndedAt = &at
	}
	return out
}

func cloneRunMeta(in session.RunMeta) session.RunMeta {
	out := in
	if len(in.Labels) > 0 {
		out.Labels = make(map[string]string, len(in.Labels))
		for k, v := range in.Labels {
			out.Labels[k] = v
		}
	}
	if len(in.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
