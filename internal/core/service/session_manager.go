package service

import (
	"sync"
	"time"
)

const (
	// sessions idle longer than this lose their store subscription; the
	// next request simply builds a fresh one from the persisted cart.
	sessionTTL    = 30 * time.Minute
	sweepInterval = time.Minute
)

type sessionEntry struct {
	session  *CartSession
	lastUsed time.Time
}

// SessionManager hands out exactly one CartSession per shopper. The HTTP
// layer serves many shoppers; each one gets its own controller with its
// own live subscription. Idle sessions are evicted so the subscriptions
// do not accumulate for shoppers that never come back.
type SessionManager struct {
	factory func() *CartSession
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	stop     chan struct{}
	once     sync.Once
}

func NewSessionManager(factory func() *CartSession) *SessionManager {
	m := &SessionManager{
		factory:  factory,
		ttl:      sessionTTL,
		sessions: make(map[string]*sessionEntry),
		stop:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Session returns the shopper's controller, creating and subscribing it
// on first use.
func (m *SessionManager) Session(shopperID string) *CartSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[shopperID]; ok {
		e.lastUsed = time.Now()
		return e.session
	}
	s := m.factory()
	s.SetShopper(shopperID)
	m.sessions[shopperID] = &sessionEntry{session: s, lastUsed: time.Now()}
	return s
}

// Drop signs the shopper out: the local view is zeroed immediately and
// the controller is discarded.
func (m *SessionManager) Drop(shopperID string) {
	m.mu.Lock()
	e, ok := m.sessions[shopperID]
	delete(m.sessions, shopperID)
	m.mu.Unlock()

	if ok {
		e.session.SetShopper("")
	}
}

// Close detaches every session and stops the idle sweeper.
func (m *SessionManager) Close() {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*CartSession, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	for _, s := range sessions {
		s.SetShopper("")
	}
}

func (m *SessionManager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

// evictIdle detaches every session whose last use is older than the TTL.
func (m *SessionManager) evictIdle(now time.Time) {
	m.mu.Lock()
	var evicted []*CartSession
	for id, e := range m.sessions {
		if now.Sub(e.lastUsed) > m.ttl {
			evicted = append(evicted, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		s.SetShopper("")
	}
}
