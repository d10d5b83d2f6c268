package identity

import (
	"context"
	"sync"
)

// Provider is a push-based shopper identity source. The authentication
// collaborator calls Set on sign-in and Set("") on sign-out; watchers get
// the current id immediately and every transition afterwards.
type Provider struct {
	mu       sync.Mutex
	current  string
	watchers map[int]chan string
	next     int
}

func NewProvider() *Provider {
	return &Provider{watchers: make(map[int]chan string)}
}

// Set publishes a new shopper id. Setting the same id again is a no-op.
func (p *Provider) Set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == p.current {
		return
	}
	p.current = id
	for _, ch := range p.watchers {
		select {
		case ch <- id:
		default:
			// watcher is not keeping up; it will still observe the
			// latest id on its next receive
			select {
			case <-ch:
			default:
			}
			ch <- id
		}
	}
}

// Watch implements port.Identity.
func (p *Provider) Watch(ctx context.Context) <-chan string {
	ch := make(chan string, 4)

	p.mu.Lock()
	id := p.next
	p.next++
	p.watchers[id] = ch
	ch <- p.current
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if existing, ok := p.watchers[id]; ok {
			delete(p.watchers, id)
			close(existing)
		}
		p.mu.Unlock()
	}()
	return ch
}
