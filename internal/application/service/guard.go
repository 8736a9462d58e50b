package service

import "sync"

// guard holders
const (
	holdAttach   = "attach"
	holdComplete = "complete"
)

// sessionGuard grants exclusive rights per session id and remembers which
// operation holds them
type sessionGuard struct {
	mu     sync.Mutex
	active map[string]string
}

func newSessionGuard() *sessionGuard {
	return &sessionGuard{active: make(map[string]string)}
}

// TryAcquire takes id for holder. If id is already held it returns false and
// the current holder.
func (g *sessionGuard) TryAcquire(id, holder string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, held := g.active[id]; held {
		return current, false
	}
	g.active[id] = holder
	return holder, true
}

func (g *sessionGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, id)
}

func (g *sessionGuard) Held(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.active[id]
	return held
}
