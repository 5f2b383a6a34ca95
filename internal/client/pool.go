package client

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nethippie/hippie/internal/connection"
	"github.com/nethippie/hippie/internal/uri"
)

// pool holds at most one Connection per origin. With a positive capacity
// the least recently used Connection is closed and dropped once the cap is
// exceeded; otherwise the pool grows without bound.
type pool struct {
	mu       sync.Mutex
	conns    map[uri.Origin]*connection.Connection
	bounded  *lru.Cache
	onResize func(n int)
}

func newPool(capacity int, onResize func(int)) (*pool, error) {
	p := &pool{onResize: onResize}

	if capacity <= 0 {
		p.conns = make(map[uri.Origin]*connection.Connection)
		return p, nil
	}

	cache, err := lru.NewWithEvict(capacity, func(_, value any) {
		value.(*connection.Connection).Close()
	})
	if err != nil {
		return nil, err
	}
	p.bounded = cache
	return p, nil
}

// get returns the Connection for origin, calling create under the pool lock
// when none exists. Concurrent callers for a new origin share one Connection.
func (p *pool) get(origin uri.Origin, create func(uri.Origin) (*connection.Connection, error)) (*connection.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.lookup(origin); ok {
		return conn, nil
	}

	conn, err := create(origin)
	if err != nil {
		return nil, err
	}

	if p.bounded != nil {
		p.bounded.Add(origin, conn)
	} else {
		p.conns[origin] = conn
	}

	if p.onResize != nil {
		p.onResize(p.lenLocked())
	}
	return conn, nil
}

func (p *pool) lookup(origin uri.Origin) (*connection.Connection, bool) {
	if p.bounded != nil {
		v, ok := p.bounded.Get(origin)
		if !ok {
			return nil, false
		}
		return v.(*connection.Connection), true
	}
	conn, ok := p.conns[origin]
	return conn, ok
}

func (p *pool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lenLocked()
}

func (p *pool) lenLocked() int {
	if p.bounded != nil {
		return p.bounded.Len()
	}
	return len(p.conns)
}

// closeAll closes and forgets every Connection.
func (p *pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bounded != nil {
		p.bounded.Purge() // eviction callback closes each entry
	} else {
		for origin, conn := range p.conns {
			conn.Close()
			delete(p.conns, origin)
		}
	}

	if p.onResize != nil {
		p.onResize(0)
	}
}
