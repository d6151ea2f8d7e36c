// ajax keeps server side callbacks pending until a page fragment asks for them.
//
// A page registers a Callback and embeds the returned nonce in a link.
// When the link is followed, the callback is taken from the Pool and run.
package ajax

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lmfdb/lmfdb/pkg/loop"
	"github.com/lmfdb/lmfdb/pkg/metrics"
	kstr "github.com/lmfdb/lmfdb/pkg/utils/strings"
)

// Callback renders a html fragment when its link is followed.
type Callback func(ctx context.Context) (string, error)

// Expired is the fragment served for unknown or evicted nonces.
const Expired = `<span class="ajax-expired">This content has expired; please reload the page.</span>`

const nonceLength = 32 // hex chars = 128 bits

type entry struct {
	nonce    string
	callback Callback
	sticky   bool
	created  time.Time
}

// Pool is a bounded registry of pending callbacks.
//
// Entries are evicted oldest first when the pool grows over its size,
// and when they get older than the expiration.
// Non-sticky entries are also removed on their first read.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	size       int
	expiration time.Duration
	clock      func() time.Time

	// entries in insertion order. front is the oldest.
	order *list.List
	index map[string]*list.Element
}

type Option func(*Pool) *Pool

// WithClock replaces the time source of the Pool.
func WithClock(clock func() time.Time) Option {
	return func(p *Pool) *Pool {
		p.clock = clock
		return p
	}
}

// New creates an empty Pool.
//
// # Args
//
// - size: max number of entries. Non-positive size is treated as 1.
//
// - expiration: entries older than this are evicted.
func New(size int, expiration time.Duration, options ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:       size,
		expiration: expiration,
		clock:      time.Now,
		order:      list.New(),
		index:      map[string]*list.Element{},
	}
	for _, opt := range options {
		p = opt(p)
	}
	return p
}

// Register stores the callback and returns its nonce.
//
// When sticky is false, the callback can be taken only once.
func (p *Pool) Register(callback Callback, sticky bool) (string, error) {
	nonce, err := p.newNonce()
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.index[nonce] = p.order.PushBack(&entry{
		nonce:    nonce,
		callback: callback,
		sticky:   sticky,
		created:  p.clock(),
	})
	p.purge()
	return nonce, nil
}

func (p *Pool) newNonce() (string, error) {
	for {
		nonce, err := kstr.RandomHex(nonceLength)
		if err != nil {
			return "", err
		}
		p.mu.Lock()
		_, dup := p.index[nonce]
		p.mu.Unlock()
		if !dup {
			return nonce, nil
		}
	}
}

// Take looks up the callback for nonce.
//
// Expired entries are purged before the lookup.
// A non-sticky entry is removed by this call.
//
// # Returns
//
// - Callback: the callback. nil if not found.
//
// - bool: true if found.
func (p *Pool) Take(nonce string) (Callback, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.purge()

	el, ok := p.index[nonce]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.sticky {
		p.remove(el)
		metrics.AjaxPoolEvictions.WithLabelValues("read").Inc()
		metrics.AjaxPoolEntries.Set(float64(p.order.Len()))
	}
	return e.callback, true
}

// Purge evicts entries over the size, and then expired ones.
func (p *Pool) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purge()
}

// Len returns the number of pending entries, including expired but not purged ones.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Janitor purges the pool every interval, until ctx is done.
func (p *Pool) Janitor(ctx context.Context, interval time.Duration) error {
	_, err := loop.Start(ctx, p, func(_ context.Context, p *Pool) (*Pool, loop.Next) {
		p.Purge()
		return p, loop.Continue(interval)
	})
	return err
}

// purge is Purge without lock. The caller must hold p.mu.
func (p *Pool) purge() {
	for p.size < p.order.Len() {
		p.remove(p.order.Front())
		metrics.AjaxPoolEvictions.WithLabelValues("size").Inc()
	}

	now := p.clock()
	for el := p.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.created) <= p.expiration {
			// younger entries follow.
			break
		}
		next := el.Next()
		p.remove(el)
		metrics.AjaxPoolEvictions.WithLabelValues("age").Inc()
		el = next
	}
	metrics.AjaxPoolEntries.Set(float64(p.order.Len()))
}

func (p *Pool) remove(el *list.Element) {
	e := p.order.Remove(el).(*entry)
	delete(p.index, e.nonce)
}
