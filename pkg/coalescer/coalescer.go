package coalescer

import (
	"sync"
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/project"
)

// pending tracks the latest queued payload for one project. gen is
// bumped on every requeue so a timer that fired just as the window
// restarted cannot deliver early.
type pending struct {
	root    string
	payload interface{}
	timer   *time.Timer
	gen     uint64
}

// coalescer implements the Coalescer interface with one timer per
// normalized project key.
type coalescer struct {
	config Config
	flush  FlushFunc
	logger logger.Logger

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
}

// New creates a coalescer that invokes flush after each debounce window.
func New(cfg Config, flush FlushFunc, log logger.Logger) Coalescer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	return &coalescer{
		config:  cfg,
		flush:   flush,
		logger:  log,
		pending: make(map[string]*pending),
	}
}

// Queue implements Coalescer.Queue.
func (c *coalescer) Queue(root string, payload interface{}) {
	key := project.Key(root)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if p, exists := c.pending[key]; exists {
		// Last write wins: replace the payload and restart the window.
		// The timer is recreated rather than Reset; Stop cannot undo a
		// fire already blocked on the mutex, so that delivery must be
		// droppable by generation instead.
		p.payload = payload
		p.root = root
		p.timer.Stop()
		p.gen++
		gen := p.gen
		p.timer = time.AfterFunc(c.config.Window, func() {
			c.fire(key, gen)
		})
		return
	}

	p := &pending{root: root, payload: payload}
	p.timer = time.AfterFunc(c.config.Window, func() {
		c.fire(key, 0)
	})
	c.pending[key] = p
}

// fire delivers the pending payload for key, if this timer generation
// is still the scheduled one.
func (c *coalescer) fire(key string, gen uint64) {
	c.mu.Lock()
	p, exists := c.pending[key]
	if exists && p.gen != gen {
		// A newer Queue restarted the window after this timer fired.
		c.mu.Unlock()
		return
	}
	if exists {
		delete(c.pending, key)
	}
	closed := c.closed
	c.mu.Unlock()

	if !exists || closed {
		return
	}

	c.logger.Debug("coalesced flush", "project", key)
	c.flush(p.root, p.payload)
}

// Cancel implements Coalescer.Cancel.
func (c *coalescer) Cancel(root string) {
	key := project.Key(root)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, exists := c.pending[key]; exists {
		p.timer.Stop()
		delete(c.pending, key)
	}
}

// CancelAll implements Coalescer.CancelAll.
func (c *coalescer) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelAllLocked()
}

// Close implements Coalescer.Close.
func (c *coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cancelAllLocked()
}

func (c *coalescer) cancelAllLocked() {
	for key, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, key)
	}
}
