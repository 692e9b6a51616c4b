package app

import (
	"sync"

	"courier-dispatch/internal/logx"
)

type namedCloser struct {
	name string
	fn   func() error
}

// closers releases process resources in reverse acquisition order.
type closers struct {
	mu   sync.Mutex
	list []namedCloser
}

func newClosers() *closers { return &closers{} }

func (c *closers) add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, namedCloser{name: name, fn: fn})
}

func (c *closers) closeAll(logger logx.Logger) {
	if c == nil {
		return
	}
	c.mu.Lock()
	list := c.list
	c.list = nil
	c.mu.Unlock()

	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].fn(); err != nil {
			logger.Error("close error", logx.String("resource", list[i].name), logx.Err(err))
		}
	}
}
