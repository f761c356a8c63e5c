package context

import (
	"context"
	"sync"
)

const (
	KeyRequestID = "request_id"
	KeyIPAddress = "ip_address"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyUserAgent = "user_agent"
)

type currentKey struct{}

// Current carries request scoped values from the HTTP layer down to the
// service and logger. Safe for concurrent use.
type Current struct {
	values sync.Map
}

func NewCurrent() *Current {
	return &Current{}
}

func (c *Current) Set(key string, value interface{}) {
	c.values.Store(key, value)
}

func (c *Current) Get(key string) interface{} {
	value, _ := c.values.Load(key)
	return value
}

func (c *Current) GetString(key string) (string, bool) {
	s, ok := c.Get(key).(string)
	return s, ok
}

func (c *Current) RequestID() string {
	id, _ := c.GetString(KeyRequestID)
	return id
}

// All returns a copy of every stored value.
func (c *Current) All() map[string]interface{} {
	out := make(map[string]interface{})

	c.values.Range(func(key, value any) bool {
		out[key.(string)] = value
		return true
	})

	return out
}

func WithCurrent(ctx context.Context, current *Current) context.Context {
	return context.WithValue(ctx, currentKey{}, current)
}

func FromContext(ctx context.Context) (*Current, bool) {
	current, ok := ctx.Value(currentKey{}).(*Current)
	return current, ok && current != nil
}

// GetCurrent never returns nil.
func GetCurrent(ctx context.Context) *Current {
	if current, ok := FromContext(ctx); ok {
		return current
	}

	return NewCurrent()
}

func RequestID(ctx context.Context) string {
	return GetCurrent(ctx).RequestID()
}
