package queue

import (
	"context"
	"sync"
)

// MemoryClient buffers messages in process. It backs local runs without SQS.
type MemoryClient struct {
	mu   sync.Mutex
	msgs []Message
}

// NewMemoryClient constructs an empty in-memory queue.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// Send appends msg to the buffer.
func (c *MemoryClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

// Drain returns and clears buffered messages in send order.
func (c *MemoryClient) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.msgs
	c.msgs = nil
	return out
}

var _ Client = (*MemoryClient)(nil)
