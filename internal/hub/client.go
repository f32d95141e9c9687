package hub

import "sync"

// Client is one live connection as seen by the hub. The transport drains
// Send; the hub closes it when the client is unregistered or evicted.
type Client struct {
	ID     string
	UserID string
	Send   chan []byte

	closeOnce sync.Once
}

// NewClient creates a client with a send buffer of size buffer.
func NewClient(id, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Send:   make(chan []byte, buffer),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}
