package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client errors.
var (
	// ErrTimeout means no reply arrived within the call's timeout.
	ErrTimeout = errors.New("mcp: request timed out")

	// ErrClosed means the client was closed while the call was pending.
	ErrClosed = errors.New("mcp: client closed")
)

// callResult is the single-assignment result slot of a pending call.
type callResult struct {
	result json.RawMessage
	err    error
}

// Client is the caller side of the protocol. It writes framed requests
// to the transport and correlates replies to pending calls purely by
// id: replies may arrive in any order, and a reply for an id that is
// not pending (already resolved, timed out, or never sent here) is a
// silent no-op.
type Client struct {
	w      io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan callResult
	closed  bool
}

// NewClient creates a client writing requests to w. Replies are fed in
// either by ReadLoop or directly via HandleMessage.
func NewClient(w io.Writer) *Client {
	return &Client{
		w:       w,
		logger:  slog.Default().With("component", "mcp.client"),
		pending: make(map[string]chan callResult),
	}
}

// Call sends one request and blocks until the correlated reply
// arrives, the timeout elapses, or ctx is cancelled. Exactly one of
// those outcomes resolves the call; the pending entry is gone
// afterwards either way.
func (c *Client) Call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	id := uuid.NewString()

	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if _, err := c.w.Write(append(raw, '\n')); err != nil {
		c.remove(id)
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.result, res.err
	case <-timer.C:
		c.remove(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.remove(id)
		return nil, ctx.Err()
	}
}

// HandleMessage resolves the pending call matching an inbound response
// or error envelope. Non-reply envelopes and unknown ids are ignored.
func (c *Client) HandleMessage(msg *Message) {
	switch msg.Type {
	case TypeResponse:
		if ch, ok := c.take(msg.ID); ok {
			ch <- callResult{result: msg.Result}
		}
	case TypeError:
		if ch, ok := c.take(msg.ID); ok {
			perr := &Error{Code: msg.Code, Message: msg.ErrMessage}
			if len(msg.Data) > 0 {
				_ = json.Unmarshal(msg.Data, &perr.Data)
			}
			ch <- callResult{err: perr}
		}
	default:
		// Servers do not originate requests toward us.
	}
}

// ReadLoop consumes reply lines from r until it is exhausted, ctx is
// cancelled, or a read fails. It returns the terminating error, if
// any; pending calls are failed with ErrClosed on exit.
func (c *Client) ReadLoop(ctx context.Context, r io.Reader) error {
	defer c.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := Parse(scanner.Bytes())
		if err != nil {
			c.logger.Warn("discarding unparseable reply")
			continue
		}
		c.HandleMessage(msg)
	}
	return scanner.Err()
}

// Close fails every pending call with ErrClosed and rejects future
// calls. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- callResult{err: ErrClosed}
	}
}

// take removes and returns the pending entry for id. Removal before
// delivery is what makes resolution exactly-once: a second reply with
// the same id finds nothing.
func (c *Client) take(id string) (chan callResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch, ok
}

// remove drops a pending entry without resolving it (timeout or
// cancellation path).
func (c *Client) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
