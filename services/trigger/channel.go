// Package trigger connects to the upstream trigger publisher: a ZeroMQ
// PUB socket carrying "<topic> <payload>" strings, and a REP socket used
// once at startup for the readiness handshake.
package trigger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"

	"trigger-capture/utils"
)

// Handshake strings. Both must match exactly.
const (
	Greeting = "Hello"
	Ack      = "Welcome"
)

// ErrHandshakeRejected means the publisher answered something other than Ack.
var ErrHandshakeRejected = errors.New("handshake rejected")

// Channel is the subscriber side of the trigger link. Received payloads are
// pumped into a bounded inbox; TryReceive never blocks.
type Channel struct {
	cfg    utils.TriggerConfig
	sub    zmq4.Socket
	req    zmq4.Socket
	inbox  chan string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool

	received uint64
	dropped  uint64
	filtered uint64
}

// Dial connects both sockets and starts the receive pump. Connecting is
// retried until the peers listen or ctx is cancelled, so the publisher may
// come up after this node.
func Dial(ctx context.Context, cfg utils.TriggerConfig) (*Channel, error) {
	inbox := cfg.InboxSize
	if inbox <= 0 {
		inbox = 64
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := zmq4.NewSub(ctx, zmq4.WithDialerMaxRetries(-1))
	if err := sub.Dial(endpoint(cfg.Address)); err != nil {
		cancel()
		return nil, fmt.Errorf("dial trigger publisher %s: %w", cfg.Address, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, cfg.Topic); err != nil {
		sub.Close()
		cancel()
		return nil, fmt.Errorf("subscribe %q: %w", cfg.Topic, err)
	}

	req := zmq4.NewReq(ctx, zmq4.WithDialerMaxRetries(-1))
	if err := req.Dial(endpoint(cfg.HandshakeAddress)); err != nil {
		sub.Close()
		cancel()
		return nil, fmt.Errorf("dial handshake endpoint %s: %w", cfg.HandshakeAddress, err)
	}

	c := &Channel{
		cfg:    cfg,
		sub:    sub,
		req:    req,
		inbox:  make(chan string, inbox),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.pump(ctx)

	utils.L().Info("trigger channel connected  (pub=%s, handshake=%s, topic=%q)",
		cfg.Address, cfg.HandshakeAddress, cfg.Topic)
	return c, nil
}

// Handshake sends the greeting and blocks until the acknowledgment arrives,
// the configured timeout expires or ctx is cancelled. It is not retried.
func (c *Channel) Handshake(ctx context.Context) error {
	if d := c.cfg.HandshakeTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return RequestAck(ctx, c.req)
}

// RequestAck performs the Greeting -> Ack exchange on a connected REQ socket.
func RequestAck(ctx context.Context, req zmq4.Socket) error {
	utils.L().Info("handshake: sending %q, waiting for %q", Greeting, Ack)
	if err := req.Send(zmq4.NewMsgString(Greeting)); err != nil {
		return fmt.Errorf("handshake send: %w", err)
	}

	type reply struct {
		msg zmq4.Msg
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		msg, err := req.Recv()
		ch <- reply{msg, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("handshake: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("handshake recv: %w", r.err)
		}
		got := string(bytes.Join(r.msg.Frames, nil))
		if got != Ack {
			return fmt.Errorf("%w: got %q, want %q", ErrHandshakeRejected, got, Ack)
		}
	}
	utils.L().Info("handshake: complete")
	return nil
}

// TryReceive returns the next payload body, if any. An empty inbox is the
// normal case and not an error.
func (c *Channel) TryReceive() (string, bool) {
	select {
	case body := <-c.inbox:
		return body, true
	default:
		return "", false
	}
}

func (c *Channel) pump(ctx context.Context) {
	defer close(c.done)
	for {
		msg, err := c.sub.Recv()
		if err != nil {
			if ctx.Err() == nil && !c.closed.Load() {
				utils.L().Error("trigger channel: receive failed, no further triggers: %v", err)
			}
			return
		}

		topic, body, framed := SplitTopic(string(bytes.Join(msg.Frames, nil)))
		if framed && c.cfg.Topic != "" && topic != c.cfg.Topic {
			// SUB filtering is prefix based; "triggerX" also matches "trigger".
			atomic.AddUint64(&c.filtered, 1)
			continue
		}
		atomic.AddUint64(&c.received, 1)
		utils.L().Debug("trigger channel: received %q", body)

		select {
		case c.inbox <- body:
		default:
			atomic.AddUint64(&c.dropped, 1)
			utils.L().Warn("trigger channel: inbox full, dropped message %q", body)
		}
	}
}

// Close tears down both sockets and waits for the pump to exit.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		err = errors.Join(c.sub.Close(), c.req.Close())
		c.cancel()
		select {
		case <-c.done:
		case <-time.After(time.Second):
			utils.L().Warn("trigger channel: receive pump did not stop")
		}
		r, d, f := c.Stats()
		utils.L().Info("trigger channel closed  (received=%d, dropped=%d, filtered=%d)", r, d, f)
	})
	return err
}

// Stats returns (received, dropped, filtered) counts atomically.
func (c *Channel) Stats() (uint64, uint64, uint64) {
	return atomic.LoadUint64(&c.received), atomic.LoadUint64(&c.dropped), atomic.LoadUint64(&c.filtered)
}

// SplitTopic separates "<topic> <payload>". A string without a space is a
// bare payload: body is the whole string and framed is false.
func SplitTopic(raw string) (topic, body string, framed bool) {
	topic, body, framed = strings.Cut(raw, " ")
	if !framed {
		return "", raw, false
	}
	return topic, body, true
}

func endpoint(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}
