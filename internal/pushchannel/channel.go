package pushchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/saravenpi/relay/internal/logger"
)

// ManualCloseReason marks an intentional close. A close frame carrying code
// 1000 and this reason never triggers a reconnect.
const ManualCloseReason = "Manual disconnect"

const module = "pushchannel"

var ErrNotConnected = errors.New("push channel not connected")

type Options struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	Dialer    Dialer
	Scheduler Scheduler
	Logger    logger.ILogger
}

// Channel keeps one websocket open to the push endpoint and reconnects at a
// fixed interval, a bounded number of times, after unintended closes.
type Channel struct {
	url       string
	dialer    Dialer
	scheduler Scheduler
	log       logger.ILogger
	policy    backoff.BackOff

	mu         sync.Mutex
	state      State
	conn       Conn
	gen        int
	attempts   int
	manual     bool
	retryTimer Timer
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	observers  map[int]func(Event)
	nextObs    int

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func New(opts Options) *Channel {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 3 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if opts.MaxReconnectAttempts > 0 {
		policy = backoff.WithMaxRetries(
			backoff.NewConstantBackOff(opts.ReconnectInterval),
			uint64(opts.MaxReconnectAttempts),
		)
	}

	return &Channel{
		url:       opts.URL,
		dialer:    opts.Dialer,
		scheduler: opts.Scheduler,
		log:       opts.Logger,
		policy:    policy,
		state:     StateIdle,
		observers: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every channel event. Observers run on the
// channel's goroutines and must not call Disconnect.
func (c *Channel) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts is the number of reconnects scheduled since the last open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect dials the endpoint and blocks until the first attempt either opens
// or fails. A failed attempt is treated like an abnormal close, so a retry
// may already be scheduled when the error is returned. Calling Connect again
// after retries ran out starts over with a fresh retry budget.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.stopRetryLocked()
	c.manual = false
	c.attempts = 0
	c.policy.Reset()
	if c.lifeCancel != nil {
		c.lifeCancel()
	}
	c.lifeCtx, c.lifeCancel = context.WithCancel(context.WithoutCancel(ctx))
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	dialCtx := c.lifeCtx
	c.mu.Unlock()

	return c.open(ctx, dialCtx, gen)
}

func (c *Channel) open(callerCtx, lifeCtx context.Context, gen int) error {
	ctx, cancel := context.WithCancel(lifeCtx)
	defer cancel()
	stop := context.AfterFunc(callerCtx, cancel)
	defer stop()

	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn(module, "failed to connect", map[string]interface{}{"url": c.url, "error": err.Error()})
		c.emit(Event{Kind: EventError, Err: err})
		c.closed(gen, websocket.CloseAbnormalClosure, "")
		return err
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.policy.Reset()
	c.wg.Add(2)
	c.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go c.readPump(conn, gen, done)
	go c.pingPump(conn, done)

	c.log.Info(module, "connected", map[string]interface{}{"url": c.url})
	c.emit(Event{Kind: EventConnected})
	return nil
}

func (c *Channel) readPump(conn Conn, gen int, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			c.closed(gen, code, reason)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn(module, "dropping malformed frame", map[string]interface{}{"error": err.Error(), "size": len(data)})
			c.emit(Event{Kind: EventError, Err: fmt.Errorf("failed to parse message: %w", err)})
			continue
		}
		c.emit(Event{Kind: EventMessage, Frame: frame})
	}
}

func (c *Channel) pingPump(conn Conn, done <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// closed handles the end of connection gen, scheduling a reconnect unless
// the close was intentional or the retry budget is spent.
func (c *Channel) closed(gen, code int, reason string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	manual := c.manual || (code == websocket.CloseNormalClosure && reason == ManualCloseReason)

	scheduled := false
	delay := time.Duration(0)
	if !manual {
		delay = c.policy.NextBackOff()
		if delay != backoff.Stop {
			c.attempts++
			c.wg.Add(1)
			c.retryTimer = c.scheduler.AfterFunc(delay, func() {
				defer c.wg.Done()
				c.retry(gen)
			})
			scheduled = true
		}
	}
	attempt := c.attempts
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.log.Info(module, "disconnected", map[string]interface{}{"code": code, "reason": reason})
	c.emit(Event{Kind: EventDisconnected, CloseCode: code, CloseReason: reason})

	switch {
	case scheduled:
		c.log.Info(module, "reconnect scheduled", map[string]interface{}{"attempt": attempt, "delay": delay.String()})
		c.emit(Event{Kind: EventReconnectScheduled, Attempt: attempt, Delay: delay})
	case !manual:
		c.log.Warn(module, "giving up reconnecting", map[string]interface{}{"attempts": attempt})
	}
}

func (c *Channel) retry(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.gen++
	next := c.gen
	c.state = StateConnecting
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	_ = c.open(lifeCtx, lifeCtx, next)
}

// Disconnect closes the channel on purpose: a pending retry is cancelled, the
// server gets a 1000 close frame with ManualCloseReason and no reconnect
// follows. It returns once every channel goroutine has exited.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	c.stopRetryLocked()
	conn := c.conn
	c.conn = nil
	wasOpen := c.state == StateOpen
	if c.state != StateIdle {
		c.state = StateClosed
	}
	if c.lifeCancel != nil {
		c.lifeCancel()
	}
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, ManualCloseReason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		conn.Close()
	}

	c.wg.Wait()

	if wasOpen {
		c.log.Info(module, "disconnected", map[string]interface{}{"reason": ManualCloseReason})
		c.emit(Event{Kind: EventDisconnected, CloseCode: websocket.CloseNormalClosure, CloseReason: ManualCloseReason})
	}
}

func (c *Channel) stopRetryLocked() {
	if c.retryTimer == nil {
		return
	}
	if c.retryTimer.Stop() {
		c.wg.Done()
	}
	c.retryTimer = nil
}

// Send writes payload as one text frame. Strings and byte slices go out
// as-is; anything else is JSON encoded.
func (c *Channel) Send(payload any) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.log.Warn(module, "send while not connected", nil)
		return ErrNotConnected
	}

	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		data = encoded
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Error(module, "failed to send message", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
