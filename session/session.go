// Package session holds the connection lifecycle state machine, the
// background reader loop, and the measurement session. It is the only
// writer of the connection state and the only caller of ReadChunk.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labshed/gpibctl/catalog"
	"github.com/labshed/gpibctl/encoder"
	"github.com/labshed/gpibctl/transport"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("unknown (%d)", int(s))
}

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrEmptyCommand     = errors.New("no command entered")
)

// Sample is one numeric measurement: seconds since the session started
// and the parsed value.
type Sample struct {
	Elapsed float64
	Value   float64
}

// Sink receives UI-facing events. All calls arrive from a single dispatch
// goroutine in the order the events were produced; implementations never
// see concurrent calls.
type Sink interface {
	LogDebug(text string)
	LogReceived(text string)
	OnMeasurement(s Sample)
	OnConnectionState(st State)
}

// stopWait bounds how long Disconnect waits for the reader loop to
// observe the stop signal. If the loop is stuck the port is closed
// anyway, which forces any pending read to fail.
const stopWait = 500 * time.Millisecond

type eventKind int

const (
	evDebug eventKind = iota
	evReceived
	evMeasurement
	evState
)

type event struct {
	kind   eventKind
	text   string
	sample Sample
	state  State
}

// Controller drives the connection state machine and owns the reader
// loop. State transitions happen only inside its methods.
type Controller struct {
	cat    *catalog.Catalog
	sink   Sink
	opener transport.Opener

	mu         sync.Mutex
	state      State
	conn       transport.Conn
	stop       chan struct{}
	readerDone chan struct{}

	measuring bool
	label     string
	started   time.Time
	samples   []Sample

	events       chan event
	quit         chan struct{}
	dispatchDone chan struct{}
}

// New creates a controller delivering events to sink. Pass transport.Open
// as the opener; tests substitute a fake.
func New(cat *catalog.Catalog, sink Sink, opener transport.Opener) *Controller {
	c := &Controller{
		cat:          cat,
		sink:         sink,
		opener:       opener,
		events:       make(chan event, 256),
		quit:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// dispatch is the single consumer of the event channel. It hands each
// event to the sink in order.
func (c *Controller) dispatch() {
	defer close(c.dispatchDone)
	for {
		select {
		case ev := <-c.events:
			c.deliver(ev)
		case <-c.quit:
			// Drain what is already queued, then stop.
			for {
				select {
				case ev := <-c.events:
					c.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (c *Controller) deliver(ev event) {
	switch ev.kind {
	case evDebug:
		c.sink.LogDebug(ev.text)
	case evReceived:
		c.sink.LogReceived(ev.text)
	case evMeasurement:
		c.sink.OnMeasurement(ev.sample)
	case evState:
		c.sink.OnConnectionState(ev.state)
	}
}

func (c *Controller) emit(ev event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) emitDebug(text string) {
	c.emit(event{kind: evDebug, text: text})
}

// setState must be called with c.mu held.
func (c *Controller) setState(st State) {
	c.state = st
	c.emit(event{kind: evState, state: st})
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect validates cfg, opens the transport and starts the reader loop.
// A connect while already connected is a no-op.
func (c *Controller) Connect(cfg transport.Config) error {
	c.mu.Lock()
	if c.state == Connected {
		c.mu.Unlock()
		c.emitDebug("connect requested but already connected")
		return ErrAlreadyConnected
	}
	c.setState(Connecting)
	c.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		c.mu.Lock()
		c.setState(Disconnected)
		c.mu.Unlock()
		c.emitDebug("connect rejected: " + err.Error())
		return err
	}

	c.emitDebug(fmt.Sprintf("connecting to %s at %d baud", cfg.Port, cfg.BaudRate))
	conn, err := c.opener(cfg)
	if err != nil {
		c.mu.Lock()
		c.setState(Disconnected)
		c.mu.Unlock()
		c.emitDebug("connect failed: " + err.Error())
		return fmt.Errorf("connect %s: %w", cfg.Port, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.stop = make(chan struct{})
	c.readerDone = make(chan struct{})
	c.setState(Connected)
	stop, done := c.stop, c.readerDone
	c.mu.Unlock()

	go c.readLoop(conn, stop, done)
	return nil
}

// Disconnect stops the reader loop cooperatively and closes the
// transport. A disconnect while not connected is a no-op.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		c.emitDebug("disconnect requested but not connected")
		return ErrNotConnected
	}
	conn := c.conn
	done := c.readerDone
	close(c.stop)
	c.conn = nil
	c.endSessionLocked()
	c.setState(Disconnected)
	c.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopWait):
		c.emitDebug("warning: reader loop did not stop in time, closing port anyway")
	}

	if err := conn.Close(); err != nil {
		c.emitDebug("error closing serial port: " + err.Error())
		return fmt.Errorf("close serial port: %w", err)
	}
	c.emitDebug("serial port closed")
	return nil
}

// readFailed is the reader loop's exit path on an I/O error: it forces
// the disconnect transition and surfaces the failure once.
func (c *Controller) readFailed(err error) {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.endSessionLocked()
	c.setState(Disconnected)
	c.mu.Unlock()

	c.emitDebug("serial read failed, disconnecting: " + err.Error())
	conn.Close()
}

// SendCommand encodes the request and writes it to the wire. A write
// failure is reported but does not change the connection state; only
// reader-loop failures force a disconnect. Sending a measurement-tagged
// subcommand restarts the measurement session.
func (c *Controller) SendCommand(req encoder.Request) error {
	wire, sub, err := encoder.Encode(c.cat, req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.Write([]byte(wire + "\n")); err != nil {
		c.emitDebug("error sending command: " + err.Error())
		return fmt.Errorf("send %q: %w", wire, err)
	}
	c.emitDebug(fmt.Sprintf("sent command: %q", wire))

	c.mu.Lock()
	if sub.Measurement {
		c.measuring = true
		c.label = sub.Label
		c.started = time.Now()
		c.samples = nil
	} else {
		c.endSessionLocked()
	}
	c.mu.Unlock()
	return nil
}

// SendRaw writes an operator-typed line to the wire, appending the
// terminator. It does not touch the measurement session.
func (c *Controller) SendRaw(text string) error {
	if text == "" {
		return ErrEmptyCommand
	}

	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.Write([]byte(text + "\n")); err != nil {
		c.emitDebug("error sending serial command: " + err.Error())
		return fmt.Errorf("send %q: %w", text, err)
	}
	c.emitDebug(fmt.Sprintf("sent serial command: %q", text))
	return nil
}

// endSessionLocked stops the measurement session. Must be called with
// c.mu held.
func (c *Controller) endSessionLocked() {
	c.measuring = false
}

// ClearSamples discards the measurement series and restarts the session
// clock.
func (c *Controller) ClearSamples() {
	c.mu.Lock()
	c.samples = nil
	c.started = time.Now()
	c.mu.Unlock()
	c.emitDebug("cleared measurement data")
}

// Samples returns a copy of the measurement series.
func (c *Controller) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// MeasurementLabel returns the label of the current or most recent
// measurement session, empty if none was started.
func (c *Controller) MeasurementLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// Close disconnects if needed and stops event dispatch. The controller
// must not be used afterwards.
func (c *Controller) Close() {
	if err := c.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		c.emitDebug("error during shutdown: " + err.Error())
	}
	close(c.quit)
	<-c.dispatchDone
}
