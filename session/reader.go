package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labshed/gpibctl/framer"
	"github.com/labshed/gpibctl/transport"
)

// readLoop pulls chunks from the transport, frames them into lines and
// classifies each one. It re-checks the stop signal every iteration, so
// shutdown latency is bounded by one read-timeout interval. A trailing
// unterminated line at shutdown is discarded with the framer.
func (c *Controller) readLoop(conn transport.Conn, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	c.emitDebug("reader loop started")

	var f framer.Framer
	for {
		select {
		case <-stop:
			c.emitDebug("reader loop stopped")
			return
		default:
		}

		chunk, err := conn.ReadChunk()
		if err != nil {
			// Closing the port from Disconnect makes the pending read
			// fail; that is a normal stop, not an I/O failure.
			select {
			case <-stop:
				c.emitDebug("reader loop stopped")
			default:
				c.readFailed(err)
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}

		for _, line := range f.Feed(chunk) {
			c.classify(line)
		}
	}
}

// classify routes one complete line: a parseable number during an active
// measurement session becomes a sample, everything else is a received
// line event. Undecodable bytes are reported as data, never escalated.
func (c *Controller) classify(line framer.Line) {
	if line.Kind == framer.Undecodable {
		c.emit(event{kind: evReceived, text: fmt.Sprintf("undecodable bytes: %x", line.Raw)})
		return
	}

	c.mu.Lock()
	measuring := c.measuring
	started := c.started
	c.mu.Unlock()

	if measuring {
		if v, err := strconv.ParseFloat(strings.TrimSpace(line.Text), 64); err == nil {
			s := Sample{Elapsed: time.Since(started).Seconds(), Value: v}
			c.mu.Lock()
			c.samples = append(c.samples, s)
			c.mu.Unlock()
			c.emit(event{kind: evMeasurement, sample: s})
			return
		}
		c.emitDebug(fmt.Sprintf("could not parse %q as a measurement", line.Text))
	}

	c.emit(event{kind: evReceived, text: line.Text})
}
