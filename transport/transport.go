// Package transport owns the physical serial connection. It exposes the
// open/write/read-chunk/close primitives the reader loop and the command
// path are built on.
//
// Precondition: a Conn may be read by one goroutine while another writes
// to it. The go.bug.st/serial backend guarantees that concurrent Read and
// Write calls on one port do not corrupt each other, which is what makes
// interleaving the reader loop with foreground sends safe.
package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// readTimeout bounds each ReadChunk call, not the whole session. It also
// bounds how long the reader loop takes to observe its stop signal.
const readTimeout = 100 * time.Millisecond

const chunkSize = 256

// Config names the serial device and line speed for a connection attempt.
type Config struct {
	Port     string
	BaudRate int
}

// Validate rejects configs that must never reach the device. An invalid
// baud rate is a local validation error, not a connect failure.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("no serial port selected")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d (must be a positive integer)", c.BaudRate)
	}
	return nil
}

// Conn is an open serial connection.
type Conn interface {
	// Write sends raw bytes. The caller appends the line terminator.
	Write(p []byte) error

	// ReadChunk returns whatever arrived within the read timeout, an
	// empty slice if nothing did. It errors only on genuine I/O failure,
	// never on "no data".
	ReadChunk() ([]byte, error)

	// Close is idempotent; closing an already-closed connection is safe.
	Close() error
}

// Opener is the function signature of Open, so callers can substitute a
// fake transport in tests.
type Opener func(Config) (Conn, error)

// Open opens the named serial device at the configured baud rate with a
// short per-read timeout.
func Open(cfg Config) (Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
	}

	return &serialConn{port: port}, nil
}

type serialConn struct {
	port      serial.Port
	closeOnce sync.Once
	closeErr  error
}

func (c *serialConn) Write(p []byte) error {
	if _, err := c.port.Write(p); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (c *serialConn) ReadChunk() ([]byte, error) {
	buf := make([]byte, chunkSize)
	n, err := c.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("serial read: %w", err)
	}
	// n == 0 with nil error means the read timed out with no data.
	return buf[:n], nil
}

func (c *serialConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}

// PortInfo describes one enumerated serial device.
type PortInfo struct {
	Name         string
	VID          string
	PID          string
	SerialNumber string
}

// ListPorts enumerates the serial devices present on the system.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		info := PortInfo{Name: p.Name}
		if p.IsUSB {
			info.VID = p.VID
			info.PID = p.PID
			info.SerialNumber = p.SerialNumber
		}
		infos = append(infos, info)
	}
	return infos, nil
}
