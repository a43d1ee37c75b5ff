// Package forwarder hands accepted frame payloads to the downstream
// consumer as a raw byte stream. Delivery is fire-and-forget: no retry, no
// backoff, no queueing; a frame that fails to forward is dropped from the
// forwarding path.
package forwarder

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// Config for a Forwarder. KeepConnection switches from the default
// one-connection-per-frame mode to a single persistent connection.
type Config struct {
	Host           string
	Port           int
	KeepConnection bool
	DialTimeout    time.Duration
}

// Forwarder writes payloads to a fixed TCP endpoint. It is owned by the
// acquisition loop and is not safe for concurrent use.
type Forwarder struct {
	addr    string
	keep    bool
	timeout time.Duration
	dialer  net.Dialer

	conn net.Conn // persistent mode only
}

func New(cfg Config) *Forwarder {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Forwarder{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		keep:    cfg.KeepConnection,
		timeout: timeout,
		dialer:  net.Dialer{Timeout: timeout},
	}
}

// Send delivers one payload. An empty payload is a no-op: nothing is dialed
// and nothing is written. Errors are per-frame; the caller reports them and
// keeps acquiring.
func (f *Forwarder) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if f.keep {
		return f.sendPersistent(payload)
	}

	conn, err := f.dialer.Dial("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", f.addr, err)
	}
	if err = f.write(conn, payload); err != nil {
		_ = conn.Close()
		return err
	}
	zap.S().Debugf("forwarded %d byte(s) to %s, payload digest %016x", len(payload), f.addr, xxh3.Hash(payload))
	if err = conn.Close(); err != nil {
		return fmt.Errorf("closing connection to %s: %w", f.addr, err)
	}
	return nil
}

// sendPersistent reuses one connection across frames, redialing once when a
// write fails on a connection the peer may have dropped.
func (f *Forwarder) sendPersistent(payload []byte) error {
	if f.conn == nil {
		conn, err := f.dialer.Dial("tcp", f.addr)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", f.addr, err)
		}
		f.conn = conn
	}

	if err := f.write(f.conn, payload); err != nil {
		_ = f.conn.Close()
		f.conn = nil

		conn, derr := f.dialer.Dial("tcp", f.addr)
		if derr != nil {
			return fmt.Errorf("reconnecting to %s after write failure (%s): %w", f.addr, err, derr)
		}
		f.conn = conn
		if err = f.write(f.conn, payload); err != nil {
			_ = f.conn.Close()
			f.conn = nil
			return err
		}
	}

	zap.S().Debugf("forwarded %d byte(s) to %s, payload digest %016x", len(payload), f.addr, xxh3.Hash(payload))
	return nil
}

func (f *Forwarder) write(conn net.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(f.timeout)); err != nil {
		return fmt.Errorf("setting write deadline on %s: %w", f.addr, err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("writing %d byte(s) to %s: %w", len(payload), f.addr, err)
	}
	return nil
}

// Close releases the persistent connection, if any.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	if err != nil {
		return fmt.Errorf("closing connection to %s: %w", f.addr, err)
	}
	return nil
}
