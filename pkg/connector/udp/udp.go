// Package udp implements connector.Connector over a loopback UDP socket.
//
// Each Exchange binds a fresh ephemeral socket, sends one datagram to the relay daemon and reads one
// datagram back. A reply that arrives after its Exchange gave up is delivered to a closed port and
// can never be read as the reply to a later request. The socket is connected to the daemon's
// address, so the kernel drops datagrams from other peers and reports ECONNREFUSED when nothing
// listens on the daemon port.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/connector"
	"github.com/ipass-go/ipass/pkg/protocol"
)

// Connection is a connector.Connector bound to a relay daemon address.
type Connection struct {
	remote  *net.UDPAddr
	timeout time.Duration
	lock    sync.Mutex
	closed  bool
}

// Dial returns a Connection to the relay daemon listening on 127.0.0.1:port. A zero timeout selects
// connector.DefaultTimeout.
func Dial(port int, timeout time.Duration) (*Connection, error) {
	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	return DialAddr(remote, timeout)
}

// DialAddr is like Dial but accepts an arbitrary daemon address.
func DialAddr(remote *net.UDPAddr, timeout time.Duration) (*Connection, error) {
	if timeout <= 0 {
		timeout = connector.DefaultTimeout
	}
	if remote == nil || remote.Port <= 0 || remote.Port > 65535 {
		return nil, fmt.Errorf("invalid daemon address %v", remote)
	}
	return &Connection{remote: remote, timeout: timeout}, nil
}

// RemoteAddr returns the daemon's address.
func (c *Connection) RemoteAddr() *net.UDPAddr {
	return c.remote
}

func (c *Connection) Exchange(ctx context.Context, request []byte) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil, net.ErrClosed
	}
	if len(request) > connector.MaxDatagramLength {
		return nil, fmt.Errorf("request of %d bytes exceeds datagram limit", len(request))
	}

	conn, err := net.DialUDP("udp4", nil, c.remote)
	if err != nil {
		return nil, fmt.Errorf("could not bind client socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	// Unblock the read if ctx is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	log.Debug("TX %s -> %s: %s", conn.LocalAddr(), c.remote, request)
	if _, err := conn.Write(request); err != nil {
		return nil, c.classify(ctx, err)
	}

	buffer := make([]byte, connector.MaxDatagramLength)
	n, err := conn.Read(buffer)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	log.Debug("RX %s: %s", c.remote, buffer[:n])
	return buffer[:n], nil
}

func (c *Connection) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", protocol.ErrTimeout, ctx.Err())
		}
		return ctx.Err()
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w after %s", protocol.ErrTimeout, c.timeout)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w on %s (is `ipass start` running?)", protocol.ErrNotConnected, c.remote)
	}
	return err
}

func (c *Connection) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return nil
}
