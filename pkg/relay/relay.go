package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/connector"
)

const (
	DefaultPort    = connector.DefaultPort
	DefaultTimeout = connector.DefaultTimeout
)

type datagram struct {
	payload []byte
	from    *net.UDPAddr
}

// Relay forwards datagrams received on a loopback UDP socket to a Host.
type Relay struct {
	// Timeout bounds how long the relay waits for the host to answer one request.
	Timeout time.Duration
	// Host receives the requests. It may be set after Listen, so the port is claimed before the
	// password manager is started.
	Host Host

	port  int
	conn  *net.UDPConn
	stale int
}

// New returns a Relay that will listen on 127.0.0.1:port. Port 0 selects an ephemeral port.
func New(host Host, port int, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{Timeout: timeout, Host: host, port: port}
}

// Listen binds the relay's socket. Serve calls Listen if it has not been called already.
func (r *Relay) Listen() error {
	if r.conn != nil {
		return nil
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: r.port})
	if err != nil {
		return fmt.Errorf("could not listen on port %d: %w", r.port, err)
	}
	r.conn = conn
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Relay) Addr() *net.UDPAddr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the socket bound by Listen. It is only needed when Serve is never called.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// Serve relays requests until ctx is cancelled or the host exits. Cancellation is a clean shutdown
// and returns nil once the current request, if any, has been answered or timed out.
func (r *Relay) Serve(ctx context.Context) error {
	if err := r.Listen(); err != nil {
		return err
	}
	defer r.Close()
	if r.Host == nil {
		return errors.New("relay has no host")
	}
	log.Info("Daemon is listening on port: %d", r.Addr().Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	datagrams := make(chan datagram)
	readErrors := make(chan error, 1)
	go r.read(ctx, r.conn, datagrams, readErrors)

	for {
		select {
		case <-ctx.Done():
			log.Info("Relay shutting down")
			return nil
		case err := <-readErrors:
			return err
		case d := <-datagrams:
			if err := r.handle(d); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) read(ctx context.Context, conn *net.UDPConn, datagrams chan<- datagram, readErrors chan<- error) {
	for {
		buffer := make([]byte, connector.MaxDatagramLength)
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				readErrors <- err
			}
			return
		}
		select {
		case datagrams <- datagram{payload: buffer[:n], from: from}:
		case <-ctx.Done():
			return
		}
	}
}

// handle forwards one request and returns its reply to the sender. It only returns an error if the
// host can no longer be used. A request in flight is always completed or timed out; shutdown takes
// effect between requests.
func (r *Relay) handle(d datagram) error {
	log.Debug("Request from %s (%d bytes)", d.from, len(d.payload))
	if err := r.discardStale(); err != nil {
		return err
	}
	if err := r.Host.Send(d.payload); err != nil {
		return err
	}

	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()
	for {
		select {
		case reply, ok := <-r.Host.Receive():
			if !ok {
				return ErrHostExited
			}
			if r.stale > 0 {
				r.stale--
				log.Warning("Discarding late reply to an abandoned request (%d bytes)", len(reply))
				continue
			}
			if _, err := r.conn.WriteToUDP(reply, d.from); err != nil {
				log.Warning("Failed to deliver reply to %s: %s", d.from, err)
			}
			return nil
		case <-timer.C:
			r.stale++
			log.Warning("Password manager did not reply within %s; abandoning request from %s", r.Timeout, d.from)
			return nil
		}
	}
}

// discardStale drops late replies that are already queued so they cannot be mistaken for the
// reply to the next request.
func (r *Relay) discardStale() error {
	for r.stale > 0 {
		select {
		case reply, ok := <-r.Host.Receive():
			if !ok {
				return ErrHostExited
			}
			r.stale--
			log.Warning("Discarding late reply to an abandoned request (%d bytes)", len(reply))
		default:
			return nil
		}
	}
	return nil
}
