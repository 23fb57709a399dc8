package relay

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/protocol"
)

// BufferSize is the number of host replies that can be queued before the reader blocks.
const BufferSize = 5

// exitGracePeriod is how long ProcessHost.Close waits for the host to exit after closing its stdin.
var exitGracePeriod = 2 * time.Second

// ErrHostExited indicates the password manager stopped producing frames.
var ErrHostExited = protocol.NewError(protocol.KindUnavailable, "password manager host exited", false, false)

// Host exchanges frames with a native-messaging host.
type Host interface {
	// Send writes one frame to the host.
	Send(payload []byte) error
	// Receive returns a channel carrying every frame the host writes. The channel is closed when
	// the host's output ends.
	Receive() <-chan []byte
	Close() error
}

// StreamHost frames messages over an arbitrary writer/reader pair.
type StreamHost struct {
	w    io.WriteCloser
	recv chan []byte
	stop chan struct{}

	lock   sync.Mutex
	err    error
	closed bool
}

// NewStreamHost starts reading frames from r. Frames are written to w.
func NewStreamHost(w io.WriteCloser, r io.Reader) *StreamHost {
	h := &StreamHost{
		w:    w,
		recv: make(chan []byte, BufferSize),
		stop: make(chan struct{}),
	}
	go h.pump(r)
	return h
}

func (h *StreamHost) pump(r io.Reader) {
	defer close(h.recv)
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !h.stopped() {
				log.Error("Failed to read from password manager: %s", err)
			}
			h.lock.Lock()
			h.err = err
			h.lock.Unlock()
			return
		}
		log.Debug("Host -> relay: %s", payload)
		select {
		case h.recv <- payload:
		case <-h.stop:
			return
		}
	}
}

func (h *StreamHost) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *StreamHost) Send(payload []byte) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return ErrHostExited
	}
	log.Debug("Relay -> host: %s", payload)
	if err := WriteFrame(h.w, payload); err != nil {
		return fmt.Errorf("%w: %s", ErrHostExited, err)
	}
	return nil
}

func (h *StreamHost) Receive() <-chan []byte {
	return h.recv
}

// Err returns the error that ended the host's output, or nil if it ended cleanly or is still
// running.
func (h *StreamHost) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if errors.Is(h.err, io.EOF) {
		return nil
	}
	return h.err
}

// Close closes the writer. Frames that arrive afterwards are dropped.
func (h *StreamHost) Close() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.stop)
	return h.w.Close()
}

// ProcessHost is a StreamHost attached to a child process.
type ProcessHost struct {
	*StreamHost
	cmd *exec.Cmd
}

// StartHost launches the executable named by manifest with the single argument ".", which is how
// browsers launch native-messaging hosts. The host's stderr is discarded.
func StartHost(manifest *Manifest) (*ProcessHost, error) {
	cmd := exec.Command(manifest.Path, ".")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: could not start %s: %s", protocol.ErrHostUnavailable, manifest.Path, err)
	}
	log.Info("Started password manager %s (pid %d)", manifest.Path, cmd.Process.Pid)
	return &ProcessHost{StreamHost: NewStreamHost(stdin, stdout), cmd: cmd}, nil
}

// Close closes the host's stdin, which asks it to exit. Hosts that are still running after a grace
// period are killed.
func (h *ProcessHost) Close() error {
	if err := h.StreamHost.Close(); err != nil {
		log.Warning("Failed to close password manager stdin: %s", err)
	}
	waited := make(chan error, 1)
	go func() {
		waited <- h.cmd.Wait()
	}()
	var err error
	select {
	case err = <-waited:
	case <-time.After(exitGracePeriod):
		log.Warning("Password manager did not exit, killing pid %d", h.cmd.Process.Pid)
		h.cmd.Process.Kill()
		err = <-waited
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Debug("Password manager exited: %s", err)
			return nil
		}
		return err
	}
	return nil
}
