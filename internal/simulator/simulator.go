// Package simulator implements a fake Mono X printer speaking the uart-wifi
// protocol. It backs the protocol and poller tests and doubles as a local
// development target when no hardware is around.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/vk/monoxbridge/internal/ctxlog"
)

// Identity is the sysinfo record the simulator reports.
type Identity struct {
	Model    string
	Firmware string
	Serial   string
	WifiSSID string
}

// DefaultIdentity mirrors a stock Photon Mono X 6K.
var DefaultIdentity = Identity{
	Model:    "Photon Mono X 6K",
	Firmware: "V0.2.2",
	Serial:   "0000170300020034",
	WifiSSID: "SkyNet",
}

// Simulator is a TCP server that answers getstatus, sysinfo, getfile,
// goprint, gostop and shutdown the way the real board does. goprint flips
// it into a printing state whose status record carries the full attribute
// set; gostop flips it back.
type Simulator struct {
	identity Identity

	mu       sync.Mutex
	printing bool
	file     string
	listener net.Listener
	closed   bool
}

// New builds a simulator with the given identity.
func New(identity Identity) *Simulator {
	return &Simulator{identity: identity}
}

// Start begins listening on addr (use "127.0.0.1:0" for a random port) and
// serves connections until Shutdown or a `shutdown` command. It returns as
// soon as the listener is ready.
func (s *Simulator) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("simulator: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go s.serve(ctx, listener)
	return nil
}

// Addr returns the address the simulator is listening on.
func (s *Simulator) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the listener. In-flight connections finish on their own.
func (s *Simulator) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownLocked()
}

func (s *Simulator) shutdownLocked() {
	if s.closed || s.listener == nil {
		return
	}
	s.closed = true
	s.listener.Close()
}

func (s *Simulator) serve(ctx context.Context, listener net.Listener) {
	logger := ctxlog.FromContext(ctx).With("component", "simulator", "addr", listener.Addr().String())
	logger.Debug("Fake printer listening.")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Debug("Accept failed.", "error", err)
			}
			return
		}
		go s.handle(ctx, conn)
	}
}

func (s *Simulator) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := ctxlog.FromContext(ctx).With("component", "simulator")

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		request := strings.TrimSpace(string(buf[:n]))
		verb, arg := splitRequest(request)
		logger.Debug("Request received.", "verb", verb)

		switch verb {
		case "getstatus":
			fmt.Fprint(conn, s.statusRecord())
		case "sysinfo":
			id := s.identity
			fmt.Fprintf(conn, "sysinfo,%s,%s,%s,%s,end", id.Model, id.Firmware, id.Serial, id.WifiSSID)
		case "getfile":
			fmt.Fprint(conn, "getfile,Widget.pwmb/0.pwmb,end")
		case "getwifi":
			fmt.Fprintf(conn, "getwifi,%s,end", s.identity.WifiSSID)
		case "goprint":
			s.setPrinting(true, arg)
			fmt.Fprint(conn, "goprint,OK,end")
		case "gostop":
			s.setPrinting(false, "")
			fmt.Fprint(conn, "gostop,OK,end")
		case "shutdown":
			fmt.Fprint(conn, "shutdown,OK,end")
			s.Shutdown()
			return
		default:
			fmt.Fprintf(conn, "%s,ERROR,end", verb)
		}
	}
}

// statusRecord renders the current state the way the firmware does: a bare
// state when idle, the full attribute set while printing.
func (s *Simulator) statusRecord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.printing {
		return "getstatus,stop\r\n,end"
	}
	file := s.file
	if file == "" {
		file = "0.pwmb"
	}
	return fmt.Sprintf("getstatus,print,Widget.pwmb/%s,2338,88.2,196,1260,9739,~178mL,UV,39,end", file)
}

func (s *Simulator) setPrinting(printing bool, file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printing = printing
	s.file = file
}

func splitRequest(request string) (verb, arg string) {
	parts := strings.Split(request, ",")
	verb = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return verb, arg
}
