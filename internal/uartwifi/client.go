package uartwifi

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/vk/monoxbridge/internal/ctxlog"
)

// defaultExchangeTimeout bounds a full request/reply exchange when the
// caller's context has no earlier deadline. The board usually answers
// within a second; five matches how long it is worth waiting for a reply
// on its notoriously weak wifi.
const defaultExchangeTimeout = 5 * time.Second

// Client talks to a single printer. It is stateless: every operation dials
// a fresh connection and closes it before returning, because the board
// supports only a few sockets and broadcasts every reply to all of them.
type Client struct {
	host    string
	port    int
	timeout time.Duration
	dialer  net.Dialer
}

// NewClient builds a client for the printer at host. If host carries an
// explicit `host:port`, that port wins over the port argument; pass
// DefaultPort otherwise. The embedded form is what the simulator-backed
// tests use, since the simulator picks a random port.
func NewClient(host string, port int) *Client {
	if h, p, err := net.SplitHostPort(host); err == nil {
		if parsed, err := strconv.Atoi(p); err == nil {
			host, port = h, parsed
		}
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Client{host: host, port: port, timeout: defaultExchangeTimeout}
}

// Addr returns the printer's dial address.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Host returns the printer's host without the port.
func (c *Client) Host() string {
	return c.host
}

// Status fetches the current print state. Time fields keep their wire
// units until NormalizeUnits is applied with the model's unit convention.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	rec, err := c.exchange(ctx, "getstatus,\r\n", "getstatus")
	if err != nil {
		return nil, err
	}
	return parseStatus(rec)
}

// SysInfo fetches the printer's identity record.
func (c *Client) SysInfo(ctx context.Context) (*SysInfo, error) {
	rec, err := c.exchange(ctx, "sysinfo,\r\n", "sysinfo")
	if err != nil {
		return nil, err
	}
	return parseSysInfo(rec)
}

// Files lists the job files on the printer's storage.
func (c *Client) Files(ctx context.Context) ([]FileEntry, error) {
	rec, err := c.exchange(ctx, "getfile,\r\n", "getfile")
	if err != nil {
		return nil, err
	}
	return parseFiles(rec), nil
}

// Wifi returns the SSID the board is associated with.
func (c *Client) Wifi(ctx context.Context) (string, error) {
	rec, err := c.exchange(ctx, "getwifi,\r\n", "getwifi")
	if err != nil {
		return "", err
	}
	if len(rec.fields) == 0 {
		return "", fmt.Errorf("uartwifi: empty getwifi record")
	}
	return strings.TrimSpace(rec.fields[0]), nil
}

// Pause suspends the running job.
func (c *Client) Pause(ctx context.Context) (*Ack, error) {
	return c.command(ctx, "gopause")
}

// Resume continues a paused job.
func (c *Client) Resume(ctx context.Context) (*Ack, error) {
	return c.command(ctx, "goresume")
}

// StopPrint aborts the running job.
func (c *Client) StopPrint(ctx context.Context) (*Ack, error) {
	return c.command(ctx, "gostop")
}

// Print starts the named job file. The printer expects the internal name
// from a Files listing.
func (c *Client) Print(ctx context.Context, internalName string) (*Ack, error) {
	rec, err := c.exchange(ctx, fmt.Sprintf("goprint,%s,end\r\n", internalName), "goprint")
	if err != nil {
		return nil, err
	}
	return parseAck(rec), nil
}

func (c *Client) command(ctx context.Context, verb string) (*Ack, error) {
	rec, err := c.exchange(ctx, verb+",\r\n", verb)
	if err != nil {
		return nil, err
	}
	return parseAck(rec), nil
}

// exchange performs one dial/write/read cycle and returns the first record
// answering verb. The connection is always closed before returning.
func (c *Client) exchange(ctx context.Context, request, verb string) (record, error) {
	logger := ctxlog.FromContext(ctx).With("printer", c.Addr(), "verb", verb)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		logger.Debug("Dial failed.", "error", err)
		return record{}, fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return record{}, fmt.Errorf("uartwifi: set deadline: %w", err)
	}
	if _, err := conn.Write([]byte(request)); err != nil {
		return record{}, fmt.Errorf("%w: write: %v", ErrOffline, err)
	}

	// Replies to other clients may arrive first; keep reading until the
	// record we asked for shows up or the deadline cuts us off.
	var buf strings.Builder
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if rec, ok := findRecord(buf.String(), verb); ok {
				logger.Debug("Record received.", "bytes", buf.Len())
				return rec, nil
			}
		}
		if err != nil {
			logger.Debug("Read ended without a matching record.", "error", err)
			return record{}, fmt.Errorf("%w: %s", ErrNoReply, verb)
		}
	}
}
