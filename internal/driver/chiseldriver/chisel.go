// Package chiseldriver implements core.Driver on top of a chisel
// client: each tunnel URL names a chisel server, and the driver
// establishes a reverse UDP remote through it that carries raw
// packets between the local relay and whatever the chisel server's
// operator points the remote end at.
package chiseldriver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	chclient "github.com/jpillora/chisel/client"
)

// handle is the opaque session object returned through core.Driver.
// lastSeen is updated whenever a packet is written or received and
// read by Timeout; peer is the source address of the most recent
// inbound datagram (the chisel client's forwarding socket), which is
// where outbound packets must be written. Both are accessed without
// the manager's lock so they are kept atomic.
type handle struct {
	client   *chclient.Client
	conn     *net.UDPConn
	cancel   context.CancelFunc
	lastSeen atomic.Int64
	peer     atomic.Pointer[net.UDPAddr]
}

// Driver dials chisel servers named by tunnel URLs of the form
// chisel://[user:pass@]host:port/remotePort, forwarding UDP datagrams
// between a local ephemeral port and remotePort on the far side.
type Driver struct {
	keepAlive time.Duration
	timeout   time.Duration
	log       *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithKeepAlive sets the chisel keep-alive interval (default 25s).
func WithKeepAlive(d time.Duration) Option { return func(drv *Driver) { drv.keepAlive = d } }

// WithTimeout sets how long a session may go without traffic before
// Timeout reports it as dead (default 30s).
func WithTimeout(d time.Duration) Option { return func(drv *Driver) { drv.timeout = d } }

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option { return func(drv *Driver) { drv.log = log } }

// New constructs a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		keepAlive: 25 * time.Second,
		timeout:   30 * time.Second,
		log:       slog.Default().With("component", "chisel-driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// parsedURL holds the pieces ParseURL validates and Open reuses.
type parsedURL struct {
	server     string
	auth       string
	remotePort int
}

func parse(rawURL string) (parsedURL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return parsedURL{}, fmt.Errorf("chiseldriver: %w", err)
	}
	if u.Scheme != "chisel" {
		return parsedURL{}, fmt.Errorf("chiseldriver: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return parsedURL{}, fmt.Errorf("chiseldriver: missing host")
	}
	portStr := u.Path
	for len(portStr) > 0 && portStr[0] == '/' {
		portStr = portStr[1:]
	}
	remotePort, err := strconv.Atoi(portStr)
	if err != nil || remotePort <= 0 || remotePort > 65535 {
		return parsedURL{}, fmt.Errorf("chiseldriver: invalid remote port %q", portStr)
	}

	var auth string
	if u.User != nil {
		auth = u.User.String()
	}

	return parsedURL{
		server:     "https://" + u.Host,
		auth:       auth,
		remotePort: remotePort,
	}, nil
}

// ParseURL performs the syntactic validation only; it opens nothing.
func (d *Driver) ParseURL(rawURL string) error {
	_, err := parse(rawURL)
	return err
}

// Open dials the chisel server named by url and establishes the
// reverse UDP remote. It blocks until the tunnel is up or
// establishment fails, and is safe to call without the manager lock.
func (d *Driver) Open(ctx context.Context, rawURL string) (any, error) {
	p, err := parse(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, fmt.Errorf("chiseldriver: reserve local udp port: %w", err)
	}
	localPort := conn.LocalAddr().(*net.UDPAddr).Port

	client, err := chclient.NewClient(&chclient.Config{
		Server: p.server,
		Auth:   p.auth,
		Remotes: []string{
			fmt.Sprintf("R:127.0.0.1:%d:127.0.0.1:%d/udp", localPort, p.remotePort),
		},
		KeepAlive: d.keepAlive,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("chiseldriver: configure client: %w", err)
	}

	if err := client.Start(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chiseldriver: start: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	h := &handle{client: client, conn: conn, cancel: cancel}
	h.lastSeen.Store(time.Now().UnixNano())

	go h.drain(sessionCtx, d.log.With("url", rawURL))

	d.log.Info("tunnel open", "url", rawURL, "local_port", localPort, "remote_port", p.remotePort)
	return h, nil
}

// drain discards inbound datagrams but records their arrival as
// liveness: any traffic, not just application payload, is proof the
// path is up.
func (h *handle) drain(ctx context.Context, log *slog.Logger) {
	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return
		}
		h.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, from, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Debug("read error", "error", err)
			continue
		}
		if n > 0 {
			h.lastSeen.Store(time.Now().UnixNano())
			h.peer.Store(from)
		}
	}
}

// Close tears down the session. A nil handle is a no-op.
func (d *Driver) Close(h any) {
	if h == nil {
		return
	}
	hd := h.(*handle)
	hd.cancel()
	hd.conn.Close()
	hd.client.Close()
}

// Write sends one packet as a single UDP datagram back through the
// chisel forwarding socket. Until at least one inbound datagram has
// arrived the peer address is unknown and the write fails; the
// higher-level retransmission path turns that into repeat > 0 on the
// next submission.
func (d *Driver) Write(h any, packet []byte) error {
	hd := h.(*handle)
	peer := hd.peer.Load()
	if peer == nil {
		return fmt.Errorf("chiseldriver: no peer yet, tunnel has carried no inbound traffic")
	}
	_, err := hd.conn.WriteToUDP(packet, peer)
	if err == nil {
		hd.lastSeen.Store(time.Now().UnixNano())
	}
	return err
}

// MTU returns configuredMTU unchanged; chisel's UDP remotes do not
// constrain datagram size below what the kernel already enforces.
func (d *Driver) MTU(h any, configuredMTU int) int {
	if h == nil {
		return 0
	}
	return configuredMTU
}

// FragmentationRequired logs the oversize packet. There is no
// downstream ICMP path from this driver; the notification exists so
// the caller's intent is visible in the logs.
func (d *Driver) FragmentationRequired(h any, mtu int, original []byte) {
	d.log.Warn("packet exceeds mtu, fragmentation required", "mtu", mtu, "packet_len", len(original))
}

// Timeout reports whether the session has been silent for longer than
// the configured timeout.
func (d *Driver) Timeout(h any, now int64) bool {
	if h == nil {
		return true
	}
	hd := h.(*handle)
	return time.Duration(now-hd.lastSeen.Load()) > d.timeout
}
