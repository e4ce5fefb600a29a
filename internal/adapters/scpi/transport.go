package scpi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// Config captures the transport details for reaching instruments over
// their LAN/USB-bridge sockets.
type Config struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one instrument endpoint must be configured")
	}
	return nil
}

// TCPResourceManager dials instrument endpoints and hands out
// line-oriented connections. Reset drops every connection it has
// opened, the socket equivalent of rebuilding a VISA resource manager
// after a lost link.
type TCPResourceManager struct {
	cfg Config

	mu    sync.Mutex
	conns []*lineConn
}

func NewResourceManager(cfg Config) (*TCPResourceManager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TCPResourceManager{cfg: cfg}, nil
}

func (m *TCPResourceManager) ListResources() ([]string, error) {
	out := make([]string, len(m.cfg.Endpoints))
	copy(out, m.cfg.Endpoints)
	return out, nil
}

func (m *TCPResourceManager) Open(addr string) (ports.Conn, error) {
	d := net.Dialer{Timeout: m.cfg.DialTimeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, wrapIOError(fmt.Errorf("dial %s: %w", addr, err))
	}

	conn := &lineConn{
		conn:        c,
		r:           bufio.NewReader(c),
		readTimeout: m.cfg.ReadTimeout,
	}

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()
	return conn, nil
}

func (m *TCPResourceManager) Reset() error {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.ResourceManager = (*TCPResourceManager)(nil)

type lineConn struct {
	conn        net.Conn
	r           *bufio.Reader
	readTimeout time.Duration
}

func (c *lineConn) WriteLine(s string) error {
	if _, err := fmt.Fprintf(c.conn, "%s\n", s); err != nil {
		return wrapIOError(err)
	}
	return nil
}

func (c *lineConn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", wrapIOError(err)
	}
	return strings.TrimSpace(line), nil
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

// wrapIOError maps transport failures onto the engine's communication
// error classes so callers can distinguish transient timeouts from a
// lost connection.
func wrapIOError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	}
	return err
}
