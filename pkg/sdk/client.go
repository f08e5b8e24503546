// Package sdk provides the client side of the slot line protocol and a
// factory that picks a slot store backend from configuration.
package sdk

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
)

const maxAttempts = 3

// ErrRemote is wrapped around every ERR reply that does not map to a kv error.
var ErrRemote = errors.New("remote store error")

// Client is a remote slot store. It implements kv.ListStore.
type Client struct {
	addr       string
	disableTLS bool
	logger     *slog.Logger

	mu     sync.Mutex // Protects concurrent access to the connection
	conn   net.Conn
	reader *bufio.Reader
}

var _ kv.ListStore = (*Client)(nil)

// Connect establishes a connection to a remote slot daemon. Unless
// disableTLS is set the connection is TLS with verification skipped, since
// daemons present a self-signed certificate.
func Connect(addr string, disableTLS bool, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{addr: addr, disableTLS: disableTLS, logger: logger}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if c.disableTLS {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		config := &tls.Config{
			InsecureSkipVerify: true,
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// sendAndReceive writes one command and returns the payload of an OK reply.
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	var resp string

	for i := 0; i < maxAttempts; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", remoteError(strings.TrimSpace(strings.TrimPrefix(resp, "ERR")))
				}
				return strings.TrimSpace(strings.TrimPrefix(resp, "OK")), nil
			}
		}

		c.logger.Warn("slot store request failed, reconnecting", "attempt", i+1, "addr", c.addr, "error", err)

		if closeErr := c.reconnect(); closeErr != nil {
			c.logger.Warn("slot store reconnect failed", "addr", c.addr, "error", closeErr)
		}

		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %w", maxAttempts, err)
}

// remoteError maps protocol error text back onto the kv sentinels.
func remoteError(msg string) error {
	switch msg {
	case kv.ErrKeyNotFound.Error():
		return kv.ErrKeyNotFound
	case kv.ErrInvalidKey.Error():
		return kv.ErrInvalidKey
	}
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

func (c *Client) Get(key string) ([]byte, error) {
	if !kv.ValidKey(key) {
		return nil, kv.ErrInvalidKey
	}
	resp, err := c.sendAndReceive("GET " + key)
	if err != nil {
		return nil, err
	}
	val, err := base64.StdEncoding.DecodeString(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable value", ErrRemote)
	}
	return val, nil
}

func (c *Client) Set(key string, value []byte) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	_, err := c.sendAndReceive(fmt.Sprintf("SET %s %s", key, base64.StdEncoding.EncodeToString(value)))
	return err
}

func (c *Client) Remove(key string) error {
	if !kv.ValidKey(key) {
		return kv.ErrInvalidKey
	}
	_, err := c.sendAndReceive("DEL " + key)
	return err
}

func (c *Client) Keys() ([]string, error) {
	resp, err := c.sendAndReceive("KEYS")
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal([]byte(resp), &keys); err != nil {
		return nil, fmt.Errorf("%w: undecodable key list", ErrRemote)
	}
	return keys, nil
}

// Ping checks the daemon is alive.
func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("%w: unexpected ping reply %q", ErrRemote, resp)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}
