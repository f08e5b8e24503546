// Package server exposes a slot store over a line-oriented TCP protocol so
// several assistant processes can share one slot space.
//
//	GET <key>          -> OK <base64> | ERR key not found
//	SET <key> <base64> -> OK
//	DEL <key>          -> OK
//	KEYS               -> OK <json array>
//	PING               -> PONG
//	QUIT               closes the connection
package server

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

const (
	maxConnections = 100
	idleTimeout    = 30 * time.Second
	connLifetime   = 5 * time.Minute
	// maxLine bounds a single command; history documents travel as one SET.
	maxLine = 16 << 20
)

type Router struct {
	store  kv.ListStore
	cert   *tls.Certificate
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

func NewRouter(s kv.ListStore, logger *slog.Logger) *Router {
	return &Router{store: s, logger: logger}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Warn("accept failed", "error", err)
			continue
		}

		conn.SetDeadline(time.Now().Add(connLifetime))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener; Listen then returns.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

// HandleConnection serves commands on conn until QUIT, EOF or idle timeout.
// It does not close conn.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, 64<<10)

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("connection closed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		switch strings.ToUpper(parts[0]) {
		case "GET":
			if len(parts) != 2 {
				fmt.Fprintln(conn, "ERR usage: GET <key>")
				continue
			}
			val, err := r.store.Get(parts[1])
			if err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			fmt.Fprintln(conn, "OK", base64.StdEncoding.EncodeToString(val))

		case "SET":
			if len(parts) < 2 || len(parts) > 3 {
				fmt.Fprintln(conn, "ERR usage: SET <key> <base64>")
				continue
			}
			// An empty value has no payload field.
			var encoded string
			if len(parts) == 3 {
				encoded = parts[2]
			}
			val, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				fmt.Fprintln(conn, "ERR invalid base64 value")
				continue
			}
			if err := r.store.Set(parts[1], val); err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			fmt.Fprintln(conn, "OK")

		case "DEL":
			if len(parts) != 2 {
				fmt.Fprintln(conn, "ERR usage: DEL <key>")
				continue
			}
			if err := r.store.Remove(parts[1]); err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			fmt.Fprintln(conn, "OK")

		case "KEYS":
			keys, err := r.store.Keys()
			if err != nil {
				fmt.Fprintln(conn, "ERR", err)
				continue
			}
			res, err := json.Marshal(keys)
			if err != nil {
				fmt.Fprintln(conn, "ERR internal error")
				continue
			}
			fmt.Fprintln(conn, "OK", string(res))

		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return

		default:
			fmt.Fprintln(conn, "ERR unknown command")
		}
	}
}

// readLine reads one newline-terminated command of at most maxLine bytes.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		buf = append(buf, chunk...)
		if len(buf) > maxLine {
			return "", fmt.Errorf("command exceeds %d bytes", maxLine)
		}
		if !isPrefix {
			return strings.TrimSpace(string(buf)), nil
		}
	}
}
