package castv2

import (
	"crypto/tls"
	"net"

	"github.com/rs/zerolog"
)

// Listener accepts CastV2 TLS connections and spawns one Session per
// accepted connection (spec.md §4.6, §5).
type Listener struct {
	log      zerolog.Logger
	ln       net.Listener
	newCB    func() Callbacks
	onAccept func(sessionID string, conn net.Conn)
}

// NewListener wraps addr in a TLS listener using certPEM/keyPEM, the
// self-signed certificate minted by internal/certissuer. It does not
// request a client certificate — CastV2 senders never present one
// (spec.md §4.6: "TLS with no client certificate requirement").
func NewListener(addr string, certPEM, keyPEM []byte, log zerolog.Logger, newCB func() Callbacks) (*Listener, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
		MinVersion:   tls.VersionTLS12,
	}
	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return nil, err
	}
	return &Listener{log: log, ln: ln, newCB: newCB}, nil
}

// Serve accepts connections until the listener is closed, spawning one
// goroutine per connection. Accept timeouts are retried silently; any
// other accept error (such as a closed listener) ends the loop and is
// returned.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		sess := NewSession(conn, l.log, l.newCB())
		if l.onAccept != nil {
			l.onAccept(sess.sessionID, conn)
		}
		go sess.Serve()
	}
}

// OnAccept registers a hook invoked synchronously right after a session is
// minted but before its goroutine starts, so callers can record
// sessionID -> conn for out-of-band bookkeeping if needed.
func (l *Listener) OnAccept(cb func(sessionID string, conn net.Conn)) {
	l.onAccept = cb
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
