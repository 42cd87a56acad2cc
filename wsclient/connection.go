// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wsclient

import (
	"context"
	"encoding/binary"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// State is one of the three flags spec.md §3/§4.4 names for a Connection.
type State int

const (
	StateClosed State = iota
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Conn is the owning object described in spec.md §3: Transport, receive
// buffer, the FIFO of received non-control frames awaiting assembly, the
// handshake key, the dialed URL, state flags, optional callbacks, and an
// error slot. It is not safe for concurrent use by design — spec.md §5
// treats two concurrent callers on one Conn as a usage error, the same
// single-threaded-per-connection model the teacher's *client assumes under
// its own lock discipline (which we don't need here: there is no reader
// goroutine racing the caller).
type Conn struct {
	transport *Transport
	rbuf      rbuffer
	frames    []*Frame
	key       string
	url       *url.URL
	state     State
	cfg       *Config
	log       LeveledLogger
	id        string
	lastErr   error
}

// ID returns the short correlation id used as this connection's log scope.
func (c *Conn) ID() string { return c.id }

// State reports the connection's current lifecycle flag.
func (c *Conn) State() State { return c.state }

// LastError returns the most recent error recorded on this connection's
// error slot — the connection-scoped alternative to thread-local storage
// spec.md §9 explicitly allows ("an error-carrying connection field").
func (c *Conn) LastError() error { return c.lastErr }

func (c *Conn) setErr(err error) error {
	c.lastErr = err
	return err
}

// hostPortTLS implements the URL contract spec.md §6 describes: "wss"
// implies TLS and default port 443, "ws" implies plain TCP and default
// port 80, and a missing port falls back to those defaults.
func hostPortTLS(u *url.URL) (host string, port int, useTLS bool, err error) {
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "ws":
		useTLS = false
		port = 80
	case "wss":
		useTLS = true
		port = 443
	default:
		return "", 0, false, newErr(KindFatal, "unsupported scheme %q, want ws or wss", u.Scheme)
	}
	host = u.Hostname()
	if host == "" {
		return "", 0, false, newErr(KindFatal, "url has no host")
	}
	if p := u.Port(); p != "" {
		n, perr := strconv.Atoi(p)
		if perr != nil {
			return "", 0, false, wrapErr(KindFatal, perr, "invalid port %q", p)
		}
		port = n
	}
	return host, port, useTLS, nil
}

// Connect performs spec.md's full connect path: resolve the transport
// target from u, establish TCP/TLS, run the optional handshake override,
// then the RFC 6455 client opening handshake. On success the returned Conn
// is in StateConnected. On any failure the transport (if created) is
// closed before returning, and the error carries the §7 Kind that caused
// the failure.
func Connect(ctx context.Context, u *url.URL, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	host, port, useTLS, err := hostPortTLS(u)
	if err != nil {
		return nil, err
	}

	id := newConnID()
	log := cfg.loggerFactory().NewLogger(id)
	log.Debugf("dialing %s", u.String())

	transport, err := dialTransport(ctx, host, port, useTLS, cfg.TLSConfig, cfg.dialTimeout(), log)
	if err != nil {
		return nil, err
	}

	if cfg.OnHandshake != nil {
		if err := cfg.OnHandshake(transport); err != nil {
			_ = transport.Close()
			return nil, wrapErr(KindHandshake, err, "handshake override")
		}
	}

	c := &Conn{
		transport: transport,
		url:       u,
		cfg:       cfg,
		log:       log,
		id:        id,
		state:     StateClosed,
	}

	transport.SetTimeout(cfg.handshakeTimeout())
	if err := c.handshake(u, cfg.Origin, cfg.ExtraHeaders); err != nil {
		return nil, c.setErr(err)
	}
	transport.SetTimeout(cfg.ioTimeout())
	c.state = StateConnected
	log.Debugf("connected")
	return c, nil
}

// isOpen reports whether the engine should still attempt to read more
// bytes off the transport. Once a CLOSE frame has been observed (and
// replied to) the connection stays in StateClosing without further reads;
// only a local Disconnect() moves it to StateClosed, per spec.md §3's
// lifecycle ("to CLOSED on local teardown or fatal transport error").
func (c *Conn) isOpen() bool {
	return c.state == StateConnected
}

// ingress is the pure drainer over the receive buffer described in
// spec.md §4.4: decode and dispatch frames until the buffer holds no
// complete frame, returning the total bytes consumed this call.
func (c *Conn) ingress() (int, error) {
	total := 0
	for c.rbuf.len() > 0 {
		f, n, err := decodeFrame(c.rbuf.bytes(), c.cfg.maxFramePayload())
		if err != nil {
			return total, err
		}
		if f == nil {
			return total, nil
		}
		c.dispatch(f)
		c.rbuf.drain(n)
		total += n
	}
	return total, nil
}

// dispatch implements spec.md §4.4's per-opcode table. Control-frame I/O
// errors here are best-effort per spec.md §7 and are only logged, never
// propagated to the caller's in-flight receive_frame/receive_message call.
func (c *Conn) dispatch(f *Frame) {
	switch f.Opcode {
	case OpText, OpBinary, OpContinuation:
		c.frames = append(c.frames, f)

	case OpClose:
		c.state = StateClosing
		status, reason := parseCloseFrame(f.Payload)
		if reason != "" && !utf8.ValidString(reason) {
			c.log.Warnf("close frame reason is not valid utf8, ignoring it")
		}
		c.log.Debugf("received close frame, status=%d", status)
		reply := &Frame{Fin: true, Opcode: OpClose, Payload: encodeCloseStatus(1000)}
		if err := c.sendFrame(reply); err != nil {
			c.log.Warnf("best-effort close reply failed: %v", err)
		}

	case OpPing:
		pong := &Frame{Fin: true, Opcode: OpPong, Payload: f.Payload}
		if err := c.sendFrame(pong); err != nil {
			c.log.Warnf("best-effort pong reply failed: %v", err)
		}

	case OpPong:
		// Nothing to do.

	default:
		c.log.Tracef("discarding frame with unknown opcode %d", f.Opcode)
	}
}

// parseCloseFrame extracts the 2-byte status and optional UTF-8 reason
// from a CLOSE frame's payload, per spec.md §6's CLOSE payload format.
func parseCloseFrame(payload []byte) (status int, reason string) {
	if len(payload) < 2 {
		return 1005, "" // no status code present
	}
	status = int(binary.BigEndian.Uint16(payload[:2]))
	reason = string(payload[2:])
	return status, reason
}

// encodeCloseStatus builds a 2-byte big-endian close status with no
// reason, spec.md §6: "generated frames carry a 2-byte big-endian status
// code 1000 (normal closure) and no reason."
func encodeCloseStatus(status uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, status)
	return b
}

// ReceiveFrame is the blocking-with-deadline accessor from spec.md §4.4:
// it returns the next non-control frame, driving ingress as needed. A
// steady-state timeout is reported as an error with Kind KindTimeout and
// does not close the connection; any other transport or protocol error is
// fatal and moves the connection to StateClosed.
func (c *Conn) ReceiveFrame() (*Frame, error) {
	for {
		if len(c.frames) > 0 {
			f := c.frames[0]
			c.frames = c.frames[1:]
			return f, nil
		}
		if !c.isOpen() {
			return nil, nil
		}
		p, err := c.transport.Read()
		if err != nil {
			if KindOf(err) == KindTimeout {
				return nil, c.setErr(err)
			}
			c.forceClose(err)
			return nil, c.setErr(err)
		}
		c.rbuf.append(p)
		if _, err := c.ingress(); err != nil {
			c.forceClose(err)
			return nil, c.setErr(err)
		}
	}
}

// ReceiveMessage is the blocking-with-deadline accessor that pops a fully
// assembled Message, spec.md §4.4/§4.5.
func (c *Conn) ReceiveMessage() (*Message, error) {
	for {
		if n := completeMessageLen(c.frames); n > 0 {
			msg, err := assembleMessage(c.frames, n, c.cfg.maxMessageSize())
			if err != nil {
				c.forceClose(err)
				return nil, c.setErr(err)
			}
			c.frames = c.frames[n:]
			return msg, nil
		}
		if !c.isOpen() {
			return nil, nil
		}
		p, err := c.transport.Read()
		if err != nil {
			if KindOf(err) == KindTimeout {
				return nil, c.setErr(err)
			}
			c.forceClose(err)
			return nil, c.setErr(err)
		}
		c.rbuf.append(p)
		if _, err := c.ingress(); err != nil {
			c.forceClose(err)
			return nil, c.setErr(err)
		}
	}
}

// SendFrame serializes f (forcing client masking) and writes it to the
// transport, looping through short writes per spec.md §4.4.
func (c *Conn) SendFrame(f *Frame) error {
	return c.sendFrame(f)
}

func (c *Conn) sendFrame(f *Frame) error {
	data, err := encodeFrame(f, true)
	if err != nil {
		return c.setErr(err)
	}
	if err := c.writeAll(data); err != nil {
		return c.setErr(err)
	}
	return nil
}

// SendText sends a single-frame TEXT message.
func (c *Conn) SendText(data []byte) error {
	return c.sendFrame(&Frame{Fin: true, Opcode: OpText, Payload: data})
}

// SendBinary sends a single-frame BINARY message.
func (c *Conn) SendBinary(data []byte) error {
	return c.sendFrame(&Frame{Fin: true, Opcode: OpBinary, Payload: data})
}

// Disconnect tears the connection down: if it isn't already StateClosed,
// it invokes the optional disconnect callback, moves to StateClosed,
// best-effort sends a normal-closure CLOSE frame, and closes the
// transport. It frees all pending frames. Idempotent.
func (c *Conn) Disconnect() error {
	if c.state == StateClosed {
		return nil
	}
	wasConnected := c.state == StateConnected
	c.state = StateClosed

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(c, nil)
	}
	if wasConnected {
		reply := &Frame{Fin: true, Opcode: OpClose, Payload: encodeCloseStatus(1000)}
		if data, err := encodeFrame(reply, true); err == nil {
			_ = c.writeAll(data)
		}
	}
	c.frames = nil
	c.rbuf.reset()
	return c.transport.Close()
}

// forceClose is the fatal-error path: invoked when the transport or the
// frame decoder fails outright, as opposed to a local, intentional
// Disconnect().
func (c *Conn) forceClose(cause error) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(c, cause)
	}
	c.frames = nil
	c.rbuf.reset()
	_ = c.transport.Close()
}
