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
	"crypto/tls"
	"net/http"
	"time"
)

const (
	defaultDialTimeout      = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultIOTimeout        = 30 * time.Second
	defaultMaxFramePayload  = 16 << 20
	defaultMaxMessageSize   = 64 << 20
)

// HandshakeFunc lets a caller run extra validation (or mutation, such as
// reading an auth cookie) against the Transport before the connection is
// considered usable. Named in spec.md §3 as "handshake override"; modeled
// on the teacher's injected-predicate style (srvWebsocket.checkOrigin).
type HandshakeFunc func(*Transport) error

// DisconnectFunc is invoked once when a Conn transitions to closed, either
// from a local Disconnect() call or a fatal transport error. Named in
// spec.md §3 as "disconnect notifier".
type DisconnectFunc func(*Conn, error)

// Config holds everything the core needs to dial and maintain one
// connection. It is validated once, at Connect time, the same way the
// teacher validates WebsocketOpts before starting a listener.
type Config struct {
	// TLSConfig is used when the target URL scheme is "wss". A nil value
	// uses Go's default TLS configuration with ServerName set to the
	// dialed host.
	TLSConfig *tls.Config

	// DialTimeout bounds TCP connect (and TLS handshake, for wss). Zero
	// uses defaultDialTimeout.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the HTTP upgrade exchange once TCP is
	// connected. Zero uses defaultHandshakeTimeout. A timeout here is
	// fatal per spec.md §5.
	HandshakeTimeout time.Duration

	// IOTimeout is the steady-state per-connection timeout applied to
	// every Transport.Read/Write after the handshake completes. Zero
	// uses defaultIOTimeout. A timeout here is non-fatal; the caller may
	// retry per spec.md §5.
	IOTimeout time.Duration

	// MaxFramePayload caps a single frame's declared payload length.
	// Zero uses defaultMaxFramePayload. See spec.md §9's "explicit cap"
	// requirement and SPEC_FULL.md §3.
	MaxFramePayload int64

	// MaxMessageSize caps the total size of a reassembled message across
	// its continuation frames. Zero uses defaultMaxMessageSize.
	MaxMessageSize int64

	// ExtraHeaders is appended to the mandatory eight-line handshake
	// request (spec.md §4.2) after Sec-WebSocket-Version, still before
	// the terminating blank line. See SPEC_FULL.md §3.
	ExtraHeaders http.Header

	// Origin overrides the Origin header value; if empty, the dialed
	// URL's own origin (scheme://host[:port]) is sent, matching the
	// literal request spec.md §4.2 shows.
	Origin string

	// OnHandshake is called with the live Transport right after the TCP
	// (or TLS) connection is established, before the HTTP upgrade
	// request is sent. A non-nil error aborts Connect with KindHandshake.
	OnHandshake HandshakeFunc

	// OnDisconnect is called exactly once when the connection closes.
	OnDisconnect DisconnectFunc

	// LoggerFactory supplies the per-connection LeveledLogger. A nil
	// value uses defaultLoggerFactory().
	LoggerFactory LoggerFactory
}

func (c *Config) validate() error {
	if c.DialTimeout < 0 || c.HandshakeTimeout < 0 || c.IOTimeout < 0 {
		return newErr(KindFatal, "negative timeout in Config")
	}
	if c.MaxFramePayload < 0 || c.MaxMessageSize < 0 {
		return newErr(KindFatal, "negative size limit in Config")
	}
	return nil
}

func (c *Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return defaultDialTimeout
}

func (c *Config) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return defaultHandshakeTimeout
}

func (c *Config) ioTimeout() time.Duration {
	if c.IOTimeout > 0 {
		return c.IOTimeout
	}
	return defaultIOTimeout
}

func (c *Config) maxFramePayload() int64 {
	if c.MaxFramePayload > 0 {
		return c.MaxFramePayload
	}
	return defaultMaxFramePayload
}

func (c *Config) maxMessageSize() int64 {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return defaultMaxMessageSize
}

func (c *Config) loggerFactory() LoggerFactory {
	if c.LoggerFactory != nil {
		return c.LoggerFactory
	}
	return defaultLoggerFactory()
}
