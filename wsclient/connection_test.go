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
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

func testLogger() LeveledLogger {
	return logging.NewDefaultLoggerFactory().NewLogger("test")
}

// newTestConn wires a Conn to one end of a net.Pipe, with `server` left
// for the test to play the role of the remote peer.
func newTestConn(t *testing.T) (c *Conn, server net.Conn) {
	t.Helper()
	client, srv := net.Pipe()
	cfg := &Config{}
	c = &Conn{
		transport: newTransportFromConn(client, time.Second, testLogger()),
		cfg:       cfg,
		log:       testLogger(),
		id:        "test",
		state:     StateConnected,
	}
	t.Cleanup(func() { _ = srv.Close() })
	return c, srv
}

func readFrameFrom(t *testing.T, conn net.Conn) *Frame {
	t.Helper()
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	var acc []byte
	for {
		conn.SetReadDeadline(deadline)
		n, err := conn.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			if f, consumed, derr := decodeFrame(acc, 0); derr == nil && f != nil {
				_ = consumed
				return f
			}
		}
		if err != nil {
			t.Fatalf("readFrameFrom: %v", err)
		}
	}
}

func TestPingProducesPong(t *testing.T) {
	c, server := newTestConn(t)

	ping := &Frame{Fin: true, Opcode: OpPing, Payload: []byte("hello")}
	data, err := encodeFrame(ping, false) // server-to-client frames need not be masked
	require_NoError(t, err)

	done := make(chan *Frame, 1)
	go func() { done <- readFrameFrom(t, server) }()

	// ReceiveFrame is what actually drives ingress/dispatch on the client
	// side; without a reader pulling from the transport the PING is never
	// decoded and no PONG is ever written back.
	go func() { _, _ = c.ReceiveFrame() }()

	go func() {
		_, _ = server.Write(data)
	}()

	pong := <-done
	require.Equal(t, OpPong, pong.Opcode)
	require.True(t, pong.Fin)
	require.True(t, pong.Mask)
	require.Equal(t, "hello", string(pong.Payload))
}

func TestCloseHandshakeThenReceiveReturnsNil(t *testing.T) {
	c, server := newTestConn(t)

	closeFrame := &Frame{Fin: true, Opcode: OpClose, Payload: encodeCloseStatus(1000)}
	data, err := encodeFrame(closeFrame, false)
	require_NoError(t, err)

	recvd := make(chan *Frame, 1)
	go func() { recvd <- readFrameFrom(t, server) }()
	go func() { _, _ = server.Write(data) }()

	// ReceiveFrame drives ingress, which dispatches the CLOSE frame (moving
	// the connection to StateClosing and writing the reply) then, finding
	// no non-control frame queued and the connection no longer open,
	// returns (nil, nil) without reading the transport again.
	first, err := c.ReceiveFrame()
	require_NoError(t, err)
	if first != nil {
		t.Fatalf("expected nil frame after close handshake, got %+v", first)
	}

	reply := <-recvd
	require.Equal(t, OpClose, reply.Opcode)
	require.True(t, reply.Fin)

	require.Equal(t, StateClosing, c.state)
}

func TestIncrementalBytesYieldOneDispatchAtEnd(t *testing.T) {
	c, _ := newTestConn(t)

	f := &Frame{Fin: true, Opcode: OpBinary, Payload: make([]byte, 200)}
	for i := range f.Payload {
		f.Payload[i] = byte(i)
	}
	data, err := encodeFrame(f, false)
	require_NoError(t, err)

	for i := 0; i < len(data)-1; i++ {
		c.rbuf.append(data[i : i+1])
		_, err := c.ingress()
		require_NoError(t, err)
		require_Len(t, len(c.frames), 0)
	}
	c.rbuf.append(data[len(data)-1:])
	_, err = c.ingress()
	require_NoError(t, err)
	require_Len(t, len(c.frames), 1)
	require_Len(t, c.rbuf.len(), 0)
}

func TestReceiveMessageAssemblesFragments(t *testing.T) {
	c, server := newTestConn(t)

	frames := []*Frame{
		{Fin: false, Opcode: OpText, Payload: []byte("Hel")},
		{Fin: false, Opcode: OpContinuation, Payload: []byte("lo, W")},
		{Fin: true, Opcode: OpContinuation, Payload: []byte("orld")},
	}
	go func() {
		for _, f := range frames {
			data, _ := encodeFrame(f, false)
			_, _ = server.Write(data)
		}
	}()

	msg, err := c.ReceiveMessage()
	require_NoError(t, err)
	require.Equal(t, OpText, msg.Opcode)
	require.Equal(t, "Hello, World", string(msg.Payload))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c, server := newTestConn(t)
	// Close the peer so the best-effort CLOSE write fails fast instead of
	// blocking on an unread net.Pipe (writeAll retries write timeouts).
	_ = server.Close()
	require_NoError(t, c.Disconnect())
	require_NoError(t, c.Disconnect())
	require.Equal(t, StateClosed, c.state)
}
