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
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// serverHandshake reads the upgrade request off conn and replies with a
// 101 response whose Sec-WebSocket-Accept is derived from the request's
// own key, unless forceAccept is non-empty (used to simulate a hostile or
// buggy peer for the mismatch scenario).
func serverHandshake(t *testing.T, conn net.Conn, forceAccept string) {
	t.Helper()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	req, err := http.ReadRequest(bufio.NewReader(conn))
	require_NoError(t, err)

	accept := forceAccept
	if accept == "" {
		accept = acceptKey(req.Header.Get("Sec-WebSocket-Key"))
	}
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		fmt.Sprintf("Sec-WebSocket-Accept: %s\r\n", accept) +
		"\r\n"
	_, err = conn.Write([]byte(resp))
	require_NoError(t, err)
}

func newHandshakeConn() (*Conn, net.Conn) {
	client, server := net.Pipe()
	c := &Conn{
		transport: newTransportFromConn(client, 2*time.Second, testLogger()),
		cfg:       &Config{},
		log:       testLogger(),
		id:        "test",
	}
	return c, server
}

func TestHandshakeSucceedsOnValidAccept(t *testing.T) {
	c, server := newHandshakeConn()
	u, err := url.Parse("ws://example.com/chat")
	require_NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.handshake(u, "", nil) }()

	serverHandshake(t, server, "")

	require_NoError(t, <-done)
}

func TestHandshakeFailsOnAcceptMismatch(t *testing.T) {
	c, server := newHandshakeConn()
	u, err := url.Parse("ws://example.com/chat")
	require_NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.handshake(u, "", nil) }()

	serverHandshake(t, server, "not-the-right-accept-value=")

	err = <-done
	require_Error(t, err)
	require_Kind(t, err, KindHandshake)
}

func TestBuildUpgradeRequestIncludesExtraHeaders(t *testing.T) {
	u, err := url.Parse("ws://example.com/chat?x=1")
	require_NoError(t, err)
	extra := map[string][]string{"Authorization": {"Bearer abc"}}
	req := buildUpgradeRequest(u, "dGhlIHNhbXBsZSBub25jZQ==", "http://example.com", extra)

	s := string(req)
	require.Contains(t, s, "GET /chat?x=1 HTTP/1.1\r\n")
	require.Contains(t, s, "Host: example.com\r\n")
	require.Contains(t, s, "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n")
	require.Contains(t, s, "Sec-WebSocket-Version: 13\r\n")
	require.Contains(t, s, "Authorization: Bearer abc\r\n")
	require.True(t, len(s) > 4 && s[len(s)-4:] == "\r\n\r\n")
}

func TestDefaultOriginUsesSchemeAndHost(t *testing.T) {
	u, err := url.Parse("wss://example.com:9443/chat")
	require_NoError(t, err)
	require.Equal(t, "https://example.com:9443", defaultOrigin(u))
}
