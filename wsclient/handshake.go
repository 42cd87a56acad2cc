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
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/riftwave/wsclient/internal/httpupgrade"
)

// wsGUID is the fixed RFC 6455 §1.3 accept-key suffix.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// acceptKey computes base64(SHA1(key ++ wsGUID)), spec.md §4.2 step 5 /
// §6 / §8's canonical-example invariant. Grounded on the teacher's
// wsAcceptKey, generalized to take the key as a parameter rather than
// reading it off an *http.Request (server-side concern we don't have).
func acceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildUpgradeRequest renders the literal eight-line request spec.md §4.2
// shows, CRLF-terminated, with Config.ExtraHeaders appended before the
// final blank line.
func buildUpgradeRequest(u *url.URL, key, origin string, extra map[string][]string) []byte {
	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	b.WriteString("Cache-Control: no-cache\r\n")
	fmt.Fprintf(&b, "Origin: %s\r\n", origin)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", key)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	for name, values := range extra {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// defaultOrigin derives "scheme://host[:port]" from the dialed URL, used
// when Config.Origin is empty.
func defaultOrigin(u *url.URL) string {
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// handshake drives the client opening handshake described in spec.md §4.2
// over c.transport, using c.rbuf as the read accumulator for the HTTP
// response.
//
// On any failure, including a write or read timeout, the receive buffer is
// cleared and the transport is closed before returning, per spec.md §4.2's
// failure contract.
func (c *Conn) handshake(u *url.URL, origin string, extraHeaders map[string][]string) error {
	keyBytes, err := cryptoRandomBytes(16)
	if err != nil {
		c.failHandshake()
		return err
	}
	c.key = base64.StdEncoding.EncodeToString(keyBytes)

	if origin == "" {
		origin = defaultOrigin(u)
	}
	req := buildUpgradeRequest(u, c.key, origin, extraHeaders)

	// Unlike writeAll, a write timeout here is fatal: HandshakeTimeout
	// bounds the whole upgrade exchange.
	for p := req; len(p) > 0; {
		n, err := c.transport.Write(p)
		if err != nil {
			c.failHandshake()
			return wrapErr(KindHandshake, err, "send upgrade request")
		}
		p = p[n:]
	}

	var resp *httpupgrade.Response
	var consumed int
	for {
		p, err := c.transport.Read()
		if err != nil {
			c.failHandshake()
			return wrapErr(KindHandshake, err, "read upgrade response")
		}
		c.rbuf.append(p)

		resp, consumed, err = httpupgrade.Parse(c.rbuf.bytes())
		if err == httpupgrade.ErrNeedMoreData {
			continue
		}
		if err != nil {
			c.failHandshake()
			return wrapErr(KindHandshake, err, "parse upgrade response")
		}
		break
	}
	c.rbuf.drain(consumed)

	if resp.StatusCode != 101 {
		c.failHandshake()
		return newErr(KindHandshake, "unexpected upgrade status: %s", resp.Status)
	}

	got := resp.Header.Get("Sec-WebSocket-Accept")
	if got == "" {
		c.failHandshake()
		return newErr(KindHandshake, "missing Sec-WebSocket-Accept header")
	}
	want := acceptKey(c.key)
	if got != want {
		c.failHandshake()
		return newErr(KindHandshake, "Sec-WebSocket-Accept mismatch: got %q want %q", got, want)
	}
	return nil
}

// failHandshake implements the "on any failure" contract: clear the
// receive buffer and close the transport.
func (c *Conn) failHandshake() {
	c.rbuf.reset()
	if c.transport != nil {
		_ = c.transport.Close()
	}
}

// writeAll loops a write until every byte of p has been sent or a fatal
// transport error occurs, handling short writes and steady-state timeouts
// as retryable. It is used for frame sends after the handshake; a write
// timeout is retried without limit.
func (c *Conn) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.transport.Write(p)
		if err != nil {
			if KindOf(err) == KindTimeout {
				continue
			}
			return err
		}
		p = p[n:]
	}
	return nil
}
