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
	"crypto/rand"

	"github.com/nats-io/nuid"
	"github.com/pion/randutil"
)

// traceCharset is used only for the non-critical connection trace suffix,
// never for the handshake nonce or a frame masking key.
const traceCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// cryptoRandomBytes fills a buffer of length n with output from a CSPRNG.
// Both consumers named in spec.md §9 (the 16-byte handshake nonce and the
// 4-byte per-frame mask key) need byte-exact output with failure reported
// as KindCrypto, which crypto/rand.Read gives directly. pion/randutil's
// Generator interface only produces charset strings with no error return,
// so it is not used on this path; see newConnID for where it is wired.
func cryptoRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, wrapErr(KindCrypto, err, "read %d random bytes", n)
	}
	return b, nil
}

// connTraceGenerator produces the short, non-critical suffix appended to a
// connection's log scope so two connections created in the same process
// tick don't share a prefix. It plays the same role pion's own ICE/transport
// code uses randutil.CryptoRandomGenerator for: readable diagnostic labels,
// not protocol security.
var connTraceGenerator = randutil.NewCryptoRandomGenerator()

// newConnID returns a short correlation id for log scoping, combining a
// collision-resistant NUID (the same generator family the teacher uses for
// client/subscription ids) with a short random trace suffix.
func newConnID() string {
	return nuid.Next()[:8] + "-" + connTraceGenerator.GenerateString(4, traceCharset)
}
