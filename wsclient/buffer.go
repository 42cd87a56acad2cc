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

// rbuffer is the Connection's receive byte buffer, spec.md §3: bytes are
// appended at the back as Transport.Read delivers them, and drained from
// the front as the frame codec consumes whole frames.
type rbuffer struct {
	buf []byte
	off int // buf[off:] is the live window
}

func (b *rbuffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.buf = append(b.buf, p...)
}

// bytes returns the live, unconsumed window. The returned slice aliases
// internal storage and is only valid until the next append/drain/reset.
func (b *rbuffer) bytes() []byte {
	return b.buf[b.off:]
}

func (b *rbuffer) len() int {
	return len(b.buf) - b.off
}

// drain removes the first n bytes of the live window. It compacts the
// backing array once the consumed prefix grows large relative to what's
// left, so a long-lived connection doesn't retain an ever-growing slice.
func (b *rbuffer) drain(n int) {
	b.off += n
	if b.off > 0 && (b.off >= len(b.buf)/2 || b.off == len(b.buf)) {
		remaining := len(b.buf) - b.off
		copy(b.buf[:remaining], b.buf[b.off:])
		b.buf = b.buf[:remaining]
		b.off = 0
	}
}

func (b *rbuffer) reset() {
	b.buf = b.buf[:0]
	b.off = 0
}
