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

// Message is a logical application datum, spec.md §3: the concatenation of
// one or more data frame payloads, the last of which has Fin=true.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// completeMessageLen scans frames from the front and returns the number of
// frames that make up the first complete logical message (ending at the
// first Fin=true frame), or 0 if no such prefix exists yet.
func completeMessageLen(frames []*Frame) int {
	for i, f := range frames {
		if f.Fin {
			return i + 1
		}
	}
	return 0
}

// assembleMessage consumes frames[:n] (n from completeMessageLen) and
// builds the Message they represent. frames[0].Opcode must be TEXT or
// BINARY; a CONTINUATION as the first frame of a sequence is a protocol
// error per spec.md §4.5.
func assembleMessage(frames []*Frame, n int, maxMessage int64) (*Message, error) {
	if n == 0 || n > len(frames) {
		return nil, newErr(KindProtocol, "assembleMessage: invalid frame count %d", n)
	}
	first := frames[0]
	if first.Opcode != OpText && first.Opcode != OpBinary {
		return nil, newErr(KindProtocol, "message starts with %s frame instead of text/binary", first.Opcode)
	}

	total := 0
	for i := 0; i < n; i++ {
		total += len(frames[i].Payload)
		if maxMessage > 0 && int64(total) > maxMessage {
			return nil, newErr(KindProtocol, "assembled message exceeds configured maximum %d bytes", maxMessage)
		}
	}

	payload := make([]byte, 0, total)
	for i := 0; i < n; i++ {
		payload = append(payload, frames[i].Payload...)
	}

	return &Message{Opcode: first.Opcode, Payload: payload}, nil
}
