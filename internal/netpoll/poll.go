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

// Package netpoll is the readiness primitive spec.md §4.1/§9 asks the
// Transport to drive its non-blocking socket with: a poll(2)-equivalent
// that blocks the caller up to a deadline, not an internal event loop.
package netpoll

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout is returned by Wait when the deadline elapses before fd
// becomes ready.
var ErrTimeout = errors.New("netpoll: wait timed out")

// Want is the direction of readiness Wait should block for.
type Want int16

const (
	Readable Want = unix.POLLIN
	Writable Want = unix.POLLOUT
)

// SetNonblock puts fd into non-blocking mode. wsclient's dialTransport calls this
// once right after the socket is established; all subsequent reads/writes
// rely on Wait for readiness instead of blocking in the kernel.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// Wait blocks the calling goroutine until fd is ready for want, or until
// timeout elapses. A non-positive timeout waits forever, matching the
// poll(2) convention spec.md §4.1 describes ("wait for readability up to
// timeout_ms"). It returns ErrTimeout on deadline expiry and never treats
// POLLHUP/POLLERR as failure: callers are expected to discover those via
// the subsequent read/write syscall, the same way a real poll loop would.
func Wait(fd int, want Want, timeout time.Duration) error {
	ms := -1
	if timeout > 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: int16(want)}}
	for {
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			return ErrTimeout
		}
		return nil
	}
}
