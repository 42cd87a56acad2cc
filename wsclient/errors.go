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
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed, independent of the Go error
// chain wrapped underneath it. Callers that only care about "can I retry"
// or "is this fatal" should switch on Kind rather than string-matching.
type Kind int

const (
	// KindNone is never attached to a returned error; it exists so the
	// zero value of Kind reads as "no error" in logs.
	KindNone Kind = iota
	// KindTimeout means a readiness deadline expired.
	KindTimeout
	// KindWarn is a recoverable condition the caller may retry.
	KindWarn
	// KindNet is a system-level socket failure.
	KindNet
	// KindTLS is a TLS setup, handshake, shutdown, or I/O failure.
	KindTLS
	// KindHandshake means the upgrade response was missing a required
	// header or the accept key did not match.
	KindHandshake
	// KindProtocol means a malformed frame or illegal frame sequence.
	KindProtocol
	// KindCrypto means the CSPRNG source failed while generating a nonce
	// or masking key.
	KindCrypto
	// KindMem means an allocation failed.
	KindMem
	// KindFatal is unrecoverable; the connection is unusable afterward.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindWarn:
		return "warn"
	case KindNet:
		return "net"
	case KindTLS:
		return "tls"
	case KindHandshake:
		return "handshake"
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	case KindMem:
		return "mem"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CoreError is the error type returned by every operation in this package
// that can fail. It tags the failure with a Kind from the taxonomy above
// while preserving the underlying cause for Unwrap/errors.Is/errors.As.
type CoreError struct {
	Kind Kind
	msg  string
	// cause holds the wrapped error, already decorated with a stack trace
	// by github.com/pkg/errors when non-nil.
	cause error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As keep working
// through a CoreError the way they would through pkg/errors' own wrapping.
func (e *CoreError) Unwrap() error {
	return e.cause
}

// newErr builds a CoreError with no wrapped cause.
func newErr(kind Kind, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// wrapErr builds a CoreError around an existing error, attaching a stack
// trace via pkg/errors the same way the teacher's server package wraps
// low-level failures before handing them to a caller.
func wrapErr(kind Kind, cause error, format string, args ...interface{}) *CoreError {
	if cause == nil {
		return newErr(kind, format, args...)
	}
	return &CoreError{
		Kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: errors.WithStack(cause),
	}
}

// KindOf returns the Kind tagged on err, or KindNone if err is nil or was
// not produced by this package.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}
