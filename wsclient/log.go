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
	"github.com/pion/logging"
)

// LeveledLogger is the logging surface a Conn writes to. It is the same
// shape as pion/logging.LeveledLogger so callers already wiring a pion
// based media/transport stack can hand the core the same logger instance.
type LeveledLogger = logging.LeveledLogger

// LoggerFactory hands out a scoped LeveledLogger per connection, the way
// the teacher's *Server hands a connection-scoped prefix to every log call
// it makes for a given *client. Scope is typically the connection's short
// correlation id (see newConnID).
type LoggerFactory = logging.LoggerFactory

// defaultLoggerFactory is used when a Config leaves LoggerFactory nil. It prints
// Warn and above to stderr, matching the teacher's default verbosity when
// no -V/-D flags are given.
func defaultLoggerFactory() LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelWarn
	return f
}
