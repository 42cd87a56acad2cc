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
	"testing"
)

// These require_* helpers are grounded on the teacher's own test helpers
// (formerly server/dirstore_test.go, a JWT directory store test file that
// had no home in a websocket client core and was deleted — see
// DESIGN.md). The helper shape survives because it's the ambient test
// idiom the rest of this package's tests are written in.

func require_True(t *testing.T, b bool) {
	t.Helper()
	if !b {
		t.Fatalf("require true, but got false")
	}
}

func require_False(t *testing.T, b bool) {
	t.Helper()
	if b {
		t.Fatalf("require false, but got true")
	}
}

func require_NoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("require no error, but got: %v", err)
	}
}

func require_Error(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("require error, but got none")
	}
}

func require_Len(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("require len %d, but got: %d", want, got)
	}
}

func require_Kind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("require error kind %s, but got: %s (%v)", want, got, err)
	}
}
