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

// Package httpupgrade implements the minimal HTTP/1.1 response parser the
// handshake collaborates with. spec.md §6 names this as an external,
// "consumed" collaborator ("a streaming parser with operations
// parse(bytes, length) -> bytes_consumed_so_far, a boolean
// headers_complete, and a case-insensitive header map"); this package is
// the concrete instance wired in by this repository.
package httpupgrade

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// ErrNeedMoreData is returned by Parse when buf does not yet contain a
// complete header block (no blank line terminator found).
var ErrNeedMoreData = errors.New("httpupgrade: incomplete response headers")

// Response is the parsed status line and header map of an HTTP/1.1
// upgrade response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
}

// Parse scans buf for a complete HTTP/1.1 response header block
// ("\r\n\r\n" terminated). It returns ErrNeedMoreData if the terminator
// hasn't arrived yet. On success it returns the parsed Response and the
// number of leading bytes of buf that belong to the header block (the
// caller drains exactly that many bytes from its receive buffer, per
// spec.md §4.2 step 4).
func Parse(buf []byte) (*Response, int, error) {
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return nil, 0, ErrNeedMoreData
	}
	consumed := idx + 4

	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(buf[:consumed])))
	statusLine, err := tp.ReadLine()
	if err != nil {
		return nil, 0, errors.New("httpupgrade: missing status line")
	}
	statusCode, status, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, 0, err
	}
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && len(mimeHeader) == 0 {
		return nil, 0, err
	}
	return &Response{
		StatusCode: statusCode,
		Status:     status,
		Header:     http.Header(mimeHeader),
	}, consumed, nil
}

func parseStatusLine(line string) (int, string, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", errors.New("httpupgrade: malformed status line")
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", errors.New("httpupgrade: non-numeric status code")
	}
	return code, line, nil
}
