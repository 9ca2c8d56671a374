// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes reported by the Batch service that callers act on.
const (
	CodePoolExists       = "PoolExists"
	CodePoolNotFound     = "PoolNotFound"
	CodePoolBeingDeleted = "PoolBeingDeleted"
	CodeJobExists        = "JobExists"
	CodeJobNotFound      = "JobNotFound"
	CodeJobBeingDeleted  = "JobBeingDeleted"
	CodeTaskExists       = "TaskExists"
	CodeTaskNotFound     = "TaskNotFound"
)

// ErrorDetail is one auxiliary key/value diagnostic pair.
type ErrorDetail struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error is a structured error reported by the Batch service.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Values     []ErrorDetail
	RequestID  string
}

func (e *Error) Error() string {
	msg := e.Message
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("batch service error %d %s: %s", e.StatusCode, e.Code, msg)
}

// TransportError is returned when a request did not produce an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsCode reports whether err is a service error carrying the given code.
func IsCode(err error, code string) bool {
	var be *Error
	return errors.As(err, &be) && be.Code == code
}

// AsError returns the service error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}

type errorBody struct {
	Code    string `json:"code"`
	Message struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"message"`
	Values []ErrorDetail `json:"values"`
}

func newError(resp *http.Response, body []byte) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
	}
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.Code = eb.Code
		e.Message = eb.Message.Value
		e.Values = eb.Values
	}
	if e.Code == "" {
		e.Code = strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "")
	}
	return e
}
