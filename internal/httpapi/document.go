// Package httpapi is the HTTP surface: a chi router translating the
// route table into calls against the core facade, with JSON:API-
// flavored request/response shaping.
package httpapi

import "github.com/cantido/hematite/internal/codec"

// resource is a single JSON:API-flavored resource object.
type resource struct {
	Type       string      `json:"type"`
	ID         string      `json:"id,omitempty"`
	Attributes interface{} `json:"attributes,omitempty"`
}

// document is the top-level response envelope: exactly one of Data or
// Errors is populated.
type document struct {
	Data   interface{}    `json:"data,omitempty"`
	Errors []errorObject  `json:"errors,omitempty"`
	Meta   interface{}    `json:"meta,omitempty"`
}

// errorObject describes one error in an error document.
type errorObject struct {
	Status string       `json:"status"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *errorSource `json:"source,omitempty"`
}

type errorSource struct {
	Header  string `json:"header,omitempty"`
	Pointer string `json:"pointer,omitempty"`
}

// streamAttributes mirrors the fields a Stream resource exposes.
type streamAttributes struct {
	Revision     uint64 `json:"revision"`
	State        string `json:"state"`
	LastModified int64  `json:"last_modified"`
}

// eventAttributes wraps a raw event payload with its revision.
type eventAttributes struct {
	Revision uint64      `json:"revision"`
	Event    codec.Event `json:"event"`
}

type healthAttributes struct {
	Status string `json:"status"`
}
