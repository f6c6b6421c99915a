package methodchanx

import "encoding/json"

// RequestID is whatever the caller used to correlate a request with its
// response; it is echoed back untouched.
type RequestID interface{}

type Request struct {
	ID     RequestID       `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type Error struct {
	Code    string  `json:"code"`
	Message *string `json:"message"`
	Details any     `json:"details"`
}

// Response carries exactly one of Result, Error or NotImplemented. A success
// with a nil result is encoded as "result": null.
type Response struct {
	ID             RequestID       `json:"id"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	NotImplemented bool            `json:"notImplemented,omitempty"`
}
