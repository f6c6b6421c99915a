package methodchanx

import (
	"encoding/json"

	"github.com/fluttercandies/replyx"
)

// CodeMarshalFailed is sent in place of a success whose value could not be
// encoded.
const CodeMarshalFailed = "marshal_failed"

// Result answers one Request over a Conn. It is a replyx.Callback and so is
// only ever invoked from a dispatcher goroutine, which keeps writes to the
// Conn serialized.
type Result struct {
	conn *Conn
	id   RequestID

	// OnWriteError, if set, is told about responses that could not be written.
	OnWriteError func(error)
}

var _ replyx.Callback = (*Result)(nil)

func NewResult(conn *Conn, req *Request) *Result {
	return &Result{
		conn: conn,
		id:   req.ID,
	}
}

func (r *Result) Success(value any) {
	resultBytes, err := json.Marshal(value)
	if err != nil {
		msg := err.Error()
		r.write(&Response{
			ID: r.id,
			Error: &Error{
				Code:    CodeMarshalFailed,
				Message: &msg,
			},
		})
		return
	}

	r.write(&Response{
		ID:     r.id,
		Result: resultBytes,
	})
}

func (r *Result) Error(code string, message *string, details any) {
	r.write(&Response{
		ID: r.id,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (r *Result) NotImplemented() {
	r.write(&Response{
		ID:             r.id,
		NotImplemented: true,
	})
}

func (r *Result) write(resp *Response) {
	err := r.conn.WriteResponse(resp)
	if err != nil && r.OnWriteError != nil {
		r.OnWriteError(err)
	}
}

// DecodeArgs decodes the arguments of req into a T. Requests without
// arguments decode to the zero value.
func DecodeArgs[T any](req *Request) (T, error) {
	var args T
	if len(req.Args) == 0 {
		return args, nil
	}

	err := json.Unmarshal(req.Args, &args)
	return args, err
}
