package methodchanx

import (
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrMissingMethod   = errors.New("request has no method")
	ErrAmbiguousResult = errors.New("response must carry exactly one of result, error or notImplemented")
)

// Conn reads and writes newline-delimited JSON envelopes. It is not safe for
// concurrent use; writers are expected to be serialized, typically by running
// them on a dispatcher goroutine.
type Conn struct {
	conn   io.ReadWriteCloser
	reader *json.Decoder
	writer *json.Encoder
}

func NewConn(conn io.ReadWriteCloser) *Conn {
	return &Conn{
		conn:   conn,
		writer: json.NewEncoder(conn),
		reader: json.NewDecoder(conn),
	}
}

func (c *Conn) WriteRequest(req *Request) error {
	if req.Method == "" {
		return ErrMissingMethod
	}
	return c.writer.Encode(req)
}

func (c *Conn) WriteResponse(resp *Response) error {
	if err := validateResponse(resp); err != nil {
		return err
	}
	return c.writer.Encode(resp)
}

func (c *Conn) ReadRequest(req *Request) error {
	err := c.reader.Decode(req)
	if err != nil {
		return err
	}

	if req.Method == "" {
		return ErrMissingMethod
	}

	return nil
}

func (c *Conn) ReadResponse(resp *Response) error {
	err := c.reader.Decode(resp)
	if err != nil {
		return err
	}

	return validateResponse(resp)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func validateResponse(resp *Response) error {
	n := 0
	if resp.Result != nil {
		n++
	}
	if resp.Error != nil {
		n++
	}
	if resp.NotImplemented {
		n++
	}
	if n != 1 {
		return ErrAmbiguousResult
	}
	return nil
}
