package http

import (
	"time"

	"github.com/abdul-hamid-achik/hookline/packages/headers"
)

// Request is a finalized wire-level request.
type Request struct {
	Method  string
	URL     string
	Headers headers.Set
	Body    []byte
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(headers.Set),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers.Put(key, value)
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) Header(key string) string {
	return r.Headers.Get(key)
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = r.Headers.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}
