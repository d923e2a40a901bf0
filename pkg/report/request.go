package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	ErrMethod   = errors.New("report: unsupported method")
	ErrResource = errors.New("report: invalid resource")
	ErrHeader   = errors.New("report: invalid header value")
)

// Method is an HTTP request method.
type Method uint8

const (
	MethodGet Method = iota
	MethodPost
	MethodPut
	MethodDelete
)

var methods = [...]string{
	MethodGet:    http.MethodGet,
	MethodPost:   http.MethodPost,
	MethodPut:    http.MethodPut,
	MethodDelete: http.MethodDelete,
}

func (m Method) String() string {
	if int(m) < len(methods) {
		return methods[m]
	}
	return "method(" + strconv.Itoa(int(m)) + ")"
}

// ParseMethod maps a method name to a Method.
func ParseMethod(s string) (Method, error) {
	for i, name := range methods {
		if strings.EqualFold(s, name) {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrMethod, s)
}

// Request is a single HTTP/1.1 request on a keep-alive connection.
type Request struct {
	Method      Method
	Host        string
	Resource    string
	Token       string
	ContentType string
	Body        []byte
}

// AppendTo appends the wire form of r to dst.
func (r Request) AppendTo(dst []byte) ([]byte, error) {
	if int(r.Method) >= len(methods) {
		return dst, fmt.Errorf("%w: %d", ErrMethod, r.Method)
	}
	if !strings.HasPrefix(r.Resource, "/") || strings.ContainsAny(r.Resource, " \r\n") {
		return dst, fmt.Errorf("%w: %q", ErrResource, r.Resource)
	}
	for _, v := range []string{r.Host, r.Token, r.ContentType} {
		if strings.ContainsAny(v, "\r\n") {
			return dst, fmt.Errorf("%w: %q", ErrHeader, v)
		}
	}

	dst = append(dst, methods[r.Method]...)
	dst = append(dst, ' ')
	dst = append(dst, r.Resource...)
	dst = append(dst, " HTTP/1.1\r\n"...)
	dst = header(dst, "Host", r.Host)
	dst = header(dst, "Connection", "keep-alive")
	if r.Token != "" {
		dst = header(dst, "Authorization", "Bearer "+r.Token)
	}
	if len(r.Body) > 0 || r.Method == MethodPost || r.Method == MethodPut {
		ct := r.ContentType
		if ct == "" {
			ct = "application/json"
		}
		dst = header(dst, "Content-Type", ct)
		dst = header(dst, "Content-Length", strconv.Itoa(len(r.Body)))
	}
	dst = append(dst, "\r\n"...)
	return append(dst, r.Body...), nil
}

// Bytes returns the wire form of r.
func (r Request) Bytes() ([]byte, error) {
	return r.AppendTo(make([]byte, 0, 128+len(r.Body)))
}

func header(dst []byte, k, v string) []byte {
	if v == "" {
		return dst
	}
	dst = append(dst, k...)
	dst = append(dst, ": "...)
	dst = append(dst, v...)
	return append(dst, "\r\n"...)
}

// Response is the part of a collector reply the appliance cares about.
type Response struct {
	Code   int
	Reason string
	Body   []byte
}

// OK reports a 2xx reply.
func (r Response) OK() bool {
	return r.Code >= 200 && r.Code < 300
}

// Unauthorized reports a rejected token.
func (r Response) Unauthorized() bool {
	return r.Code == http.StatusUnauthorized || r.Code == http.StatusForbidden
}

// ReadResponse reads one reply from br. At most maxBody bytes of the body
// are kept; the rest is discarded so the connection stays usable.
func ReadResponse(br *bufio.Reader, maxBody int) (Response, error) {
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBody)))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return Response{}, fmt.Errorf("failed to drain response body: %w", err)
	}

	return Response{
		Code:   resp.StatusCode,
		Reason: strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))),
		Body:   body,
	}, nil
}
