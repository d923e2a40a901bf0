package report

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBytes(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "get",
			req:  Request{Method: MethodGet, Host: "collector", Resource: "/ping"},
			want: "GET /ping HTTP/1.1\r\nHost: collector\r\nConnection: keep-alive\r\n\r\n",
		},
		{
			name: "post json",
			req:  Request{Method: MethodPost, Host: "10.0.0.2:8080", Resource: "/api/status", Body: []byte(`{"a":1}`)},
			want: "POST /api/status HTTP/1.1\r\nHost: 10.0.0.2:8080\r\nConnection: keep-alive\r\n" +
				"Content-Type: application/json\r\nContent-Length: 7\r\n\r\n{\"a\":1}",
		},
		{
			name: "put empty body with token",
			req:  Request{Method: MethodPut, Host: "h", Resource: "/s", Token: "abc", ContentType: "text/plain"},
			want: "PUT /s HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\nAuthorization: Bearer abc\r\n" +
				"Content-Type: text/plain\r\nContent-Length: 0\r\n\r\n",
		},
		{
			name: "delete",
			req:  Request{Method: MethodDelete, Host: "h", Resource: "/s/1"},
			want: "DELETE /s/1 HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.req.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestRequestLargeBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 4096))
	b, err := Request{Method: MethodPost, Host: "h", Resource: "/", Body: body}.Bytes()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(b), string(body)))
	assert.Contains(t, string(b), "Content-Length: 4096\r\n")
}

func TestRequestInvalid(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{"method", Request{Method: Method(9), Resource: "/"}, ErrMethod},
		{"relative resource", Request{Resource: "status"}, ErrResource},
		{"space in resource", Request{Resource: "/a b"}, ErrResource},
		{"header injection", Request{Resource: "/", Host: "h\r\nX: y"}, ErrHeader},
		{"token injection", Request{Resource: "/", Token: "t\n"}, ErrHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.Bytes()
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("post")
	require.NoError(t, err)
	assert.Equal(t, MethodPost, m)
	assert.Equal(t, "POST", m.String())

	_, err = ParseMethod("PATCH")
	assert.ErrorIs(t, err, ErrMethod)
}

func TestReadResponse(t *testing.T) {
	stream := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello" +
		"HTTP/1.1 401 Unauthorized\r\nContent-Length: 12\r\n\r\nbad token!!!"
	br := bufio.NewReader(strings.NewReader(stream))

	r, err := ReadResponse(br, 3)
	require.NoError(t, err)
	assert.Equal(t, 200, r.Code)
	assert.Equal(t, "OK", r.Reason)
	assert.Equal(t, []byte("hel"), r.Body)
	assert.True(t, r.OK())

	r, err = ReadResponse(br, 64)
	require.NoError(t, err)
	assert.Equal(t, 401, r.Code)
	assert.True(t, r.Unauthorized())
	assert.False(t, r.OK())

	_, err = ReadResponse(br, 64)
	assert.Error(t, err)
}
