package hap

import (
	"io"
	"net/http"
	"time"
)

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "hap: wrong http status: " + e.Status
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := c.conn.SetDeadline(time.Now().Add(ConnDeadline)); err != nil {
		return nil, err
	}
	if err := req.Write(c.conn); err != nil {
		return nil, err
	}
	return http.ReadResponse(c.reader, req)
}

func (c *Client) Request(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, "http://"+c.DeviceAddress+path, body)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.Do(req)
	if err == nil && res.StatusCode >= http.StatusBadRequest {
		err = &StatusError{StatusCode: res.StatusCode, Status: res.Status}
	}

	return res, err
}

func (c *Client) Get(path string) (*http.Response, error) {
	return c.Request("GET", path, "", nil)
}

func (c *Client) Post(path, contentType string, body io.Reader) (*http.Response, error) {
	return c.Request("POST", path, contentType, body)
}

func (c *Client) Put(path, contentType string, body io.Reader) (*http.Response, error) {
	return c.Request("PUT", path, contentType, body)
}
