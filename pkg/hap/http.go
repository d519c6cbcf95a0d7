package hap

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
)

const (
	MimeTLV8 = "application/pairing+tlv8"
	MimeJSON = "application/hap+json"

	PathPairSetup  = "/pair-setup"
	PathPairVerify = "/pair-verify"
	PathPairings   = "/pairings"

	StatusConnectionAuthorizationRequired = 470

	// HAPStatusInsufficientPrivileges in the JSON body of 470 responses
	HAPStatusInsufficientPrivileges = -70401
)

const maxBodySize = 64 * 1024

var errBodyTooLarge = errors.New("hap: request body too large")

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	if req.ContentLength > maxBodySize {
		return nil, errBodyTooLarge
	}
	b, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodySize {
		return nil, errBodyTooLarge
	}
	return b, nil
}

func NewResponse(statusCode int, contentType string, body []byte) *http.Response {
	res := &http.Response{
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}

	if statusCode == StatusConnectionAuthorizationRequired {
		res.Status = "470 Connection Authorization Required"
	}

	if contentType != "" {
		res.Header.Set("Content-Type", contentType)
	}
	res.Header.Set("Content-Length", strconv.Itoa(len(body)))

	return res
}

func newTLV8Response(body []byte) *http.Response {
	return NewResponse(http.StatusOK, MimeTLV8, body)
}

// newBadRequest closes the connection, the rest of the body stays unread
func newBadRequest() *http.Response {
	res := NewResponse(http.StatusBadRequest, "", nil)
	res.Close = true
	return res
}

func newAuthorizationRequired() *http.Response {
	body := `{"status":` + strconv.Itoa(HAPStatusInsufficientPrivileges) + `}`
	return NewResponse(StatusConnectionAuthorizationRequired, MimeJSON, []byte(body))
}
