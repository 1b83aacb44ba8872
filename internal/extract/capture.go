// Package extract normalizes raw captures into the records the check
// battery consumes.
package extract

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Capture is the raw record produced by a network-capture collaborator.
// Field names follow the browser webRequest shape.
type Capture struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	TimeStamp       float64           `json:"timeStamp"` // epoch milliseconds
	RequestBody     any               `json:"requestBody,omitempty"`
	Cookies         map[string]string `json:"cookies,omitempty"`
	LocalStorage    map[string]string `json:"localStorage,omitempty"`
}

// Time converts TimeStamp to a time.Time. A zero stamp returns the zero time.
func (c Capture) Time() time.Time {
	if c.TimeStamp <= 0 {
		return time.Time{}
	}
	ms := int64(c.TimeStamp)
	return time.UnixMilli(ms).UTC()
}

// FromHTTP builds a capture from a Go request/response pair. Multi-value
// headers are joined with ", ". resp may be nil when only the request is known.
//
// Go canonicalizes header keys (GPS arrives as Gps) while checks look keys up
// exactly, so every name in names is also stored under its given spelling.
func FromHTTP(req *http.Request, resp *http.Response, names ...string) Capture {
	c := Capture{
		URL:            requestURL(req),
		Method:         req.Method,
		RequestHeaders: flatten(req.Header, names),
		TimeStamp:      float64(time.Now().UnixMilli()),
	}
	if req.ContentLength > 0 || (req.Body != nil && req.Body != http.NoBody) {
		c.RequestBody = true
	}
	for _, ck := range req.Cookies() {
		if c.Cookies == nil {
			c.Cookies = make(map[string]string)
		}
		c.Cookies[ck.Name] = ck.Value
	}

	if resp != nil {
		c.ResponseHeaders = flatten(resp.Header, names)
		if resp.ContentLength >= 0 {
			c.ResponseHeaders["content-length"] = strconv.FormatInt(resp.ContentLength, 10)
		}
	}
	return c
}

func requestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func flatten(h http.Header, names []string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		out[k] = strings.Join(vv, ", ")
	}
	for _, name := range names {
		if _, ok := out[name]; ok {
			continue
		}
		if v := strings.Join(h.Values(name), ", "); v != "" {
			out[name] = v
		}
	}
	return out
}
