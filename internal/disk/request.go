package disk

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	apiTimeout = 30 * time.Second
	rawTimeout = 60 * time.Second

	defaultRetries = 3
	uploadRetries  = 7

	// MaxPageLimit is the largest page the list endpoint serves.
	MaxPageLimit = 10000
)

const listFields = "name,path,type,size,md5,modified," +
	"_embedded.total,_embedded.items.name,_embedded.items.path,_embedded.items.type," +
	"_embedded.items.size,_embedded.items.md5,_embedded.items.modified"

// Request describes one logical call. Do may send it several times, so the
// body is reopened through Body on every attempt.
type Request struct {
	Method string
	// Endpoint is appended to the API URL, or is the absolute URL when Raw is set.
	Endpoint   string
	Query      url.Values
	Body       func() (io.ReadCloser, error)
	Size       int64
	MaxRetries int
	Timeout    time.Duration
	Raw        bool
}

func apiRequest(method, endpoint string, query url.Values) Request {
	return Request{
		Method:     method,
		Endpoint:   endpoint,
		Query:      query,
		MaxRetries: defaultRetries,
		Timeout:    apiTimeout,
	}
}

func listRequest(p Path, limit, offset int) Request {
	return apiRequest(http.MethodGet, "", url.Values{
		"path":   {p.String()},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
		"fields": {listFields},
	})
}

func metadataRequest(p Path, fields string) Request {
	return apiRequest(http.MethodGet, "", url.Values{
		"path":   {p.String()},
		"fields": {fields},
	})
}

func createDirRequest(p Path) Request {
	return apiRequest(http.MethodPut, "", url.Values{"path": {p.String()}})
}

func removeRequest(p Path, permanently bool) Request {
	return apiRequest(http.MethodDelete, "", url.Values{
		"path":        {p.String()},
		"permanently": {strconv.FormatBool(permanently)},
	})
}

func uploadLinkRequest(p Path, overwrite bool) Request {
	return apiRequest(http.MethodGet, "/upload", url.Values{
		"path":      {p.String()},
		"overwrite": {strconv.FormatBool(overwrite)},
	})
}

func downloadLinkRequest(p Path) Request {
	return apiRequest(http.MethodGet, "/download", url.Values{"path": {p.String()}})
}

func relocateRequest(endpoint string, from, to Path, overwrite bool) Request {
	return apiRequest(http.MethodPost, endpoint, url.Values{
		"from":      {from.String()},
		"path":      {to.String()},
		"overwrite": {strconv.FormatBool(overwrite)},
	})
}

func rawRequest(method, href string, body func() (io.ReadCloser, error), size int64, retries int) Request {
	return Request{
		Method:     method,
		Endpoint:   href,
		Body:       body,
		Size:       size,
		MaxRetries: retries,
		Timeout:    rawTimeout,
		Raw:        true,
	}
}

func (r Request) class() string {
	if r.Raw {
		return "raw"
	}
	return "api"
}

// target is what gets logged: the resource path for API calls, and only
// the host for signed links.
func (r Request) target() string {
	if !r.Raw {
		return r.Query.Get("path")
	}

	if u, err := url.Parse(r.Endpoint); err == nil {
		return u.Host
	}
	return "signed link"
}
