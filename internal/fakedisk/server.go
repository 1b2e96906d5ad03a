// Package fakedisk serves an in-memory implementation of the cloud disk
// REST API. It backs the devserver command and the transport and sync tests.
package fakedisk

import (
	"context"
	"errors"
	"io"
	"kbsync/internal/logger"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// APIPrefix is the path the resources API is mounted on.
const APIPrefix = "/v1/disk/resources"

const (
	defaultLimit = 20
	maxLimit     = 10000
)

type resource struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Type     string    `json:"type"`
	Size     int64     `json:"size,omitempty"`
	MD5      string    `json:"md5,omitempty"`
	Modified time.Time `json:"modified"`
	Embedded *embedded `json:"_embedded,omitempty"`
}

type embedded struct {
	Path   string     `json:"path"`
	Items  []resource `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
}

type link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

type pendingLink struct {
	path   string
	upload bool
}

// Call is one request as the server received it.
type Call struct {
	Method string
	Path   string
	Query  url.Values
}

type Server struct {
	echo  *echo.Echo
	store *Store
	token string

	mu     sync.Mutex
	links  map[string]pendingLink
	faults []*Fault
	calls  []Call
}

// NewServer returns a server over an empty store. An empty token disables
// the Authorization check.
func NewServer(token string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		store: NewStore(),
		token: token,
		links: make(map[string]pendingLink),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.Use(s.record, s.inject)

	g := s.echo.Group(APIPrefix, s.authorize)
	g.GET("", s.handleGet)
	g.PUT("", s.handleMkdir)
	g.DELETE("", s.handleDelete)
	g.GET("/upload", s.handleUploadLink)
	g.GET("/download", s.handleDownloadLink)
	g.POST("/move", s.handleMove)
	g.POST("/copy", s.handleCopy)

	// Signed links carry no token, like the real transfer hosts.
	s.echo.PUT("/transfer/upload/:id", s.handleUpload)
	s.echo.GET("/transfer/download/:id", s.handleDownload)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks serving on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	logger.Log.Info("fake disk started",
		zap.String("addr", addr),
		zap.String("api", APIPrefix))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Store() *Store {
	return s.store
}

// Calls returns the requests received so far, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Call(nil), s.calls...)
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: req.Method, Path: req.URL.Path, Query: req.URL.Query()})
		s.mu.Unlock()

		return next(c)
	}
}

func (s *Server) authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token != "" && c.Request().Header.Get("Authorization") != "OAuth "+s.token {
			return apiError(c, http.StatusUnauthorized, "UnauthorizedError")
		}
		return next(c)
	}
}

func (s *Server) handleGet(c echo.Context) error {
	p := normalize(c.QueryParam("path"))

	res, ok := s.store.lookup(p)
	if !ok {
		return apiError(c, http.StatusNotFound, "DiskNotFoundError")
	}

	if res.Type != "dir" {
		return c.JSON(http.StatusOK, res)
	}

	limit := queryInt(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := queryInt(c, "offset", 0)

	items := s.store.children(p)
	total := len(items)
	lo, hi := min(offset, total), min(offset+limit, total)

	res.Embedded = &embedded{
		Path:   p,
		Items:  append([]resource{}, items[lo:hi]...),
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}

	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleMkdir(c echo.Context) error {
	p := normalize(c.QueryParam("path"))

	if code := s.store.mkdir(p); code != http.StatusCreated {
		return apiError(c, code, "DiskPathPointsToExistentDirectoryError")
	}

	return c.JSON(http.StatusCreated, s.resourceLink(c, p))
}

func (s *Server) handleDelete(c echo.Context) error {
	p := normalize(c.QueryParam("path"))

	if code := s.store.remove(p); code != http.StatusNoContent {
		return apiError(c, code, "DiskNotFoundError")
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUploadLink(c echo.Context) error {
	p := normalize(c.QueryParam("path"))
	overwrite := c.QueryParam("overwrite") == "true"

	if code := s.store.canPut(p, overwrite); code != http.StatusOK {
		return apiError(c, code, "DiskPathDoesntExistsError")
	}

	return c.JSON(http.StatusOK, s.newLink(c, p, true))
}

func (s *Server) handleDownloadLink(c echo.Context) error {
	p := normalize(c.QueryParam("path"))

	res, ok := s.store.lookup(p)
	if !ok {
		return apiError(c, http.StatusNotFound, "DiskNotFoundError")
	}
	if res.Type == "dir" {
		return apiError(c, http.StatusBadRequest, "DiskNotAFileError")
	}

	return c.JSON(http.StatusOK, s.newLink(c, p, false))
}

func (s *Server) handleMove(c echo.Context) error {
	return s.relocate(c, false)
}

func (s *Server) handleCopy(c echo.Context) error {
	return s.relocate(c, true)
}

func (s *Server) relocate(c echo.Context, keepSource bool) error {
	from := normalize(c.QueryParam("from"))
	to := normalize(c.QueryParam("path"))
	overwrite := c.QueryParam("overwrite") == "true"

	if code := s.store.relocate(from, to, overwrite, keepSource); code != http.StatusCreated {
		return apiError(c, code, "DiskResourceAlreadyExistsError")
	}

	return c.JSON(http.StatusCreated, s.resourceLink(c, to))
}

func (s *Server) handleUpload(c echo.Context) error {
	s.mu.Lock()
	l, ok := s.links[c.Param("id")]
	s.mu.Unlock()

	if !ok || !l.upload {
		return c.NoContent(http.StatusNotFound)
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	code := s.store.put(l.path, data)
	if code == http.StatusCreated {
		s.mu.Lock()
		delete(s.links, c.Param("id"))
		s.mu.Unlock()
	}

	return c.NoContent(code)
}

func (s *Server) handleDownload(c echo.Context) error {
	s.mu.Lock()
	l, ok := s.links[c.Param("id")]
	s.mu.Unlock()

	if !ok || l.upload {
		return c.NoContent(http.StatusNotFound)
	}

	data, ok := s.store.ReadFile(l.path)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}

	return c.Blob(http.StatusOK, "application/octet-stream", data)
}

func (s *Server) newLink(c echo.Context, p string, upload bool) link {
	id := uuid.NewString()

	s.mu.Lock()
	s.links[id] = pendingLink{path: p, upload: upload}
	s.mu.Unlock()

	kind, method := "download", http.MethodGet
	if upload {
		kind, method = "upload", http.MethodPut
	}

	return link{
		Href:   c.Scheme() + "://" + c.Request().Host + "/transfer/" + kind + "/" + id,
		Method: method,
	}
}

func (s *Server) resourceLink(c echo.Context, p string) link {
	return link{
		Href:   c.Scheme() + "://" + c.Request().Host + APIPrefix + "?path=" + url.QueryEscape(p),
		Method: http.MethodGet,
	}
}

func apiError(c echo.Context, code int, name string) error {
	return c.JSON(code, map[string]string{
		"error":       name,
		"description": strings.ToLower(http.StatusText(code)),
	})
}

func queryInt(c echo.Context, key string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
