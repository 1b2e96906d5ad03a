package fakedisk

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Fault makes the next Times requests matching Method and the URL path
// prefix fail. With Drop set the connection is closed without a response.
type Fault struct {
	Method     string
	Path       string
	Status     int
	RetryAfter string
	Drop       bool
	Times      int
}

func (s *Server) Inject(f Fault) {
	if f.Times < 1 {
		f.Times = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults = append(s.faults, &f)
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := s.takeFault(c.Request())
		if f == nil {
			return next(c)
		}

		if f.Drop {
			if hj, ok := c.Response().Writer.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					_ = conn.Close()
					return nil
				}
			}
		}

		if f.RetryAfter != "" {
			c.Response().Header().Set("Retry-After", f.RetryAfter)
		}

		status := f.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}

		return apiError(c, status, "InjectedFault")
	}
}

func (s *Server) takeFault(r *http.Request) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.faults {
		if f.Method != "" && f.Method != r.Method {
			continue
		}
		if f.Path != "" && !strings.HasPrefix(r.URL.Path, f.Path) {
			continue
		}

		f.Times--
		if f.Times == 0 {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
		}

		return f
	}

	return nil
}
