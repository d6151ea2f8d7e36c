package cache

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type recorder struct {
	http.ResponseWriter
	body io.Writer
	buf  *bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware serves GET requests from the cache, and caches 200 responses.
//
// Responses with "Cache-Control: no-store" are not cached.
// Responses are marked with "X-Cache: hit" or "X-Cache: miss".
func (c *Cache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			req := ec.Request()
			if req.Method != http.MethodGet {
				return next(ec)
			}

			key := Key(req)
			if p, ok := c.Get(key); ok {
				ec.Response().Header().Set("X-Cache", "hit")
				return ec.Blob(p.Status, p.ContentType, p.Body)
			}

			resp := ec.Response()
			resp.Header().Set("X-Cache", "miss")
			buf := new(bytes.Buffer)
			w := resp.Writer
			resp.Writer = &recorder{ResponseWriter: w, body: io.MultiWriter(w, buf), buf: buf}
			defer func() { resp.Writer = w }()

			if err := next(ec); err != nil {
				return err
			}
			if resp.Status == http.StatusOK && !noStore(resp.Header()) {
				c.Set(key, Page{
					Status:      resp.Status,
					ContentType: resp.Header().Get(echo.HeaderContentType),
					Body:        bytes.Clone(buf.Bytes()),
				})
			}
			return nil
		}
	}
}

func noStore(h http.Header) bool {
	for _, v := range h.Values(echo.HeaderCacheControl) {
		for _, d := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(d), "no-store") {
				return true
			}
		}
	}
	return false
}
