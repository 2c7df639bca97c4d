// Package pagination reads limit/offset query parameters and reports page
// metadata through response headers, leaving list bodies as plain arrays.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	HeaderTotalCount = "X-Total-Count"
	HeaderLink       = "Link"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links builds an RFC 8288 Link header value for the page. Existing query
// parameters other than limit and offset are preserved.
func (p Params) Links(path string, query url.Values, total int) string {
	link := func(rel string, offset int) string {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(p.Limit))
		q.Set("offset", strconv.Itoa(offset))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, path, q.Encode(), rel)
	}

	out := link("self", p.Offset)
	if p.HasNext(total) {
		out += ", " + link("next", p.NextOffset())
	}
	if p.HasPrevious() {
		out += ", " + link("prev", p.PreviousOffset())
	}
	return out
}

// SetHeaders writes the total count and Link header for a page.
func SetHeaders(c echo.Context, p Params, total int) {
	h := c.Response().Header()
	h.Set(HeaderTotalCount, strconv.Itoa(total))
	h.Set(HeaderLink, p.Links(c.Request().URL.Path, c.Request().URL.Query(), total))
}
