package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Pagination contains page-based pagination info.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// LastPage returns the 1-based number of the final page.
func (p Pagination) LastPage() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// SetLinkHeaders adds RFC 8288 Link headers for a page of results.
// Query parameters other than page and page_size are preserved.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	if p.PageSize <= 0 {
		return
	}
	base := c.Path()

	keep := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if key != "page" && key != "page_size" {
			keep.Add(key, string(v))
		}
	})
	link := func(page int, rel string) string {
		q := url.Values{}
		for k, vs := range keep {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(p.PageSize))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, base, q.Encode(), rel)
	}

	last := p.LastPage()
	links := []string{link(1, "first")}
	if p.Page > 1 {
		links = append(links, link(p.Page-1, "prev"))
	}
	if p.Page < last {
		links = append(links, link(p.Page+1, "next"))
	}
	links = append(links, link(last, "last"))

	c.Set("Link", strings.Join(links, ", "))
}
