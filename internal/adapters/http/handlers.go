package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

const maxQueryLen = 200

// CountResponse is the body of the count endpoint.
type CountResponse struct {
	SearchID   string               `json:"search_id"`
	LocationID string               `json:"location_id"`
	Status     domain.SessionStatus `json:"status"`
	Mode       domain.SearchMode    `json:"mode,omitempty"`
	TotalCount int                  `json:"total_count"`
	Outcome    domain.Outcome       `json:"outcome,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  string               `json:"error_kind,omitempty"`
}

// FilterResponse is the debug view of the plan for a location.
type FilterResponse struct {
	LocationID  string         `json:"location_id"`
	Plan        *usecases.Plan `json:"plan"`
	FilterChars int            `json:"filter_chars"`
}

// queryText reads and bounds the free-text "q" parameter.
func queryText(c *fiber.Ctx) (string, bool) {
	q := strings.TrimSpace(c.Query("q"))
	return q, len(q) <= maxQueryLen
}

// SearchLocationsHandler autocompletes place names for the search box.
func SearchLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, ok := queryText(c)
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if !ok {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		locs, err := deps.Locations.Search(c.UserContext(), q, c.QueryInt("limit", 0))
		if err != nil {
			return errDomain(c, err)
		}
		if locs == nil {
			locs = []domain.Location{}
		}
		return c.JSON(locs)
	}
}

// GetLocationHandler returns a single location by ID.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "location id is required")
		}

		loc, err := deps.Locations.Get(c.UserContext(), id)
		if isNotFound(err) {
			return errNotFound(c, "location not found")
		}
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(loc)
	}
}

// LocationPropertiesHandler plans the location's query and returns one page
// of properties. Planning and index failures keep the page body and map
// its error kind onto the status code.
func LocationPropertiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		q, ok := queryText(c)
		if !ok {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		return propertiesPage(c, deps, id, q)
	}
}

// SearchPropertiesHandler runs a free-text property search with no location.
func SearchPropertiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, ok := queryText(c)
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if !ok {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		return propertiesPage(c, deps, "", q)
	}
}

func propertiesPage(c *fiber.Ctx, deps *Dependencies, locationID, q string) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return errBadRequest(c, "page must be >= 1")
	}
	pageSize := c.QueryInt("page_size", 0)
	if pageSize < 0 {
		return errBadRequest(c, "page_size must be >= 0")
	}

	res, err := deps.Search.FetchPage(c.UserContext(), locationID, q, page, pageSize)
	if isNotFound(err) {
		return errNotFound(c, "location not found")
	}
	if err != nil {
		return errDomain(c, err)
	}
	c.Locals("search_id", res.SearchID)

	if res.ErrorKind == "" {
		SetLinkHeaders(c, Pagination{Page: res.Page, PageSize: res.PageSize, Total: res.TotalCount})
	}
	if res.Outcome == domain.OutcomeFallback {
		c.Set(fiber.HeaderCacheControl, "no-store")
	}
	return c.Status(statusForKind(res.ErrorKind)).JSON(res)
}

// LocationCountHandler returns the number of properties inside a location.
func LocationCountHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		q, ok := queryText(c)
		if !ok {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		snap, err := deps.Search.Count(c.UserContext(), id, q)
		if isNotFound(err) {
			return errNotFound(c, "location not found")
		}
		if err != nil {
			return errDomain(c, err)
		}
		c.Locals("search_id", snap.SearchID)

		return c.Status(statusForKind(snap.ErrorKind)).JSON(CountResponse{
			SearchID:   snap.SearchID,
			LocationID: id,
			Status:     snap.Status,
			Mode:       snap.Mode,
			TotalCount: snap.TotalCount,
			Outcome:    snap.Outcome,
			Error:      snap.Error,
			ErrorKind:  snap.ErrorKind,
		})
	}
}

// LocationFilterHandler shows the query plan a search for the location
// would use, including the serialized geo filter.
func LocationFilterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		plan, err := deps.Search.Plan(c.UserContext(), id, "")
		if isNotFound(err) {
			return errNotFound(c, "location not found")
		}
		if err != nil {
			return errDomain(c, err)
		}

		resp := FilterResponse{LocationID: id, Plan: plan}
		if plan.Filter != nil {
			resp.FilterChars = plan.Filter.Len()
		}
		return c.JSON(resp)
	}
}
