package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// jsonScalar passes property attributes through untouched.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize:   func(v interface{}) interface{} { return v },
	ParseValue:  func(v interface{}) interface{} { return v },
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if v, ok := valueAST.(*ast.StringValue); ok {
			return v.Value
		}
		return nil
	},
})

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	latLngType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LatLng",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"kind":          &graphql.Field{Type: graphql.String},
			"country":       &graphql.Field{Type: graphql.String},
			"region":        &graphql.Field{Type: graphql.String},
			"municipality":  &graphql.Field{Type: graphql.String},
			"parish":        &graphql.Field{Type: graphql.String},
			"geometry_kind": &graphql.Field{Type: graphql.String},
			"center":        &graphql.Field{Type: latLngType},
			"radius_meters": &graphql.Field{Type: graphql.Float},
			"has_filter":    &graphql.Field{Type: graphql.Boolean},
		},
	})

	propertyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Property",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"geoloc":     &graphql.Field{Type: latLngType},
			"attributes": &graphql.Field{Type: jsonScalar},
		},
	})

	pageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PropertyPage",
		Fields: graphql.Fields{
			"search_id":   &graphql.Field{Type: graphql.String},
			"page":        &graphql.Field{Type: graphql.Int},
			"page_size":   &graphql.Field{Type: graphql.Int},
			"total_count": &graphql.Field{Type: graphql.Int},
			"outcome":     &graphql.Field{Type: graphql.String},
			"error":       &graphql.Field{Type: graphql.String},
			"error_kind":  &graphql.Field{Type: graphql.String},
			"documents":   &graphql.Field{Type: graphql.NewList(propertyType)},
		},
	})

	countType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PropertyCount",
		Fields: graphql.Fields{
			"search_id":   &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"mode":        &graphql.Field{Type: graphql.String},
			"total_count": &graphql.Field{Type: graphql.Int},
			"outcome":     &graphql.Field{Type: graphql.String},
			"error_kind":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"locations": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "Autocomplete locations by name",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 8},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					locs, err := deps.Locations.Search(p.Context, p.Args["query"].(string), p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(locs))
					for i := range locs {
						out = append(out, gqlLocation(&locs[i]))
					}
					return out, nil
				},
			},
			"location": &graphql.Field{
				Type:        locationType,
				Description: "Get a location by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					loc, err := deps.Locations.Get(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return gqlLocation(loc), nil
				},
			},
			"properties": &graphql.Field{
				Type:        pageType,
				Description: "One page of properties inside a location and/or matching text",
				Args: graphql.FieldConfigArgument{
					"location_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"query":       &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"page":        &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"page_size":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res, err := deps.Search.FetchPage(p.Context,
						p.Args["location_id"].(string), p.Args["query"].(string),
						p.Args["page"].(int), p.Args["page_size"].(int))
					if err != nil {
						return nil, err
					}
					return gqlPage(res), nil
				},
			},
			"propertyCount": &graphql.Field{
				Type:        countType,
				Description: "Number of properties inside a location",
				Args: graphql.FieldConfigArgument{
					"location_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"query":       &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Search.Count(p.Context, p.Args["location_id"].(string), p.Args["query"].(string))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"search_id":   snap.SearchID,
						"status":      string(snap.Status),
						"mode":        string(snap.Mode),
						"total_count": snap.TotalCount,
						"outcome":     string(snap.Outcome),
						"error_kind":  snap.ErrorKind,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func gqlLatLng(p *domain.LatLng) interface{} {
	if p == nil {
		return nil
	}
	return map[string]interface{}{"lat": p.Lat, "lng": p.Lng}
}

func gqlLocation(l *domain.Location) map[string]interface{} {
	return map[string]interface{}{
		"id":            l.ID,
		"name":          l.Name,
		"kind":          l.Kind,
		"country":       l.Hierarchy.Country,
		"region":        l.Hierarchy.Region,
		"municipality":  l.Hierarchy.Municipality,
		"parish":        l.Hierarchy.Parish,
		"geometry_kind": string(l.GeometryKind),
		"center":        gqlLatLng(l.Center),
		"radius_meters": l.RadiusMeters,
		"has_filter":    l.Filter != nil,
	}
}

func gqlPage(r *domain.SearchResultPage) map[string]interface{} {
	docs := make([]map[string]interface{}, 0, len(r.Documents))
	for _, d := range r.Documents {
		docs = append(docs, map[string]interface{}{
			"id":         d.ID,
			"geoloc":     gqlLatLng(d.Geoloc),
			"attributes": d.Attributes,
		})
	}
	return map[string]interface{}{
		"search_id":   r.SearchID,
		"page":        r.Page,
		"page_size":   r.PageSize,
		"total_count": r.TotalCount,
		"outcome":     string(r.Outcome),
		"error":       r.Error,
		"error_kind":  r.ErrorKind,
		"documents":   docs,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set(fiber.HeaderCacheControl, "private, max-age=0")
		return c.JSON(result)
	}
}
