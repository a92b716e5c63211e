package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

const locationColumns = `
	id, name, kind,
	COALESCE(country, ''), COALESCE(region, ''), COALESCE(municipality, ''), COALESCE(parish, ''),
	COALESCE(geometry_kind, ''), geometry,
	center_lat, center_lng, radius_meters,
	COALESCE(filter_kind, ''), COALESCE(filter_text, ''),
	updated_at`

const upsertLocation = `
	INSERT INTO locations (id, name, kind, country, region, municipality, parish,
	                       geometry_kind, geometry, center_lat, center_lng, radius_meters, updated_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
	        NULLIF($8, ''), $9, $10, $11, $12, now())
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, kind = EXCLUDED.kind,
	    country = EXCLUDED.country, region = EXCLUDED.region,
	    municipality = EXCLUDED.municipality, parish = EXCLUDED.parish,
	    geometry_kind = EXCLUDED.geometry_kind, geometry = EXCLUDED.geometry,
	    center_lat = EXCLUDED.center_lat, center_lng = EXCLUDED.center_lng,
	    radius_meters = EXCLUDED.radius_meters,
	    filter_kind = CASE WHEN locations.geometry IS DISTINCT FROM EXCLUDED.geometry
	                       THEN NULL ELSE locations.filter_kind END,
	    filter_text = CASE WHEN locations.geometry IS DISTINCT FROM EXCLUDED.geometry
	                       THEN NULL ELSE locations.filter_text END,
	    updated_at = now()`

// LocationRepo implements ports.LocationRepository with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func upsertArgs(l *domain.Location) []any {
	var lat, lng *float64
	if l.Center != nil {
		lat, lng = &l.Center.Lat, &l.Center.Lng
	}
	var geom []byte
	if len(l.Geometry) > 0 {
		geom = l.Geometry
	}
	return []any{
		l.ID, l.Name, l.Kind,
		l.Hierarchy.Country, l.Hierarchy.Region, l.Hierarchy.Municipality, l.Hierarchy.Parish,
		string(l.GeometryKind), geom, lat, lng, l.RadiusMeters,
	}
}

// Upsert inserts or updates a single location. A changed geometry clears
// the precomputed filter.
func (r *LocationRepo) Upsert(ctx context.Context, l *domain.Location) error {
	if _, err := r.db.Pool.Exec(ctx, upsertLocation, upsertArgs(l)...); err != nil {
		return fmt.Errorf("upsert location %s: %w", l.ID, err)
	}
	return nil
}

// UpsertBatch inserts many locations using pgx.Batch.
func (r *LocationRepo) UpsertBatch(ctx context.Context, locs []domain.Location) error {
	batch := &pgx.Batch{}
	for i := range locs {
		batch.Queue(upsertLocation, upsertArgs(&locs[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range locs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a location by ID.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// ListIDs pages through location IDs in ascending order.
func (r *LocationRepo) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id FROM locations
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetFilter stores or, with a nil filter, clears the precomputed filter.
func (r *LocationRepo) SetFilter(ctx context.Context, id string, f *domain.GeoFilter) error {
	var kind, text *string
	if f != nil {
		k := string(f.Kind)
		kind, text = &k, &f.Text
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE locations SET filter_kind = $2, filter_text = $3, filter_updated_at = now()
		WHERE id = $1
	`, id, kind, text)
	if err != nil {
		return fmt.Errorf("set filter for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanLocation(row pgx.Row) (*domain.Location, error) {
	var (
		l                domain.Location
		geometryKind     string
		geometry         []byte
		lat, lng         *float64
		radius           float64
		filterKind, text string
	)
	if err := row.Scan(
		&l.ID, &l.Name, &l.Kind,
		&l.Hierarchy.Country, &l.Hierarchy.Region, &l.Hierarchy.Municipality, &l.Hierarchy.Parish,
		&geometryKind, &geometry,
		&lat, &lng, &radius,
		&filterKind, &text,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.GeometryKind = domain.GeometryKind(geometryKind)
	if len(geometry) > 0 {
		l.Geometry = geometry
	}
	if lat != nil && lng != nil {
		l.Center = &domain.LatLng{Lat: *lat, Lng: *lng}
	}
	l.RadiusMeters = radius
	if text != "" {
		l.Filter = &domain.GeoFilter{Kind: domain.GeoFilterKind(filterKind), Text: text}
	}
	return &l, nil
}
