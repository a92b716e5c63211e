package geospatial

import (
	"fmt"
	"math"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// SimplifyOptions controls the tolerance schedule of the iterative policies.
// Tolerances are in degrees.
type SimplifyOptions struct {
	StartTolerance float64
	MaxTolerance   float64
	Growth         float64
}

// DefaultSimplifyOptions starts at ~11 m and stops at ~5.5 km.
func DefaultSimplifyOptions() SimplifyOptions {
	return SimplifyOptions{StartTolerance: 0.0001, MaxTolerance: 0.05, Growth: 2}
}

func (o SimplifyOptions) normalized() SimplifyOptions {
	d := DefaultSimplifyOptions()
	if o.StartTolerance <= 0 {
		o.StartTolerance = d.StartTolerance
	}
	if o.MaxTolerance < o.StartTolerance {
		o.MaxTolerance = o.StartTolerance
	}
	if o.Growth <= 1 {
		o.Growth = d.Growth
	}
	return o
}

// SimplifyResult is the outcome of an iterative simplification.
type SimplifyResult struct {
	Ring       domain.SearchRing
	Tolerance  float64 // tolerance that produced Ring, 0 if untouched
	Iterations int
	Fits       bool
}

// PerpendicularDistance is the distance of p to the line through a and b,
// computed as twice the triangle area over the base length. a == b falls back
// to the Euclidean distance from p to a.
func PerpendicularDistance(p, a, b domain.LatLng) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	base := math.Sqrt(dx*dx + dy*dy)
	if base == 0 {
		ex := p.Lng - a.Lng
		ey := p.Lat - a.Lat
		return math.Sqrt(ex*ex + ey*ey)
	}
	area := math.Abs(dx*(p.Lat-a.Lat)-(p.Lng-a.Lng)*dy) / 2
	return 2 * area / base
}

// DouglasPeucker simplifies an open polyline. Inputs of two points or fewer
// are returned unchanged. Negative tolerances are treated as 0.
func DouglasPeucker(points []domain.LatLng, tolerance float64) []domain.LatLng {
	if len(points) <= 2 {
		return points
	}
	if tolerance < 0 {
		tolerance = 0
	}

	end := len(points) - 1
	dmax, index := 0.0, 0
	for i := 1; i < end; i++ {
		if d := PerpendicularDistance(points[i], points[0], points[end]); d > dmax {
			dmax, index = d, i
		}
	}

	if dmax > tolerance {
		left := DouglasPeucker(points[:index+1], tolerance)
		right := DouglasPeucker(points[index:], tolerance)

		out := make([]domain.LatLng, 0, len(left)+len(right)-1)
		out = append(out, left[:len(left)-1]...)
		return append(out, right...)
	}

	return []domain.LatLng{points[0], points[end]}
}

// Simplify runs one Douglas-Peucker pass over a ring at the given tolerance.
// The closing duplicate is stripped before the pass and restored after it.
// A pass that would leave fewer than 3 distinct points returns the smallest
// valid ring instead: the two ends of the open ring and the point farthest
// from the chord between them.
func Simplify(r domain.SearchRing, tolerance float64) domain.SearchRing {
	out, ok := simplifyOnce(r, tolerance)
	if !ok {
		return minimalRing(r)
	}
	return out
}

func minimalRing(r domain.SearchRing) domain.SearchRing {
	open := r.Open()
	if len(open) < 3 {
		return r
	}
	end := len(open) - 1
	dmax, index := -1.0, 1
	for i := 1; i < end; i++ {
		if d := PerpendicularDistance(open[i], open[0], open[end]); d > dmax {
			dmax, index = d, i
		}
	}
	out := domain.SearchRing{Points: []domain.LatLng{open[0], open[index], open[end]}}
	if out.DistinctPoints() < 3 {
		return r
	}
	if r.Closed() {
		out.Points = append(out.Points, out.Points[0])
	}
	return out
}

func simplifyOnce(r domain.SearchRing, tolerance float64) (domain.SearchRing, bool) {
	closed := r.Closed()
	reduced := DouglasPeucker(r.Open(), tolerance)

	pts := make([]domain.LatLng, len(reduced), len(reduced)+1)
	copy(pts, reduced)
	out := domain.SearchRing{Points: pts}
	if out.DistinctPoints() < 3 {
		return domain.SearchRing{}, false
	}
	if closed {
		out.Points = append(out.Points, out.Points[0])
	}
	return out, true
}

// SimplifyToFit grows the tolerance until serialize(ring) is at most maxChars.
// When the schedule runs out, or simplifying further would leave fewer than
// 3 points, the smallest ring reached is returned with an error wrapping
// domain.ErrOversizeGeometry.
func SimplifyToFit(r domain.SearchRing, serialize func(domain.SearchRing) string, maxChars int, opts SimplifyOptions) (SimplifyResult, error) {
	res := simplifyUntil(r, opts, func(c domain.SearchRing) bool {
		return len(serialize(c)) <= maxChars
	})
	if !res.Fits {
		return res, fmt.Errorf("%w: %d chars over budget of %d after %d iterations (%d points)",
			domain.ErrOversizeGeometry, len(serialize(res.Ring))-maxChars, maxChars, res.Iterations, res.Ring.Len())
	}
	return res, nil
}

// SimplifyToMaxPoints grows the tolerance until the ring, closing duplicate
// included, has at most maxPoints points.
func SimplifyToMaxPoints(r domain.SearchRing, maxPoints int, opts SimplifyOptions) (SimplifyResult, error) {
	res := simplifyUntil(r, opts, func(c domain.SearchRing) bool {
		return c.Len() <= maxPoints
	})
	if !res.Fits {
		return res, fmt.Errorf("%w: %d points left, limit %d", domain.ErrOversizeGeometry, res.Ring.Len(), maxPoints)
	}
	return res, nil
}

func simplifyUntil(r domain.SearchRing, opts SimplifyOptions, done func(domain.SearchRing) bool) SimplifyResult {
	res := SimplifyResult{Ring: r}
	if done(r) {
		res.Fits = true
		return res
	}

	opts = opts.normalized()
	tol := opts.StartTolerance
	for {
		res.Iterations++
		cand, ok := simplifyOnce(r, tol)
		if !ok {
			return res
		}
		res.Ring, res.Tolerance = cand, tol
		if done(cand) {
			res.Fits = true
			return res
		}
		if tol >= opts.MaxTolerance {
			return res
		}
		tol = math.Min(tol*opts.Growth, opts.MaxTolerance)
	}
}
