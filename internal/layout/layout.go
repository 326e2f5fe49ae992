// Package layout positions labels inside their containers after a change.
// Text measurement is not done here; labels keep their stored size.
package layout

import (
	"math"

	"github.com/starford/vellum/internal/models"
)

// Redrawer refreshes the geometry of a label bound to container. Writes go
// through update so they are tracked with the rest of the change.
type Redrawer interface {
	RedrawBoundingBox(label, container *models.Element, elements *models.ElementsMap, update models.UpdateFunc)
}

// Noop leaves geometry untouched.
type Noop struct{}

func (Noop) RedrawBoundingBox(*models.Element, *models.Element, *models.ElementsMap, models.UpdateFunc) {}

// Centered centers the label inside its container. Connector containers
// carry the label at the middle of their path.
type Centered struct{}

func (Centered) RedrawBoundingBox(label, container *models.Element, _ *models.ElementsMap, update models.UpdateFunc) {
	if label == nil || container == nil || label.IsDeleted || container.IsDeleted {
		return
	}
	cx, cy := center(container)
	x := round(cx - label.Width/2)
	y := round(cy - label.Height/2)
	update(label.ID, func(e *models.Element) {
		e.X, e.Y = x, y
		e.Angle = container.Angle
	})
}

func center(el *models.Element) (float64, float64) {
	if el.Type.IsLinear() && len(el.Points) > 0 {
		p := midpoint(el.Points)
		return el.X + p[0], el.Y + p[1]
	}
	return el.X + el.Width/2, el.Y + el.Height/2
}

// midpoint returns the point halfway along the polyline.
func midpoint(points []models.Point) models.Point {
	if len(points) == 1 {
		return points[0]
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += dist(points[i-1], points[i])
	}
	half := total / 2
	for i := 1; i < len(points); i++ {
		seg := dist(points[i-1], points[i])
		if seg > 0 && half <= seg {
			t := half / seg
			return models.Point{
				points[i-1][0] + (points[i][0]-points[i-1][0])*t,
				points[i-1][1] + (points[i][1]-points[i-1][1])*t,
			}
		}
		half -= seg
	}
	return points[len(points)-1]
}

func dist(a, b models.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
