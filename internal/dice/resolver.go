package dice

import "math"

var (
	worldUp   = Vec3{Y: 1}
	worldDown = Vec3{Y: -1}
)

// FaceUp resolves the value a die shows for the given orientation. Every
// stored normal is rotated into world space and the face whose normal aligns
// best with world up wins; tables flagged InvertUpside read against world
// down instead. Exactly equal dot products resolve to the lowest face index
// so the outcome stays deterministic.
func (t Table) FaceUp(orientation Quat) int {
	reference := worldUp
	if t.InvertUpside {
		reference = worldDown
	}
	orientation = orientation.Normalized()

	best := 0
	bestDot := math.Inf(-1)
	for i, normal := range t.Normals {
		dot := orientation.Rotate(normal).Dot(reference)
		if dot > bestDot {
			bestDot = dot
			best = i
		}
	}
	return t.Values[best]
}
