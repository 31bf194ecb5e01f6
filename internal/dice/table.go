package dice

import (
	"fmt"
	"math"
)

// Type identifies a die shape.
type Type string

const (
	TypeD4  Type = "d4"
	TypeD6  Type = "d6"
	TypeD8  Type = "d8"
	TypeD10 Type = "d10"
	TypeD12 Type = "d12"
	TypeD20 Type = "d20"
)

// Table holds the fixed geometry a die type ships with: one outward unit
// normal per face and the value printed on that face. InvertUpside marks
// solids that rest on a face and are read from the bottom (the d4).
type Table struct {
	Kind         Type
	FaceCount    int
	VertexCount  int
	Normals      []Vec3
	Values       []int
	InvertUpside bool
}

// solidCounts pins the face and vertex counts each supported solid must have.
var solidCounts = map[Type]struct{ faces, vertices int }{
	TypeD4:  {4, 4},
	TypeD6:  {6, 8},
	TypeD8:  {8, 6},
	TypeD10: {10, 12},
	TypeD12: {12, 20},
	TypeD20: {20, 12},
}

const unitTolerance = 1e-9

// Validate checks the table against the solid it claims to describe. A
// failure here is a programmer error and must abort startup.
func (t Table) Validate() error {
	counts, ok := solidCounts[t.Kind]
	if !ok {
		return fmt.Errorf("dice: unknown die type %q", t.Kind)
	}
	if t.FaceCount != counts.faces {
		return fmt.Errorf("dice: %s declares %d faces, want %d", t.Kind, t.FaceCount, counts.faces)
	}
	if t.VertexCount != counts.vertices {
		return fmt.Errorf("dice: %s declares %d vertices, want %d", t.Kind, t.VertexCount, counts.vertices)
	}
	if len(t.Normals) != t.FaceCount {
		return fmt.Errorf("dice: %s has %d normals for %d faces", t.Kind, len(t.Normals), t.FaceCount)
	}
	if len(t.Values) != t.FaceCount {
		return fmt.Errorf("dice: %s has %d values for %d faces", t.Kind, len(t.Values), t.FaceCount)
	}
	for i, n := range t.Normals {
		if math.Abs(n.Length()-1) > unitTolerance {
			return fmt.Errorf("dice: %s normal %d is not unit length", t.Kind, i)
		}
	}
	seen := make(map[int]bool, t.FaceCount)
	for _, v := range t.Values {
		if v < 1 || v > t.FaceCount {
			return fmt.Errorf("dice: %s face value %d out of range 1..%d", t.Kind, v, t.FaceCount)
		}
		if seen[v] {
			return fmt.Errorf("dice: %s face value %d appears twice", t.Kind, v)
		}
		seen[v] = true
	}
	return nil
}

// TableFor returns the table for the given die type.
func TableFor(kind Type) (Table, bool) {
	t, ok := tables[kind]
	return t, ok
}

// Types lists every supported die type.
func Types() []Type {
	return []Type{TypeD4, TypeD6, TypeD8, TypeD10, TypeD12, TypeD20}
}

// ValidateAll verifies every built-in table and is called once at startup.
func ValidateAll() error {
	for _, kind := range Types() {
		table, ok := tables[kind]
		if !ok {
			return fmt.Errorf("dice: missing table for %s", kind)
		}
		if err := table.Validate(); err != nil {
			return err
		}
	}
	return nil
}

var tables = map[Type]Table{
	TypeD4:  d4Table(),
	TypeD6:  d6Table(),
	TypeD8:  d8Table(),
	TypeD10: d10Table(),
	TypeD12: d12Table(),
	TypeD20: d20Table(),
}

// sequentialValues fills 1..n in normal order. For tables built with
// mirrorPairs this makes opposite faces sum to n+1, matching physical dice.
func sequentialValues(n int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = i + 1
	}
	return values
}

// mirrorPairs completes a normal list from its first half so that the face
// at index i is opposite the face at index n-1-i.
func mirrorPairs(half []Vec3) []Vec3 {
	normals := make([]Vec3, 0, len(half)*2)
	normals = append(normals, half...)
	for i := len(half) - 1; i >= 0; i-- {
		normals = append(normals, half[i].Scale(-1))
	}
	return normals
}

// d4Table describes a tetrahedron resting on a face: one normal points
// straight down and the three upper faces tilt outward at equal angles.
// The value is read from the face touching the table.
func d4Table() Table {
	lift := 1.0 / 3.0
	spread := 2 * math.Sqrt2 / 3
	normals := []Vec3{{Y: -1}}
	for i := 0; i < 3; i++ {
		angle := 2 * math.Pi * float64(i) / 3
		normals = append(normals, Vec3{
			X: spread * math.Cos(angle),
			Y: lift,
			Z: spread * math.Sin(angle),
		})
	}
	return Table{
		Kind:         TypeD4,
		FaceCount:    4,
		VertexCount:  4,
		Normals:      normals,
		Values:       sequentialValues(4),
		InvertUpside: true,
	}
}

func d6Table() Table {
	return Table{
		Kind:        TypeD6,
		FaceCount:   6,
		VertexCount: 8,
		Normals: []Vec3{
			{Y: 1},
			{X: 1},
			{Z: 1},
			{Z: -1},
			{X: -1},
			{Y: -1},
		},
		Values: sequentialValues(6),
	}
}

func d8Table() Table {
	s := 1 / math.Sqrt(3)
	half := []Vec3{
		{X: s, Y: s, Z: s},
		{X: s, Y: s, Z: -s},
		{X: s, Y: -s, Z: s},
		{X: s, Y: -s, Z: -s},
	}
	return Table{
		Kind:        TypeD8,
		FaceCount:   8,
		VertexCount: 6,
		Normals:     mirrorPairs(half),
		Values:      sequentialValues(8),
	}
}

// d10Table describes a pentagonal trapezohedron: five kite faces tilt up
// around the equator and five tilt down, offset by a half step.
func d10Table() Table {
	lift := 1 / math.Sqrt(5)
	spread := 2 / math.Sqrt(5)
	normals := make([]Vec3, 0, 10)
	for i := 0; i < 10; i++ {
		angle := math.Pi * float64(i) / 5
		y := lift
		if i%2 == 1 {
			y = -lift
		}
		normals = append(normals, Vec3{
			X: spread * math.Cos(angle),
			Y: y,
			Z: spread * math.Sin(angle),
		})
	}
	return Table{
		Kind:        TypeD10,
		FaceCount:   10,
		VertexCount: 12,
		Normals:     normals,
		Values:      sequentialValues(10),
	}
}

func d12Table() Table {
	phi := (1 + math.Sqrt(5)) / 2
	norm := math.Sqrt(1 + phi*phi)
	a := 1 / norm
	b := phi / norm
	half := []Vec3{
		{Y: a, Z: b},
		{Y: a, Z: -b},
		{X: a, Y: b},
		{X: -a, Y: b},
		{X: b, Z: a},
		{X: b, Z: -a},
	}
	return Table{
		Kind:        TypeD12,
		FaceCount:   12,
		VertexCount: 20,
		Normals:     mirrorPairs(half),
		Values:      sequentialValues(12),
	}
}

func d20Table() Table {
	phi := (1 + math.Sqrt(5)) / 2
	s := 1 / math.Sqrt(3)
	norm := math.Sqrt(1/(phi*phi) + phi*phi)
	a := (1 / phi) / norm
	b := phi / norm
	half := []Vec3{
		{X: s, Y: s, Z: s},
		{X: s, Y: s, Z: -s},
		{X: s, Y: -s, Z: s},
		{X: s, Y: -s, Z: -s},
		{Y: a, Z: b},
		{Y: a, Z: -b},
		{X: a, Y: b},
		{X: -a, Y: b},
		{X: b, Z: a},
		{X: b, Z: -a},
	}
	return Table{
		Kind:        TypeD20,
		FaceCount:   20,
		VertexCount: 12,
		Normals:     mirrorPairs(half),
		Values:      sequentialValues(20),
	}
}
