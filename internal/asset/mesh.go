package asset

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Vertex is the layout consumed by the scene pipeline.
type Vertex struct {
	Pos   mgl32.Vec3
	Color mgl32.Vec3
	UV    mgl32.Vec2
}

type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Cube is the built-in eight-vertex colored cube.
func Cube() *Mesh {
	corners := []struct {
		pos, color mgl32.Vec3
	}{
		{mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{1, -1, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 1, -1}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{-1, 1, -1}, mgl32.Vec3{1, 1, 0}},
		{mgl32.Vec3{-1, -1, 1}, mgl32.Vec3{1, 0, 1}},
		{mgl32.Vec3{1, -1, 1}, mgl32.Vec3{0, 1, 1}},
		{mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}},
		{mgl32.Vec3{-1, 1, 1}, mgl32.Vec3{0.2, 0.6, 1}},
	}
	m := &Mesh{Name: "cube"}
	for _, c := range corners {
		m.Vertices = append(m.Vertices, Vertex{
			Pos:   c.pos,
			Color: c.color,
			UV:    mgl32.Vec2{(c.pos.X() + 1) / 2, (c.pos.Y() + 1) / 2},
		})
	}
	m.Indices = []uint32{
		0, 1, 2, 2, 3, 0, // back
		4, 5, 6, 6, 7, 4, // front
		4, 5, 1, 1, 0, 4, // bottom
		7, 6, 2, 2, 3, 7, // top
		4, 0, 3, 3, 7, 4, // left
		5, 1, 2, 2, 6, 5, // right
	}
	return m
}

// Floor is a square ground plane of the given edge length centred on the
// origin at y=0. The texture repeats once per world unit.
func Floor(size float32) *Mesh {
	h := size / 2
	gray := mgl32.Vec3{0.8, 0.8, 0.8}
	return &Mesh{
		Name: "floor",
		Vertices: []Vertex{
			{Pos: mgl32.Vec3{-h, 0, -h}, Color: gray, UV: mgl32.Vec2{0, 0}},
			{Pos: mgl32.Vec3{h, 0, -h}, Color: gray, UV: mgl32.Vec2{size, 0}},
			{Pos: mgl32.Vec3{h, 0, h}, Color: gray, UV: mgl32.Vec2{size, size}},
			{Pos: mgl32.Vec3{-h, 0, h}, Color: gray, UV: mgl32.Vec2{0, size}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}
