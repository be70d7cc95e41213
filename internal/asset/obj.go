package asset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/g3n/engine/loader/obj"
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// LoadMesh reads a Wavefront OBJ file. A material library with the same
// base name is read when present. An empty path yields Cube.
func LoadMesh(path string) (*Mesh, error) {
	if path == "" {
		return Cube(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	defer f.Close()

	var mtl io.Reader = strings.NewReader("")
	if mf, err := os.Open(strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"); err == nil {
		defer mf.Close()
		mtl = mf
	}

	dec, err := obj.DecodeReader(f, mtl)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	m, err := meshFromOBJ(dec)
	if err != nil {
		return nil, &ResourceLoadError{Path: path, Err: err}
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return m, nil
}

// ParseOBJ decodes an OBJ stream without materials.
func ParseOBJ(r io.Reader) (*Mesh, error) {
	dec, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, err
	}
	return meshFromOBJ(dec)
}

type objKey struct {
	v, t, n int
}

// meshFromOBJ fan-triangulates every face of every object. Identical
// corners share one vertex. Vertex color is the absolute normal, or white
// without normals.
func meshFromOBJ(dec *obj.Decoder) (*Mesh, error) {
	b := objBuilder{dec: dec, mesh: &Mesh{}, seen: map[objKey]uint32{}}
	for _, o := range dec.Objects {
		for _, face := range o.Faces {
			if len(face.Vertices) < 3 {
				return nil, fmt.Errorf("object %s: face needs at least 3 corners", o.Name)
			}
			for i := 2; i < len(face.Vertices); i++ {
				for _, c := range [3]int{0, i - 1, i} {
					if err := b.corner(face, c); err != nil {
						return nil, fmt.Errorf("object %s: %w", o.Name, err)
					}
				}
			}
		}
	}
	if len(b.mesh.Indices) == 0 {
		return nil, errors.New("no faces")
	}
	return b.mesh, nil
}

type objBuilder struct {
	dec  *obj.Decoder
	mesh *Mesh
	seen map[objKey]uint32
}

func (b *objBuilder) corner(face obj.Face, c int) error {
	key := objKey{
		v: face.Vertices[c],
		t: b.ref(face.Uvs, c, len(b.dec.Uvs)/2),
		n: b.ref(face.Normals, c, len(b.dec.Normals)/3),
	}
	if key.v < 0 || key.v >= len(b.dec.Vertices)/3 {
		return fmt.Errorf("vertex %d out of range", face.Vertices[c]+1)
	}
	idx, ok := b.seen[key]
	if !ok {
		idx = uint32(len(b.mesh.Vertices))
		b.seen[key] = idx
		b.mesh.Vertices = append(b.mesh.Vertices, b.vertex(key))
	}
	b.mesh.Indices = append(b.mesh.Indices, idx)
	return nil
}

// ref is the corner's index into an attribute array of n entries, or -1
// when the corner has none.
func (b *objBuilder) ref(refs []int, c, n int) int {
	if c >= len(refs) || refs[c] < 0 || refs[c] >= n {
		return -1
	}
	return refs[c]
}

func (b *objBuilder) vertex(k objKey) Vertex {
	p := b.dec.Vertices
	v := Vertex{Pos: mgl32.Vec3{p[k.v*3], p[k.v*3+1], p[k.v*3+2]}, Color: mgl32.Vec3{1, 1, 1}}
	if k.t >= 0 {
		// OBJ puts v=0 at the bottom, Vulkan samples from the top.
		v.UV = mgl32.Vec2{b.dec.Uvs[k.t*2], 1 - b.dec.Uvs[k.t*2+1]}
	}
	if k.n >= 0 {
		n := b.dec.Normals
		v.Color = mgl32.Vec3{abs(n[k.n*3]), abs(n[k.n*3+1]), abs(n[k.n*3+2])}
	}
	return v
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
