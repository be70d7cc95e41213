package asset

import (
	"context"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// BuiltinFloor as a mesh path selects Floor(FloorSize).
const (
	BuiltinFloor = "builtin:floor"
	FloorSize    = 20
)

// ObjectSpec names the files behind one drawable. Empty paths select the
// built-in cube and checker texture.
type ObjectSpec struct {
	Name    string
	Mesh    string
	Texture string
	// Base is the model transform applied before any animation.
	Base mgl32.Mat4
	// Spin is the rotation speed in degrees per second around (1,1,1).
	Spin float32
}

type Object struct {
	Spec    ObjectSpec
	Mesh    *Mesh
	Texture *Texture
}

// LoadScene decodes every mesh and texture concurrently. Objects keep the
// order of specs. The first failure cancels the remaining loads.
func LoadScene(ctx context.Context, specs []ObjectSpec) ([]Object, error) {
	objects := make([]Object, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		objects[i].Spec = spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := loadMesh(spec.Mesh)
			if err != nil {
				return err
			}
			objects[i].Mesh = m
			return nil
		})
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := LoadTexture(spec.Texture)
			if err != nil {
				return err
			}
			objects[i].Texture = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

func loadMesh(path string) (*Mesh, error) {
	if path == BuiltinFloor {
		return Floor(FloorSize), nil
	}
	return LoadMesh(path)
}

// DefaultScene is a spinning cube above a floor, drawn in that order.
func DefaultScene(model, texture, floorTexture string) []ObjectSpec {
	return []ObjectSpec{
		{Name: "cube", Mesh: model, Texture: texture, Base: mgl32.Ident4(), Spin: 20},
		{Name: "floor", Mesh: BuiltinFloor, Texture: floorTexture, Base: mgl32.Translate3D(0, -1.8, 0)},
	}
}
