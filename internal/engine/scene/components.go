package scene

import (
	"github.com/Faultbox/railrush/pkg/math"
)

// Transform is the local placement of an entity relative to its parent.
type Transform struct {
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
}

// IdentityTransform places an entity exactly on its parent.
func IdentityTransform() Transform {
	return Transform{Rotation: math.QuatIdentity(), Scale: math.One()}
}

// TransformFromMatrix decomposes an affine matrix.
func TransformFromMatrix(m math.Mat4) Transform {
	t, r, s := m.Decompose()
	return Transform{Translation: t, Rotation: r, Scale: s}
}

// Matrix composes the transform back into a matrix.
func (t Transform) Matrix() math.Mat4 {
	return math.FromTRS(t.Translation, t.Rotation, t.Scale)
}

// GlobalTransform composes the transforms from the root down to e.
// Entities without a Transform contribute identity.
func (w *World) GlobalTransform(e Entity) math.Mat4 {
	m := math.Identity()
	for cur, ok := e, w.Alive(e); ok; cur, ok = w.Parent(cur) {
		if t, has := Get[Transform](w, cur); has {
			m = t.Matrix().Mul(m)
		}
	}
	return m
}

// Visibility of an entity. Inherited follows the parent.
type Visibility uint8

const (
	Inherited Visibility = iota
	Visible
	Hidden
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "Visible"
	case Hidden:
		return "Hidden"
	default:
		return "Inherited"
	}
}

// IsVisible resolves inherited visibility up the parent chain. Entities
// with no explicit setting anywhere are visible.
func (w *World) IsVisible(e Entity) bool {
	for cur, ok := e, w.Alive(e); ok; cur, ok = w.Parent(cur) {
		if v, has := Get[Visibility](w, cur); has && *v != Inherited {
			return *v == Visible
		}
	}
	return true
}

// Name labels an entity.
type Name string
