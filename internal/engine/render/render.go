// Package render defines the components a renderer reads from spawned
// entities. Every component that holds a handle owns it and releases it
// on despawn.
package render

import (
	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/internal/engine/mesh"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/pkg/math"
)

// Mesh3D draws one submesh.
type Mesh3D struct {
	Mesh assets.Handle[*mesh.Mesh]
}

func (c Mesh3D) Release() { c.Mesh.Release() }

// MeshMaterial shades a Mesh3D.
type MeshMaterial struct {
	Material material.Handle
}

func (c MeshMaterial) Release() { c.Material.Release() }

// InverseBindposes is the per-joint inverse bind matrix list of a skinned mesh.
type InverseBindposes []math.Mat4

// SkinnedMesh binds a Mesh3D to joint entities. Joints[i] pairs with
// the i-th inverse bindpose.
type SkinnedMesh struct {
	InverseBindposes assets.Handle[InverseBindposes]
	Joints           []scene.Entity
}

func (c SkinnedMesh) Release() { c.InverseBindposes.Release() }

// EyeMouth marks an entity whose material drives the facial expression.
type EyeMouth struct {
	Material assets.Handle[*material.FacialExpression]
}

func (c EyeMouth) Release() { c.Material.Release() }

// JointMatrices computes the skinning palette of s: the global transform of
// each joint times its inverse bindpose. Missing bindposes yield identity.
func JointMatrices(w *scene.World, s *SkinnedMesh) []math.Mat4 {
	ibp, _ := s.InverseBindposes.Get()
	out := make([]math.Mat4, len(s.Joints))
	for i, j := range s.Joints {
		inv := math.Identity()
		if i < len(ibp) {
			inv = ibp[i]
		}
		out[i] = w.GlobalTransform(j).Mul(inv)
	}
	return out
}
