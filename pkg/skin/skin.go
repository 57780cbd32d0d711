// Package skin resolves raw per-vertex skinning data into four bone ids and
// four normalized weights per vertex.
package skin

import (
	"errors"
	"fmt"
)

// MaxInfluences is the fixed number of influences stored per vertex.
const MaxInfluences = 4

// Epsilon is the weight at or below which an influence is discarded.
const Epsilon float32 = 1.1920929e-7

// minTotal is the weight total below which a vertex falls back to full
// weight on its first slot.
const minTotal float32 = 0.0001

// ErrVertexCountMismatch is returned when the number of resolved vertices
// differs from the count the source declared.
var ErrVertexCountMismatch = errors.New("vertex count mismatch")

// Shape is the raw skinning data of one vertex buffer.
type Shape struct {
	// Indices and Weights hold the raw per-vertex influences. Either may be
	// nil when the source has no such buffer.
	Indices [][4]int32
	Weights [][4]float32

	// SkinCount is how many of the four slots the source uses (0-4).
	SkinCount int

	// Rigid binds every vertex to RigidBone with full weight.
	Rigid     bool
	RigidBone int32

	// MatrixToBone remaps raw indices to skeleton bone ids. Nil means raw
	// indices already are bone ids.
	MatrixToBone []int32
}

// Resolve produces the bone ids and weights of vertexCount vertices.
func Resolve(s Shape, vertexCount int) ([][4]int32, [][4]float32) {
	ids := make([][4]int32, vertexCount)
	weights := make([][4]float32, vertexCount)
	for v := 0; v < vertexCount; v++ {
		ids[v], weights[v] = s.vertex(v)
	}
	return ids, weights
}

func (s Shape) vertex(v int) ([4]int32, [4]float32) {
	if s.Rigid {
		return [4]int32{s.RigidBone, -1, -1, -1}, [4]float32{1, 0, 0, 0}
	}
	if v >= len(s.Indices) {
		return [4]int32{0, -1, -1, -1}, [4]float32{1, 0, 0, 0}
	}

	id := s.Indices[v]
	hasWeights := v < len(s.Weights)
	w := [4]float32{1, 0, 0, 0}
	if hasWeights {
		w = s.Weights[v]
	}

	count := s.SkinCount
	if count > MaxInfluences {
		count = MaxInfluences
	}
	for i := count; i < MaxInfluences; i++ {
		id[i] = -1
		if hasWeights {
			w[i] = 0
		}
	}

	id = s.remapAll(id)
	if hasWeights {
		for i := 0; i < MaxInfluences; i++ {
			if w[i] <= Epsilon {
				id[i] = -1
				w[i] = 0
			}
		}
	}
	return id, Normalize(w)
}

func (s Shape) remapAll(id [4]int32) [4]int32 {
	if s.MatrixToBone == nil {
		return id
	}
	for i, raw := range id {
		if raw < 0 {
			continue
		}
		if int(raw) < len(s.MatrixToBone) {
			id[i] = s.MatrixToBone[raw]
		} else {
			id[i] = -1
		}
	}
	return id
}

// Normalize scales weights to sum to 1. A total at or below 0.0001 yields
// [1, 0, 0, 0].
func Normalize(w [4]float32) [4]float32 {
	total := w[0] + w[1] + w[2] + w[3]
	if total <= minTotal {
		return [4]float32{1, 0, 0, 0}
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// CheckVertexCount compares the resolved vertex count with the declared one.
func CheckVertexCount(declared, resolved int) error {
	if declared != resolved {
		return fmt.Errorf("%w: declared %d, resolved %d", ErrVertexCountMismatch, declared, resolved)
	}
	return nil
}
