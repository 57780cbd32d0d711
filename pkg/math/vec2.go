// Package math provides the vector, quaternion and matrix types shared by the
// scene model, the importers and the binary writer.
package math

// Vec2 is a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float32
}
