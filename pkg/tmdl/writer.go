package tmdl

import (
	"bufio"
	"encoding/binary"
	"io"
	gomath "math"

	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
)

// Writer serializes a scene in a single pass.
type Writer struct {
	w   *bufio.Writer
	buf [8]byte
	n   int64
	err error
}

// NewWriter wraps w in a buffered encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Encode writes s to w.
func Encode(w io.Writer, s *scene.Scene) error {
	return NewWriter(w).WriteScene(s)
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 { return w.n }

// WriteScene writes the scene header, the node tree and every model, then
// flushes. The first write error is returned.
func (w *Writer) WriteScene(s *scene.Scene) error {
	w.tag(TagScene)
	w.str(s.Name)
	w.node(s.Tree, s.Root)

	w.i32(int32(len(s.Models)))
	for _, m := range s.Models {
		w.model(m)
	}

	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) node(t *scene.Tree, ref scene.Ref) {
	n := t.Node(ref)
	if n == nil {
		// an empty root still produces a well-formed record
		n = &scene.Node{Transform: scene.IdentityTransform()}
	}
	w.str(n.Name)
	w.vec3(n.Position)
	w.vec4(n.Rotation)
	w.vec3(n.Scale)

	w.i32(int32(len(n.Meshes)))
	for _, m := range n.Meshes {
		w.i32(m)
	}
	w.flag(n.IsBone)

	children := n.Children()
	w.i32(int32(len(children)))
	for _, c := range children {
		w.node(t, c)
	}
}

func (w *Writer) model(m *scene.Model) {
	w.tag(TagModel)
	w.f32(m.Scale)
	w.str(m.Name)

	w.i32(int32(len(m.Meshes)))
	for _, mesh := range m.Meshes {
		w.mesh(mesh)
	}

	w.i32(int32(len(m.Textures)))
	for _, tex := range m.Textures {
		w.texture(tex)
	}

	w.i32(int32(len(m.Materials)))
	for _, mat := range m.Materials {
		w.material(mat)
	}

	w.tag(TagSkeleton)
	w.skeleton(m.Skeleton)

	w.i32(int32(len(m.Animations)))
	for _, a := range m.Animations {
		w.animation(a)
	}
}

func (w *Writer) mesh(m *scene.Mesh) {
	w.tag(TagMesh)
	w.str(m.Name)

	count := len(m.Vertices)
	w.i32(int32(count))
	w.tag(TagVertices)
	skinned := m.HasSkin()
	for i := 0; i < count; i++ {
		w.vec3(m.Vertices[i])
		w.vec3(at(m.Normals, i))
		uv := at(m.UV0, i)
		w.f32(uv.X)
		w.f32(uv.Y)

		ids := [influences]int32{-1, -1, -1, -1}
		var weights [influences]float32
		if skinned {
			ids = at(m.BoneIDs, i)
			weights = at(m.Weights, i)
		}
		w.i32(influences)
		for _, id := range ids {
			w.i32(id)
		}
		w.i32(influences)
		for _, wt := range weights {
			w.f32(wt)
		}
	}

	w.tag(TagIndices)
	w.i32(int32(len(m.Indices)))
	for _, idx := range m.Indices {
		w.i32(int32(idx))
	}
	w.i32(m.MaterialIndex)
}

func (w *Writer) texture(t *scene.Texture) {
	w.tag(TagTexture)
	w.str(t.Name)
	w.i32(t.Width)
	w.i32(t.Height)
	w.i32(t.Channels)
	w.raw(t.Pixels)
}

func (w *Writer) material(m *scene.Material) {
	w.tag(TagMaterial)
	w.str(m.Name)
	w.i32(int32(len(m.Samplers)))
	for _, s := range m.Samplers {
		w.str(s.Sampler)
		w.str(s.Texture)
	}
}

func (w *Writer) skeleton(s *scene.Skeleton) {
	if s == nil {
		s = scene.NewSkeleton()
	}
	w.i32(int32(len(s.Bones)))
	for i := range s.Bones {
		b := &s.Bones[i]
		w.str(b.Name)
		w.i32(b.ID)
		w.i32(b.Parent)
		w.vec3(b.Position)
		w.vec4(b.Rotation)
		w.vec3(b.Scale)
		for _, f := range b.Offset {
			w.f32(f)
		}
	}
	w.str(s.RootName)
}

func (w *Writer) animation(a *scene.Animation) {
	w.tag(TagAnimation)
	w.str(a.Name)
	w.f32(a.Duration)
	w.i32(a.TicksPerSecond)

	channels := a.Writable()
	w.i32(int32(len(channels)))
	for _, ch := range channels {
		w.str(ch.NodeName)
		w.i32(ch.BoneID)

		w.i32(int32(len(ch.Positions)))
		for _, k := range ch.Positions {
			w.f32(k.Time)
			w.vec3(k.Value)
		}
		w.i32(int32(len(ch.Rotations)))
		for _, k := range ch.Rotations {
			w.f32(k.Time)
			w.vec4(k.Value)
		}
		w.i32(int32(len(ch.Scales)))
		for _, k := range ch.Scales {
			w.f32(k.Time)
			w.vec3(k.Value)
		}
	}
}

func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}

func (w *Writer) raw(p []byte) {
	if w.err != nil {
		return
	}
	var n int
	n, w.err = w.w.Write(p)
	w.n += int64(n)
}

func (w *Writer) tag(t string) { w.raw([]byte(t)) }

func (w *Writer) str(s string) {
	w.i32(int32(len(s)))
	w.raw([]byte(s))
}

func (w *Writer) i32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.raw(w.buf[:4])
}

func (w *Writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[:4], gomath.Float32bits(v))
	w.raw(w.buf[:4])
}

func (w *Writer) flag(v bool) {
	w.buf[0] = 0
	if v {
		w.buf[0] = 1
	}
	w.raw(w.buf[:1])
}

func (w *Writer) vec3(v math.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *Writer) vec4(v math.Vec4) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
	w.f32(v.W)
}
