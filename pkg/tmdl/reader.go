package tmdl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	gomath "math"

	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
)

// Reader decodes a scene written by Writer.
type Reader struct {
	r   *bufio.Reader
	buf [4]byte
	off int64
	err error
}

// NewReader wraps r in a buffered decoder.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Decode reads one scene from r.
func Decode(r io.Reader) (*scene.Scene, error) {
	return NewReader(r).ReadScene()
}

// ReadScene decodes the scene header, node tree and models.
func (r *Reader) ReadScene() (*scene.Scene, error) {
	r.expect(TagScene)
	s := &scene.Scene{Name: r.str(), Tree: scene.NewTree()}
	s.Root = r.node(s.Tree, scene.NoRef)

	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		s.Models = append(s.Models, r.model())
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

func (r *Reader) node(t *scene.Tree, parent scene.Ref) scene.Ref {
	ref := t.NewNode(r.str())
	if parent != scene.NoRef {
		t.AddChild(parent, ref)
	}
	n := t.Node(ref)
	n.Position = r.vec3()
	n.Rotation = r.vec4()
	n.Scale = r.vec3()

	meshes := r.count()
	for i := 0; i < meshes && r.err == nil; i++ {
		n.Meshes = append(n.Meshes, r.i32())
	}
	n.IsBone = r.u8() != 0

	children := r.count()
	for i := 0; i < children && r.err == nil; i++ {
		r.node(t, ref)
	}
	return ref
}

func (r *Reader) model() *scene.Model {
	r.expect(TagModel)
	scale := r.f32()
	m := scene.NewModel(r.str())
	m.Scale = scale

	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.Meshes = append(m.Meshes, r.mesh())
	}
	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.Textures = append(m.Textures, r.texture())
	}
	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.Materials = append(m.Materials, r.material())
	}

	r.expect(TagSkeleton)
	m.Skeleton = r.skeleton()

	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.Animations = append(m.Animations, r.animation())
	}
	return m
}

func (r *Reader) mesh() *scene.Mesh {
	r.expect(TagMesh)
	m := &scene.Mesh{Name: r.str()}

	n := r.count()
	r.expect(TagVertices)
	for i := 0; i < n && r.err == nil; i++ {
		m.Vertices = append(m.Vertices, r.vec3())
		m.Normals = append(m.Normals, r.vec3())
		m.UV0 = append(m.UV0, math.Vec2{X: r.f32(), Y: r.f32()})

		var ids [influences]int32
		r.width()
		for j := range ids {
			ids[j] = r.i32()
		}
		var weights [influences]float32
		r.width()
		for j := range weights {
			weights[j] = r.f32()
		}
		m.BoneIDs = append(m.BoneIDs, ids)
		m.Weights = append(m.Weights, weights)
	}

	r.expect(TagIndices)
	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.Indices = append(m.Indices, uint32(r.i32()))
	}
	m.MaterialIndex = r.i32()
	return m
}

func (r *Reader) texture() *scene.Texture {
	r.expect(TagTexture)
	t := &scene.Texture{
		Name:     r.str(),
		Width:    r.i32(),
		Height:   r.i32(),
		Channels: r.i32(),
	}
	size := int64(t.Width) * int64(t.Height) * int64(t.Channels)
	if r.err == nil && (size < 0 || size > maxCount*4) {
		r.fail(fmt.Errorf("%w: texture %q is %dx%dx%d", ErrBadCount, t.Name, t.Width, t.Height, t.Channels))
		return t
	}
	t.Pixels = r.bytes(int(size))
	return t
}

func (r *Reader) material() *scene.Material {
	r.expect(TagMaterial)
	m := &scene.Material{Name: r.str()}
	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		m.SetSampler(r.str(), r.str())
	}
	return m
}

func (r *Reader) skeleton() *scene.Skeleton {
	s := scene.NewSkeleton()
	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		name := r.str()
		r.i32() // id equals position
		parent := r.i32()
		t := scene.Transform{Position: r.vec3(), Rotation: r.vec4(), Scale: r.vec3()}

		id := s.AddBone(name, t, -1)
		for j := range s.Bones[id].Offset {
			s.Bones[id].Offset[j] = r.f32()
		}
		if parent >= 0 && parent < id {
			s.SetParent(id, parent)
		}
	}
	s.RootName = r.str()
	return s
}

func (r *Reader) animation() *scene.Animation {
	r.expect(TagAnimation)
	name := r.str()
	a := scene.NewAnimation(name, r.f32(), r.i32())

	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		ch := scene.NewChannel(r.str())
		ch.BoneID = r.i32()

		keys := r.count()
		for j := 0; j < keys && r.err == nil; j++ {
			ch.Positions = append(ch.Positions, scene.Key[math.Vec3]{Time: r.f32(), Value: r.vec3()})
		}
		keys = r.count()
		for j := 0; j < keys && r.err == nil; j++ {
			ch.Rotations = append(ch.Rotations, scene.Key[math.Vec4]{Time: r.f32(), Value: r.vec4()})
		}
		keys = r.count()
		for j := 0; j < keys && r.err == nil; j++ {
			ch.Scales = append(ch.Scales, scene.Key[math.Vec3]{Time: r.f32(), Value: r.vec3()})
		}
		a.AddChannel(ch)
	}
	return a
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	p := make([]byte, n)
	read, err := io.ReadFull(r.r, p)
	r.off += int64(read)
	if err != nil {
		r.fail(fmt.Errorf("reading %d bytes at offset %d: %w", n, r.off, err))
		return nil
	}
	return p
}

func (r *Reader) fixed(n int) []byte {
	if r.err != nil {
		return nil
	}
	read, err := io.ReadFull(r.r, r.buf[:n])
	r.off += int64(read)
	if err != nil {
		r.fail(fmt.Errorf("reading at offset %d: %w", r.off, err))
		return nil
	}
	return r.buf[:n]
}

func (r *Reader) expect(tag string) {
	start := r.off
	p := r.fixed(len(tag))
	if p == nil {
		return
	}
	if string(p) != tag {
		r.fail(fmt.Errorf("%w: got %q at offset %d, want %q", ErrUnexpectedTag, p, start, tag))
	}
}

func (r *Reader) u8() byte {
	p := r.fixed(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *Reader) i32() int32 {
	p := r.fixed(4)
	if p == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(p))
}

func (r *Reader) f32() float32 {
	p := r.fixed(4)
	if p == nil {
		return 0
	}
	return gomath.Float32frombits(binary.LittleEndian.Uint32(p))
}

func (r *Reader) count() int {
	start := r.off
	n := r.i32()
	if n < 0 || n > maxCount {
		r.fail(fmt.Errorf("%w: %d at offset %d", ErrBadCount, n, start))
		return 0
	}
	return int(n)
}

func (r *Reader) width() {
	start := r.off
	if n := r.i32(); r.err == nil && n != influences {
		r.fail(fmt.Errorf("%w: influence width %d at offset %d", ErrBadCount, n, start))
	}
}

func (r *Reader) str() string {
	n := r.count()
	return string(r.bytes(n))
}

func (r *Reader) vec3() math.Vec3 {
	return math.Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

func (r *Reader) vec4() math.Vec4 {
	return math.Vec4{X: r.f32(), Y: r.f32(), Z: r.f32(), W: r.f32()}
}
