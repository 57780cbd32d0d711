package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/tmdl/pkg/math"
)

// Validation errors.
var (
	ErrMeshArrays   = errors.New("mesh attribute arrays differ in length")
	ErrMeshIndex    = errors.New("mesh index out of range")
	ErrTextureSize  = errors.New("texture pixel data does not match its dimensions")
	ErrMaterialSlot = errors.New("material index out of range")
)

// Mesh is an indexed triangle list with per-vertex skinning.
type Mesh struct {
	Name     string
	Vertices []math.Vec3
	Normals  []math.Vec3
	UV0      []math.Vec2

	// BoneIDs and Weights hold four influences per vertex; unused slots are
	// -1 / 0. Both are nil for unskinned meshes.
	BoneIDs [][4]int32
	Weights [][4]float32

	Indices       []uint32
	MaterialIndex int32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// HasSkin reports whether per-vertex skin data is present.
func (m *Mesh) HasSkin() bool {
	return len(m.BoneIDs) > 0 && len(m.Weights) > 0
}

// Validate checks that the parallel arrays line up and every index refers to
// an existing vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	if len(m.Normals) != n || len(m.UV0) != n {
		return fmt.Errorf("%w: mesh %q has %d vertices, %d normals, %d uvs",
			ErrMeshArrays, m.Name, n, len(m.Normals), len(m.UV0))
	}
	if m.HasSkin() && (len(m.BoneIDs) != n || len(m.Weights) != n) {
		return fmt.Errorf("%w: mesh %q has %d vertices, %d bone ids, %d weights",
			ErrMeshArrays, m.Name, n, len(m.BoneIDs), len(m.Weights))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: mesh %q index %d = %d, vertex count %d",
				ErrMeshIndex, m.Name, i, idx, n)
		}
	}
	return nil
}

// Texture is a decoded image, row-major and channel-interleaved.
type Texture struct {
	Name     string
	Width    int32
	Height   int32
	Channels int32
	Pixels   []byte
}

// Validate checks the pixel buffer size.
func (t *Texture) Validate() error {
	want := int(t.Width) * int(t.Height) * int(t.Channels)
	if len(t.Pixels) != want {
		return fmt.Errorf("%w: texture %q has %d bytes, want %d",
			ErrTextureSize, t.Name, len(t.Pixels), want)
	}
	return nil
}

// SamplerBinding maps a material sampler to a texture name.
type SamplerBinding struct {
	Sampler string
	Texture string
}

// Material is a named set of sampler bindings kept in insertion order.
type Material struct {
	Name     string
	Samplers []SamplerBinding
}

// SetSampler binds sampler to texture, replacing an existing binding.
func (m *Material) SetSampler(sampler, texture string) {
	for i := range m.Samplers {
		if m.Samplers[i].Sampler == sampler {
			m.Samplers[i].Texture = texture
			return
		}
	}
	m.Samplers = append(m.Samplers, SamplerBinding{Sampler: sampler, Texture: texture})
}

// Sampler returns the texture bound to sampler.
func (m *Material) Sampler(sampler string) (string, bool) {
	for _, b := range m.Samplers {
		if b.Sampler == sampler {
			return b.Texture, true
		}
	}
	return "", false
}

// Model groups meshes, textures, materials, one skeleton and its animations.
type Model struct {
	Name       string
	Scale      float32
	Meshes     []*Mesh
	Textures   []*Texture
	Materials  []*Material
	Skeleton   *Skeleton
	Animations []*Animation
}

// NewModel returns a model with unit scale and an empty skeleton.
func NewModel(name string) *Model {
	return &Model{
		Name:     name,
		Scale:    1,
		Skeleton: NewSkeleton(),
	}
}

// VertexCount sums the vertex counts of every mesh.
func (m *Model) VertexCount() int {
	total := 0
	for _, mesh := range m.Meshes {
		total += mesh.VertexCount()
	}
	return total
}

// Validate checks every mesh and texture and the material references.
func (m *Model) Validate() error {
	for _, mesh := range m.Meshes {
		if err := mesh.Validate(); err != nil {
			return err
		}
		if mesh.MaterialIndex >= int32(len(m.Materials)) && len(m.Materials) > 0 {
			return fmt.Errorf("%w: mesh %q uses material %d of %d",
				ErrMaterialSlot, mesh.Name, mesh.MaterialIndex, len(m.Materials))
		}
	}
	for _, tex := range m.Textures {
		if err := tex.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Scene is the root of a converted asset.
type Scene struct {
	Name   string
	Tree   *Tree
	Root   Ref
	Models []*Model
}

// New creates a scene with a root node of the same name.
func New(name string) *Scene {
	tree := NewTree()
	return &Scene{
		Name: name,
		Tree: tree,
		Root: tree.NewNode(name),
	}
}

// RootNode returns the scene's root node.
func (s *Scene) RootNode() *Node {
	return s.Tree.Node(s.Root)
}

// GetNode finds a node by name anywhere in the scene tree.
func (s *Scene) GetNode(name string) (Ref, bool) {
	return s.Tree.Find(s.Root, name)
}

// RemoveNode detaches the first node named name. Removing the root replaces
// it with a fresh, empty root.
func (s *Scene) RemoveNode(name string) bool {
	if root := s.RootNode(); root != nil && root.Name == name {
		s.Root = s.Tree.NewNode("")
		return true
	}
	return s.Tree.RemoveChild(s.Root, name)
}

// PruneSkeleton removes every node that became a bone of sk from the scene
// tree and returns how many removals happened.
func (s *Scene) PruneSkeleton(sk *Skeleton) int {
	removed := 0
	for _, b := range sk.Bones {
		n := s.Tree.Node(b.Node)
		switch {
		case n == nil:
			// built without a source node, fall back to a name search
			if s.RemoveNode(b.Name) {
				removed++
			}
		case b.Node == s.Root:
			s.Root = s.Tree.NewNode("")
			removed++
		case s.Tree.isAncestor(s.Root, b.Node):
			s.Tree.Detach(b.Node)
			removed++
		}
	}
	return removed
}

// AttachAnimations hands every animation to its assigned model, falling
// back to model 0, and binds it against that model's skeleton.
func (s *Scene) AttachAnimations(anims []*Animation) {
	if len(s.Models) == 0 {
		return
	}
	for _, a := range anims {
		idx := a.Model
		if idx < 0 || idx >= len(s.Models) {
			idx = 0
		}
		a.Model = idx
		a.Bind(s.Models[idx].Skeleton)
		s.Models[idx].Animations = append(s.Models[idx].Animations, a)
	}
}
