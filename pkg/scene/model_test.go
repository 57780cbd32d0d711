package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/tmdl/pkg/math"
)

func triangle() *Mesh {
	return &Mesh{
		Name:     "tri",
		Vertices: []math.Vec3{{}, {X: 1}, {Y: 1}},
		Normals:  []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
		UV0:      []math.Vec2{{}, {X: 1}, {Y: 1}},
		Indices:  []uint32{0, 1, 2},
	}
}

func TestMeshValidate(t *testing.T) {
	m := triangle()
	require.NoError(t, m.Validate())

	m.Indices = append(m.Indices, 3)
	assert.ErrorIs(t, m.Validate(), ErrMeshIndex)

	m = triangle()
	m.Normals = m.Normals[:2]
	assert.ErrorIs(t, m.Validate(), ErrMeshArrays)

	m = triangle()
	m.BoneIDs = [][4]int32{{0, -1, -1, -1}}
	m.Weights = [][4]float32{{1}}
	assert.ErrorIs(t, m.Validate(), ErrMeshArrays)
}

func TestTextureValidate(t *testing.T) {
	tex := &Texture{Name: "t", Width: 2, Height: 2, Channels: 4, Pixels: make([]byte, 16)}
	assert.NoError(t, tex.Validate())

	tex.Pixels = tex.Pixels[:15]
	assert.ErrorIs(t, tex.Validate(), ErrTextureSize)
}

func TestMaterialSamplersKeepOrder(t *testing.T) {
	var m Material
	m.SetSampler("_a0", "body.png")
	m.SetSampler("_n0", "body_n.png")
	m.SetSampler("_a0", "body2.png")

	assert.Equal(t, []SamplerBinding{
		{Sampler: "_a0", Texture: "body2.png"},
		{Sampler: "_n0", Texture: "body_n.png"},
	}, m.Samplers)

	tex, ok := m.Sampler("_n0")
	assert.True(t, ok)
	assert.Equal(t, "body_n.png", tex)
}

func TestModelValidate(t *testing.T) {
	m := NewModel("m")
	assert.Equal(t, float32(1), m.Scale)

	mesh := triangle()
	mesh.MaterialIndex = 1
	m.Meshes = append(m.Meshes, mesh)
	m.Materials = append(m.Materials, &Material{Name: "only"})

	assert.ErrorIs(t, m.Validate(), ErrMaterialSlot)
	mesh.MaterialIndex = 0
	assert.NoError(t, m.Validate())
	assert.Equal(t, 3, m.VertexCount())
}

func TestScenePruneSkeleton(t *testing.T) {
	s := New("scene")
	model := s.Tree.AddNode(s.Root, "model")
	arm := s.Tree.AddNode(model, "Armature")
	s.Tree.Node(arm).Role = RoleArmature
	hip := s.Tree.AddNode(arm, "hip")
	s.Tree.AddNode(hip, "leg")
	s.Tree.AddNode(model, "body")

	sk := BuildSkeleton(s.Tree, SkeletonRoot(s.Tree, arm))
	require.Equal(t, 2, sk.Len())

	removed := s.PruneSkeleton(sk)
	assert.Equal(t, 1, removed, "leg goes with its parent")
	assert.Equal(t, []string{"model", "Armature", "body"}, names(s.Tree, s.Tree.AllChildren(s.Root)))

	_, ok := s.GetNode("leg")
	assert.False(t, ok)
}

func TestSceneRemoveRoot(t *testing.T) {
	s := New("scene")
	s.Tree.AddNode(s.Root, "child")

	assert.True(t, s.RemoveNode("scene"))
	assert.Equal(t, "", s.RootNode().Name)
	assert.Empty(t, s.RootNode().Children())
}

func TestAttachAnimations(t *testing.T) {
	s := New("scene")
	m0 := NewModel("a")
	m0.Skeleton.AddBone("hip", IdentityTransform(), -1)
	m1 := NewModel("b")
	m1.Skeleton.AddBone("wing", IdentityTransform(), -1)
	s.Models = []*Model{m0, m1}

	fly := NewAnimation("fly", 1, 30)
	fly.Model = 1
	ch := NewChannel("wing")
	ch.AddScale(Key[math.Vec3]{0, math.Vec3One()})
	fly.AddChannel(ch)

	stray := NewAnimation("stray", 1, 30)
	stray.Model = 5

	s.AttachAnimations([]*Animation{fly, stray})

	assert.Equal(t, []*Animation{stray}, m0.Animations)
	assert.Equal(t, []*Animation{fly}, m1.Animations)
	assert.EqualValues(t, 0, ch.BoneID)
	assert.Equal(t, 0, stray.Model)
}

func TestAttachAnimationsBindsAssignedSkeleton(t *testing.T) {
	s := New("scene")
	m0 := NewModel("a")
	m0.Skeleton.AddBone("hip", IdentityTransform(), -1)
	m0.Skeleton.AddBone("arm", IdentityTransform(), 0)
	m1 := NewModel("b")
	m1.Skeleton.AddBone("body", IdentityTransform(), -1)
	m1.Skeleton.AddBone("wing", IdentityTransform(), 0)
	m1.Skeleton.AddBone("arm", IdentityTransform(), 0)
	s.Models = []*Model{m0, m1}

	wave := NewAnimation("wave", 1, 30)
	wave.Model = 1
	arm := NewChannel("arm")
	arm.AddScale(Key[math.Vec3]{0, math.Vec3One()})
	hip := NewChannel("hip")
	hip.AddScale(Key[math.Vec3]{0, math.Vec3One()})
	wave.AddChannel(arm)
	wave.AddChannel(hip)

	s.AttachAnimations([]*Animation{wave})

	assert.EqualValues(t, 2, arm.BoneID)
	assert.EqualValues(t, -1, hip.BoneID, "bones of other models never bind")
	assert.Equal(t, []string{"hip"}, wave.Unbound())
}
