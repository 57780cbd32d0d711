package tmdl

import (
	"bytes"
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
)

// le builds expected byte streams.
type le struct{ bytes.Buffer }

func (b *le) tag(s string) *le { b.WriteString(s); return b }
func (b *le) str(s string) *le { b.i32(int32(len(s))); b.WriteString(s); return b }
func (b *le) i32(v int32) *le {
	_ = binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}
func (b *le) f32(vs ...float32) *le {
	for _, v := range vs {
		_ = binary.Write(&b.Buffer, binary.LittleEndian, gomath.Float32bits(v))
	}
	return b
}
func (b *le) u8(v byte) *le { b.WriteByte(v); return b }

func sampleScene() *scene.Scene {
	s := scene.New("demo")
	body := s.Tree.AddNode(s.Root, "body")
	s.Tree.Node(body).Meshes = []int32{0}

	m := scene.NewModel("hero")
	m.Scale = 2
	m.Meshes = []*scene.Mesh{{
		Name:     "tri",
		Vertices: []math.Vec3{{}, {X: 1}, {Y: 1}},
		Normals:  []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
		UV0:      []math.Vec2{{}, {X: 1}, {Y: 1}},
		BoneIDs:  [][4]int32{{0, -1, -1, -1}, {1, -1, -1, -1}, {0, 1, -1, -1}},
		Weights:  [][4]float32{{1}, {1}, {0.5, 0.5}},
		Indices:  []uint32{0, 1, 2},
	}}
	m.Textures = []*scene.Texture{{Name: "skin.bmp", Width: 1, Height: 2, Channels: 4, Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8}}}
	mat := &scene.Material{Name: "skin"}
	mat.SetSampler("_a0", "skin.bmp")
	m.Materials = []*scene.Material{mat}

	root := m.Skeleton.AddBone("root", scene.IdentityTransform(), -1)
	arm := scene.IdentityTransform()
	arm.Position = math.Vec3{Y: 1}
	m.Skeleton.AddBone("arm", arm, root)
	m.Skeleton.ComputeOffsets()

	a := scene.NewAnimation("wave", 20, 30)
	ch := scene.NewChannel("arm")
	ch.AddRotation(scene.Key[math.Vec4]{Time: 0, Value: math.QuatIdentity()})
	ch.AddRotation(scene.Key[math.Vec4]{Time: 10, Value: math.QuatFromAxisAngle(math.Vec3{Z: 1}, 1)})
	a.AddChannel(ch)
	ghost := scene.NewChannel("ghost")
	ghost.AddPosition(scene.Key[math.Vec3]{Time: 0, Value: math.Vec3{X: 1}})
	a.AddChannel(ghost)
	m.Animations = []*scene.Animation{a}

	s.Models = []*scene.Model{m}
	a.Bind(m.Skeleton)
	return s
}

func TestEncodeEmptyScene(t *testing.T) {
	s := scene.New("empty")

	var got bytes.Buffer
	require.NoError(t, Encode(&got, s))

	var want le
	want.tag("TSCN").str("empty")
	want.str("empty").f32(0, 0, 0).f32(0, 0, 0, 1).f32(1, 1, 1)
	want.i32(0).u8(0).i32(0)
	want.i32(0)

	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestEncodeModelLayout(t *testing.T) {
	s := scene.New("s")
	m := scene.NewModel("m")
	m.Meshes = []*scene.Mesh{{
		Name:     "point",
		Vertices: []math.Vec3{{X: 1, Y: 2, Z: 3}},
		Normals:  []math.Vec3{{Y: 1}},
		UV0:      []math.Vec2{{X: 0.5, Y: 0.25}},
		Indices:  []uint32{0},
	}}
	m.Skeleton.AddBone("b", scene.IdentityTransform(), -1)
	s.Models = []*scene.Model{m}

	var got bytes.Buffer
	require.NoError(t, Encode(&got, s))

	var want le
	want.tag("TSCN").str("s")
	want.str("s").f32(0, 0, 0).f32(0, 0, 0, 1).f32(1, 1, 1).i32(0).u8(0).i32(0)
	want.i32(1)
	want.tag("TMDL").f32(1).str("m")
	want.i32(1)
	want.tag("TMSH").str("point").i32(1).tag("TVTX")
	want.f32(1, 2, 3).f32(0, 1, 0).f32(0.5, 0.25)
	want.i32(4).i32(-1).i32(-1).i32(-1).i32(-1)
	want.i32(4).f32(0, 0, 0, 0)
	want.tag("TIDX").i32(1).i32(0).i32(0)
	want.i32(0)
	want.i32(0)
	want.tag("TSKL").i32(1)
	want.str("b").i32(0).i32(-1).f32(0, 0, 0).f32(0, 0, 0, 1).f32(1, 1, 1)
	want.f32(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1)
	want.str("b")
	want.i32(0)

	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestEncodeSkipsUnboundChannels(t *testing.T) {
	s := sampleScene()
	a := s.Models[0].Animations[0]
	require.Len(t, a.Channels(), 2)
	require.Len(t, a.Writable(), 1)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	got := decoded.Models[0].Animations[0]
	require.Len(t, got.Channels(), 1)
	assert.Equal(t, "arm", got.Channels()[0].NodeName)
	assert.EqualValues(t, 1, got.Channels()[0].BoneID)
}

func TestEncodeDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, sampleScene()))
	require.NoError(t, Encode(&b, sampleScene()))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestRoundTrip(t *testing.T) {
	src := sampleScene()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, src))
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "demo", got.Name)
	body, ok := got.GetNode("body")
	require.True(t, ok)
	assert.Equal(t, []int32{0}, got.Tree.Node(body).Meshes)

	require.Len(t, got.Models, 1)
	m := got.Models[0]
	want := src.Models[0]
	assert.Equal(t, float32(2), m.Scale)
	assert.Equal(t, want.Meshes[0].Vertices, m.Meshes[0].Vertices)
	assert.Equal(t, want.Meshes[0].BoneIDs, m.Meshes[0].BoneIDs)
	assert.Equal(t, want.Meshes[0].Weights, m.Meshes[0].Weights)
	assert.Equal(t, want.Meshes[0].Indices, m.Meshes[0].Indices)
	assert.Equal(t, want.Textures[0], m.Textures[0])
	assert.Equal(t, want.Materials[0], m.Materials[0])

	require.Equal(t, 2, m.Skeleton.Len())
	assert.Equal(t, "root", m.Skeleton.RootName)
	arm, ok := m.Skeleton.Bone("arm")
	require.True(t, ok)
	assert.EqualValues(t, 0, m.Skeleton.Bones[arm].Parent)
	assert.Equal(t, []int32{1}, m.Skeleton.Bones[0].Children)
	assert.Equal(t, want.Skeleton.Bones[arm].Offset, m.Skeleton.Bones[arm].Offset)

	ch, ok := m.Animations[0].Channel("arm")
	require.True(t, ok)
	assert.Equal(t, want.Animations[0].Channels()[0].Rotations, ch.Rotations)
}

func TestDecodeBadTag(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("XSCN")))
	assert.ErrorIs(t, err, ErrUnexpectedTag)
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleScene()))

	_, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	assert.Error(t, err)
}

func TestDecodeBadCount(t *testing.T) {
	var b le
	b.tag("TSCN").i32(-5)
	_, err := Decode(bytes.NewReader(b.Bytes()))
	assert.ErrorIs(t, err, ErrBadCount)
}
