package importer

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/tmdl/pkg/formats"
	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
)

// testBMD is a quad split across two bones, the second preceded by a dummy,
// with one two-key action.
func testBMD() *formats.BMD {
	return &formats.BMD{
		Version: 10,
		Name:    "box",
		Meshes: []formats.BMDMesh{{
			Vertices: []formats.BMDVertex{
				{Node: 0, Position: [3]float32{0, 0, 0}},
				{Node: 0, Position: [3]float32{1, 0, 0}},
				{Node: 2, Position: [3]float32{0, 0, 0}},
				{Node: 2, Position: [3]float32{0, 1, 0}},
			},
			Normals:   []formats.BMDNormal{{Node: 0, Normal: [3]float32{0, 0, 2}}},
			TexCoords: [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			Triangles: []formats.BMDTriangle{{
				Polygon:     4,
				VertexIDs:   [4]int16{0, 1, 2, 3},
				TexCoordIDs: [4]int16{0, 1, 2, 3},
			}},
			Texture: "box.jpg",
		}},
		Actions: []formats.BMDAction{{KeyCount: 2}},
		Bones: []formats.BMDBone{
			{Name: "root", Parent: -1, Actions: []formats.BMDBoneKeys{{
				Positions: [][3]float32{{0, 0, 0}, {0, 0, 1}},
				Rotations: [][3]float32{{0, 0, 0}, {0, 0, 1.5}},
			}}},
			{Dummy: true, Parent: -1},
			{Name: "lid", Parent: 0, Actions: []formats.BMDBoneKeys{{
				Positions: [][3]float32{{1, 0, 0}, {1, 0, 0}},
				Rotations: [][3]float32{{0, 0, 0}, {0, 0, 0}},
			}}},
		},
	}
}

func ozjBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))
	return append(make([]byte, ozjHeaderSize), buf.Bytes()...)
}

func TestBMDImporterBuild(t *testing.T) {
	src := MapSource{"data/texture/box.ozj": ozjBytes(t)}
	imp := &BMDImporter{Options: Options{TextureDirs: []string{"data/texture"}}}

	res, err := imp.build(src, "data/player/box.bmd", testBMD())
	require.NoError(t, err)

	s := res.Scene
	md := res.Models[0]
	rootRef, ok := s.Tree.GetChild(md.Armature, "root")
	require.True(t, ok)
	_, ok = s.Tree.GetChild(rootRef, "lid")
	assert.True(t, ok)
	assert.Len(t, s.Tree.Node(md.Armature).Children(), 1, "dummy bones get no node")

	model := s.Models[0]
	require.Len(t, model.Meshes, 1)
	mesh := model.Meshes[0]
	assert.Equal(t, "box_0", mesh.Name)
	require.Equal(t, 6, mesh.VertexCount(), "a quad expands to two triangles")
	assert.NoError(t, mesh.Validate())

	// corners 0,1,2 then 0,2,3; bone 2 sits one unit along X
	assert.True(t, mesh.Vertices[1].ApproxEqual(math.Vec3{X: 1}, 1e-5))
	assert.True(t, mesh.Vertices[2].ApproxEqual(math.Vec3{X: 1}, 1e-5), "got %v", mesh.Vertices[2])
	assert.True(t, mesh.Vertices[5].ApproxEqual(math.Vec3{X: 1, Y: 1}, 1e-5), "got %v", mesh.Vertices[5])
	assert.True(t, mesh.Normals[0].ApproxEqual(math.Vec3{Z: 1}, 1e-5))
	assert.Equal(t, math.Vec2{X: 0, Y: 1}, mesh.UV0[5])

	require.Len(t, md.Skins, 1)
	sk := md.Skins[0]
	assert.Equal(t, []string{"root", "", "lid"}, sk.Joints)
	assert.Equal(t, 6, sk.Declared)
	assert.Len(t, sk.Shape.Indices, sk.Declared, "declared count is the skin buffer length")
	assert.Equal(t, 1, sk.Shape.SkinCount)
	var first []int32
	for _, ids := range sk.Shape.Indices {
		first = append(first, ids[0])
	}
	assert.Equal(t, []int32{0, 0, 2, 0, 2, 2}, first)

	require.Len(t, model.Textures, 1)
	assert.Equal(t, "box.jpg", model.Textures[0].Name)
	tex, ok := model.Materials[0].Sampler("diffuse")
	require.True(t, ok)
	assert.Equal(t, "box.jpg", tex)

	require.Len(t, res.Animations, 1)
	anim := res.Animations[0]
	assert.Equal(t, "action_0", anim.Name)
	assert.True(t, anim.Euler)
	assert.Equal(t, float32(2), anim.Duration)
	assert.Equal(t, int32(bmdTicksPerSecond), anim.TicksPerSecond)
	require.Len(t, anim.Channels(), 2)

	ch, ok := anim.Channel("root")
	require.True(t, ok)
	require.Len(t, ch.Rotations, 2)
	want := math.FromEuler(math.Vec3{Z: 1.5})
	assert.True(t, sameRotation(ch.Rotations[1].Value, want, 1e-4))
	require.Len(t, ch.Positions, 2)
	assert.Equal(t, math.Vec3{Z: 1}, ch.Positions[1].Value)
}

func TestBMDBoneNames(t *testing.T) {
	bmd := &formats.BMD{Bones: []formats.BMDBone{
		{Name: "a", Parent: -1},
		{Name: "a", Parent: 0},
		{Name: "", Parent: 5},
	}}
	s := scene.New("test")
	armature := s.Tree.AddNode(s.Root, ArmatureName)

	refs, joints := bmdBoneTree(s.Tree, armature, bmd)
	assert.Equal(t, []string{"a", "a_1", "bone_2"}, joints)
	assert.Equal(t, refs[0], s.Tree.Node(refs[1]).Parent())
	assert.Equal(t, armature, s.Tree.Node(refs[2]).Parent(), "out of range parent falls back to the armature")
}

func TestBMDImporterImportErrors(t *testing.T) {
	imp := &BMDImporter{}

	_, err := imp.Import(MapSource{"enc.bmd": []byte("BMD\x0c")}, "enc.bmd")
	assert.True(t, errors.Is(err, formats.ErrEncryptedBMD))

	_, err = imp.Import(MapSource{"bad.bmd": []byte("XYZ\x0a")}, "bad.bmd")
	assert.True(t, errors.Is(err, formats.ErrInvalidBMDMagic))
}
