package importer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/tmdl/pkg/formats"
	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
)

var identity3 = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func triangleNode(name, parent string, pos [3]float32, twoSide int32) formats.RSMNode {
	return formats.RSMNode{
		Name:       name,
		Parent:     parent,
		TextureIDs: []int32{0},
		Matrix:     identity3,
		Position:   pos,
		Scale:      [3]float32{1, 1, 1},
		Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		TexCoords:  []formats.RSMTexCoord{{U: 0, V: 0}, {U: 1, V: 0}, {U: 0, V: 1}},
		Faces: []formats.RSMFace{
			{VertexIDs: [3]uint16{0, 1, 2}, TexCoordIDs: [3]uint16{0, 1, 2}, TwoSide: twoSide},
		},
	}
}

// testRSM is a root with one child and one node whose parent is missing.
// Only the root is animated.
func testRSM() *formats.RSM {
	root := triangleNode("root", "", [3]float32{1, 0, 0}, 1)
	root.RotKeys = []formats.RSMRotKeyframe{
		{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}},
		{Frame: 500, Quaternion: [4]float32{0, 0, 0.70710677, 0.70710677}},
	}
	child := triangleNode("child", "root", [3]float32{0, 2, 0}, 0)
	orphan := formats.RSMNode{Name: "orphan", Parent: "missing", Matrix: identity3}

	return &formats.RSM{
		Version:    formats.RSMVersion{Major: 1, Minor: 4},
		AnimLength: 1000,
		Alpha:      1,
		Textures:   []string{"wall.png"},
		RootNode:   "root",
		Nodes:      []formats.RSMNode{root, child, orphan},
	}
}

func TestRSMImporterBuild(t *testing.T) {
	src := MapSource{"data/texture/wall.png": pngBytes(t)}
	imp := &RSMImporter{Options: Options{TextureDirs: []string{"data/texture"}, ColorKey: true}}

	res, err := imp.build(src, "data/model/fountain.rsm", testRSM())
	require.NoError(t, err)

	s := res.Scene
	require.Len(t, s.Models, 1)
	require.Len(t, res.Models, 1)
	model := s.Models[0]
	assert.Equal(t, "fountain", model.Name)

	armature := res.Models[0].Armature
	assert.Equal(t, scene.RoleArmature, s.Tree.Node(armature).Role)
	rootRef, ok := s.Tree.GetChild(armature, "root")
	require.True(t, ok)
	_, ok = s.Tree.GetChild(rootRef, "child")
	assert.True(t, ok)
	_, ok = s.Tree.GetChild(armature, "orphan")
	assert.True(t, ok, "node with a missing parent hangs from the armature")

	// the root face is two-sided, the orphan has no geometry
	require.Len(t, model.Meshes, 2)
	rootMesh, childMesh := model.Meshes[0], model.Meshes[1]
	assert.Equal(t, 6, rootMesh.VertexCount())
	assert.Equal(t, 3, childMesh.VertexCount())
	assert.NoError(t, rootMesh.Validate())

	assert.True(t, rootMesh.Vertices[1].ApproxEqual(math.Vec3{X: 2}, 1e-5), "got %v", rootMesh.Vertices[1])
	assert.True(t, rootMesh.Normals[0].ApproxEqual(math.Vec3{Z: 1}, 1e-5))
	assert.True(t, rootMesh.Normals[3].ApproxEqual(math.Vec3{Z: -1}, 1e-5))
	assert.True(t, childMesh.Vertices[2].ApproxEqual(math.Vec3{X: 1, Y: 3}, 1e-5), "got %v", childMesh.Vertices[2])
	assert.Equal(t, math.Vec2{X: 1, Y: 0}, rootMesh.UV0[1])

	skins := res.Models[0].Skins
	require.Len(t, skins, 2)
	assert.True(t, skins[0].Shape.Rigid)
	assert.Equal(t, "root", skins[0].RigidJoint)
	assert.Equal(t, 6, skins[0].Declared)
	assert.Equal(t, "child", skins[1].RigidJoint)

	_, ok = s.GetNode("root_mesh")
	assert.True(t, ok)

	require.Len(t, model.Textures, 1)
	assert.Equal(t, "wall.png", model.Textures[0].Name)
	require.Len(t, model.Materials, 1)
	tex, ok := model.Materials[0].Sampler("diffuse")
	require.True(t, ok)
	assert.Equal(t, "wall.png", tex)

	require.Len(t, res.Animations, 1)
	anim := res.Animations[0]
	assert.Equal(t, "Take", anim.Name)
	assert.Equal(t, int32(1000), anim.TicksPerSecond)
	assert.Equal(t, float32(1000), anim.Duration)
	require.Len(t, anim.Channels(), 1, "nodes without keys are dropped")
	ch := anim.Channels()[0]
	assert.Equal(t, "root", ch.NodeName)
	assert.Len(t, ch.Rotations, 2)
}

func TestRSMImporterWarnsDroppedChannels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	imp := &RSMImporter{Options: Options{Log: zap.New(core)}}

	_, err := imp.build(MapSource{}, "fountain.rsm", testRSM())
	require.NoError(t, err)

	dropped := logs.FilterMessage("dropping empty channel")
	require.Equal(t, 2, dropped.Len())
	for _, entry := range dropped.All() {
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	}
	assert.Equal(t, "child", dropped.All()[0].ContextMap()["node"])

	parsed := logs.FilterMessage("imported RSM").All()
	require.Len(t, parsed, 1)
	assert.EqualValues(t, 6, parsed[0].ContextMap()["vertices"])
	assert.EqualValues(t, 2, parsed[0].ContextMap()["faces"])
}

func TestRSMImporterMissingTexture(t *testing.T) {
	imp := &RSMImporter{}
	res, err := imp.build(MapSource{}, "fountain.rsm", testRSM())
	require.NoError(t, err)

	model := res.Scene.Models[0]
	assert.Empty(t, model.Textures)
	require.Len(t, model.Materials, 1)
	_, ok := model.Materials[0].Sampler("diffuse")
	assert.False(t, ok)

	imp.RequireTextures = true
	_, err = imp.build(MapSource{}, "fountain.rsm", testRSM())
	assert.Error(t, err)
}

func TestRSMImporterImportErrors(t *testing.T) {
	imp := &RSMImporter{}

	_, err := imp.Import(MapSource{}, "missing.rsm")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = imp.Import(MapSource{"bad.rsm": []byte("XXXX\x01\x04")}, "bad.rsm")
	assert.True(t, errors.Is(err, formats.ErrInvalidRSMMagic))
}

func TestRSMBindPose(t *testing.T) {
	n := &formats.RSMNode{
		Position: [3]float32{1, 2, 3},
		RotAxis:  [3]float32{0, 0, 2},
		RotAngle: 1.5707964,
	}
	tr := rsmBindPose(n)
	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, tr.Position)
	assert.Equal(t, math.Vec3One(), tr.Scale, "zero scale means unscaled")
	assert.True(t, sameRotation(tr.Rotation, math.QuatFromAxisAngle(math.Vec3{Z: 1}, 1.5707964), 1e-5))

	n.RotKeys = []formats.RSMRotKeyframe{{Quaternion: [4]float32{0, 0, 0, 2}}}
	tr = rsmBindPose(n)
	assert.True(t, tr.Rotation.ApproxEqual(math.QuatIdentity(), 1e-6))
}
