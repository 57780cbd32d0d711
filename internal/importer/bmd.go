package importer

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/pkg/formats"
	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
	"github.com/Faultbox/tmdl/pkg/skin"
)

// BMD actions advance one key per tick.
const bmdTicksPerSecond = 25

// BMDImporter imports unencrypted MU Online BMD models. Vertices are bound
// rigidly to the bone they are authored against.
type BMDImporter struct {
	Options
}

// Import implements Importer.
func (imp *BMDImporter) Import(src Source, name string) (*Result, error) {
	data, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	bmd, err := formats.ParseBMD(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}
	return imp.build(src, name, bmd)
}

func (imp *BMDImporter) build(src Source, name string, bmd *formats.BMD) (*Result, error) {
	log := imp.logger().With(zap.String("model", name))
	modelName := baseName(name)
	s, model, modelRef, armature := newModelScene(modelName)

	refs, joints := bmdBoneTree(s.Tree, armature, bmd)
	worlds := make([]math.Mat4, len(refs))
	for i, ref := range refs {
		worlds[i] = math.Identity()
		if ref != scene.NoRef {
			worlds[i] = s.Tree.WorldMatrix(ref)
		}
	}

	var refsByMesh []string
	var unique []string
	seen := make(map[string]bool)
	for _, m := range bmd.Meshes {
		refsByMesh = append(refsByMesh, m.Texture)
		if m.Texture != "" && !seen[m.Texture] {
			seen[m.Texture] = true
			unique = append(unique, m.Texture)
		}
	}
	textures, texIndex, err := loadTextures(src, imp.Options, path.Dir(strings.ReplaceAll(name, "\\", "/")), unique)
	if err != nil {
		return nil, err
	}
	model.Textures = textures
	loaded := make(map[string]string)
	for i, ref := range unique {
		if texIndex[i] >= 0 {
			loaded[ref] = textures[texIndex[i]].Name
		}
	}

	md := ModelData{Model: model, Armature: armature}
	var meshIndices []int32
	for i := range bmd.Meshes {
		mesh, ids := bmdMesh(&bmd.Meshes[i], worlds)
		mesh.Name = fmt.Sprintf("%s_%d", modelName, i)
		mesh.MaterialIndex = int32(len(model.Materials))

		mat := &scene.Material{Name: mesh.Name}
		if tex, ok := loaded[refsByMesh[i]]; ok {
			mat.SetSampler("diffuse", tex)
		}
		model.Materials = append(model.Materials, mat)

		weights := make([][4]float32, len(ids))
		for v := range weights {
			weights[v] = [4]float32{1, 0, 0, 0}
		}
		md.Skins = append(md.Skins, Skin{
			Shape: skin.Shape{
				Indices:   ids,
				Weights:   weights,
				SkinCount: 1,
			},
			Joints:   joints,
			Declared: len(ids),
		})
		meshIndices = append(meshIndices, int32(len(model.Meshes)))
		model.Meshes = append(model.Meshes, mesh)
	}
	if len(meshIndices) > 0 {
		addMeshNode(s.Tree, modelRef, modelName+"_mesh", meshIndices...)
	}

	res := &Result{Scene: s, Models: []ModelData{md}}
	for a := range bmd.Actions {
		res.Animations = append(res.Animations, bmdAnimation(bmd, a, joints, log))
	}

	log.Debug("imported BMD",
		zap.Uint8("version", bmd.Version),
		zap.Int("bones", len(bmd.Bones)),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("actions", len(bmd.Actions)))
	return res, nil
}

// bmdBoneTree creates a node per non-dummy bone under armature in its bind
// pose. It returns the node of every bone index (NoRef for dummies) and the
// unique joint name of every bone index ("" for dummies).
func bmdBoneTree(tree *scene.Tree, armature scene.Ref, bmd *formats.BMD) ([]scene.Ref, []string) {
	refs := make([]scene.Ref, len(bmd.Bones))
	joints := make([]string, len(bmd.Bones))
	used := make(map[string]bool)

	for i := range bmd.Bones {
		b := &bmd.Bones[i]
		refs[i] = scene.NoRef
		if b.Dummy {
			continue
		}
		name := b.Name
		switch {
		case name == "":
			name = fmt.Sprintf("bone_%d", i)
		case used[name]:
			name = fmt.Sprintf("%s_%d", name, i)
		}
		used[name] = true
		joints[i] = name

		refs[i] = tree.NewNode(name)
		pos, rot := bmd.BindPose(i)
		n := tree.Node(refs[i])
		n.Position = math.Vec3FromArray(pos)
		n.Rotation = math.FromEuler(math.Vec3FromArray(rot))
	}

	for i := range bmd.Bones {
		ref := refs[i]
		if ref == scene.NoRef {
			continue
		}
		p := int(bmd.Bones[i].Parent)
		if p >= 0 && p < len(refs) && p != i && refs[p] != scene.NoRef {
			tree.SetParent(ref, refs[p])
		}
		if tree.Node(ref).Parent() == scene.NoRef {
			tree.SetParent(ref, armature)
		}
	}
	return refs, joints
}

// bmdMesh expands the triangles of m into a flat vertex list in model space
// and returns the bone index of every vertex.
func bmdMesh(m *formats.BMDMesh, worlds []math.Mat4) (*scene.Mesh, [][4]int32) {
	mesh := &scene.Mesh{}
	var ids [][4]int32

	world := func(node int16) math.Mat4 {
		if node >= 0 && int(node) < len(worlds) {
			return worlds[node]
		}
		return math.Identity()
	}

	for _, tri := range m.Triangles {
		for _, corners := range tri.Corners() {
			if !bmdCornersValid(m, tri, corners) {
				continue
			}
			for _, k := range corners {
				v := m.Vertices[tri.VertexIDs[k]]
				pos := math.Vec3FromArray(world(v.Node).TransformPoint(v.Position))

				var normal math.Vec3
				if nid := int(tri.NormalIDs[k]); nid >= 0 && nid < len(m.Normals) {
					nrm := m.Normals[nid]
					normal = math.Vec3FromArray(world(nrm.Node).TransformDirection(nrm.Normal)).Normalize()
				}

				var uv math.Vec2
				if tid := int(tri.TexCoordIDs[k]); tid >= 0 && tid < len(m.TexCoords) {
					uv = math.Vec2{X: m.TexCoords[tid][0], Y: m.TexCoords[tid][1]}
				}

				mesh.Indices = append(mesh.Indices, uint32(len(mesh.Vertices)))
				mesh.Vertices = append(mesh.Vertices, pos)
				mesh.Normals = append(mesh.Normals, normal)
				mesh.UV0 = append(mesh.UV0, uv)
				ids = append(ids, [4]int32{int32(v.Node), -1, -1, -1})
			}
		}
	}
	return mesh, ids
}

func bmdCornersValid(m *formats.BMDMesh, tri formats.BMDTriangle, corners [3]int) bool {
	for _, k := range corners {
		vid := int(tri.VertexIDs[k])
		if vid < 0 || vid >= len(m.Vertices) {
			return false
		}
	}
	return true
}

// bmdAnimation turns one action into a clip. Rotations are Euler angles, so
// the clip renormalizes them as channels are added.
func bmdAnimation(bmd *formats.BMD, action int, joints []string, log *zap.Logger) *scene.Animation {
	keyCount := bmd.Actions[action].KeyCount
	anim := scene.NewAnimation(fmt.Sprintf("action_%d", action), float32(keyCount), bmdTicksPerSecond)
	anim.Euler = true

	for i := range bmd.Bones {
		b := &bmd.Bones[i]
		if b.Dummy || action >= len(b.Actions) {
			continue
		}
		keys := b.Actions[action]
		ch := scene.NewChannel(joints[i])
		for k, p := range keys.Positions {
			ch.AddPosition(scene.Key[math.Vec3]{Time: float32(k), Value: math.Vec3FromArray(p)})
		}
		for k, r := range keys.Rotations {
			ch.AddRotation(scene.Key[math.Vec4]{Time: float32(k), Value: math.FromEuler(math.Vec3FromArray(r))})
		}
		if !anim.AddChannel(ch) {
			log.Warn("dropping empty channel", zap.String("animation", anim.Name), zap.String("bone", joints[i]))
		}
	}
	return anim
}
