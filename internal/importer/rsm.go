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

// RSM keyframes are in milliseconds.
const rsmTicksPerSecond = 1000

// rsmAnimationName names the single clip an RSM model carries.
const rsmAnimationName = "Take"

// RSMImporter imports Ragnarok Online RSM 1.x models. Every RSM node
// becomes a bone and its geometry a mesh rigidly bound to that bone.
type RSMImporter struct {
	Options
}

// Import implements Importer.
func (imp *RSMImporter) Import(src Source, name string) (*Result, error) {
	data, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}
	return imp.build(src, name, rsm)
}

func (imp *RSMImporter) build(src Source, name string, rsm *formats.RSM) (*Result, error) {
	log := imp.logger().With(zap.String("model", name))
	s, model, modelRef, armature := newModelScene(baseName(name))

	refs := rsmNodeTree(s.Tree, armature, rsm)

	textures, texIndex, err := loadTextures(src, imp.Options, path.Dir(strings.ReplaceAll(name, "\\", "/")), rsm.Textures)
	if err != nil {
		return nil, err
	}
	model.Textures = textures
	for i, ref := range rsm.Textures {
		mat := &scene.Material{Name: baseName(ref)}
		if texIndex[i] >= 0 {
			mat.SetSampler("diffuse", textures[texIndex[i]].Name)
		}
		model.Materials = append(model.Materials, mat)
	}

	md := ModelData{Model: model, Armature: armature}
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		world := s.Tree.WorldMatrix(refs[i])
		meshes := rsmNodeMeshes(node, world, len(rsm.Textures))
		if len(meshes) == 0 {
			continue
		}
		var indices []int32
		for _, mesh := range meshes {
			indices = append(indices, int32(len(model.Meshes)))
			model.Meshes = append(model.Meshes, mesh)
			md.Skins = append(md.Skins, Skin{
				Shape:      skin.Shape{Rigid: true},
				RigidJoint: node.Name,
				Declared:   mesh.VertexCount(),
			})
		}
		addMeshNode(s.Tree, modelRef, node.Name+"_mesh", indices...)
	}

	res := &Result{Scene: s, Models: []ModelData{md}}
	if rsm.HasAnimation() {
		res.Animations = append(res.Animations, rsmAnimation(rsm, log))
	}

	log.Debug("imported RSM",
		zap.String("version", rsm.Version.String()),
		zap.Int("nodes", len(rsm.Nodes)),
		zap.Int("vertices", rsm.GetTotalVertexCount()),
		zap.Int("faces", rsm.GetTotalFaceCount()),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("textures", len(model.Textures)))
	return res, nil
}

// rsmNodeTree creates one node per RSM node under armature, linked by parent
// name. The header's root node is attached first; nodes whose parent is
// missing or would close a cycle hang directly from the armature.
func rsmNodeTree(tree *scene.Tree, armature scene.Ref, rsm *formats.RSM) []scene.Ref {
	refs := make([]scene.Ref, len(rsm.Nodes))
	byName := make(map[string]int, len(rsm.Nodes))
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		refs[i] = tree.NewNode(n.Name)
		tree.Node(refs[i]).Transform = rsmBindPose(n)
		if _, dup := byName[n.Name]; !dup {
			byName[n.Name] = i
		}
	}

	if root := rsm.GetRootNode(); root != nil {
		tree.SetParent(refs[byName[root.Name]], armature)
	}
	for i := range rsm.Nodes {
		ref := refs[i]
		if tree.Node(ref).Parent() != scene.NoRef {
			continue
		}
		if p, ok := byName[rsm.Nodes[i].Parent]; ok && p != i {
			tree.SetParent(ref, refs[p])
		}
		if tree.Node(ref).Parent() == scene.NoRef {
			tree.SetParent(ref, armature)
		}
	}
	return refs
}

// rsmBindPose is the node's local transform at time zero: the first
// rotation key when the node is animated, its axis-angle otherwise.
func rsmBindPose(n *formats.RSMNode) scene.Transform {
	t := scene.IdentityTransform()
	t.Position = math.Vec3FromArray(n.Position)

	switch {
	case len(n.RotKeys) > 0:
		t.Rotation = quatFromArray(n.RotKeys[0].Quaternion).Normalize()
	case n.RotAngle != 0:
		axis := math.Vec3FromArray(n.RotAxis)
		if axis.Length() > 1e-6 {
			t.Rotation = math.QuatFromAxisAngle(axis.Normalize(), n.RotAngle)
		}
	}

	if n.Scale != [3]float32{} {
		t.Scale = math.Vec3FromArray(n.Scale)
	}
	return t
}

// rsmNodeMeshes expands the node's faces into one mesh per texture, in
// first-use order. Vertices are moved to model space through the node's
// bind-pose world matrix, its pivot offset and its vertex-only 3x3 matrix.
func rsmNodeMeshes(node *formats.RSMNode, world math.Mat4, textureCount int) []*scene.Mesh {
	vertexMatrix := world.
		Mul(math.Translate(node.Offset[0], node.Offset[1], node.Offset[2])).
		Mul(math.FromMat3x3(node.Matrix))

	positions := make([]math.Vec3, len(node.Vertices))
	for i, v := range node.Vertices {
		positions[i] = math.Vec3FromArray(vertexMatrix.TransformPoint(v))
	}

	var meshes []*scene.Mesh
	byTexture := make(map[int]*scene.Mesh)
	for _, face := range node.Faces {
		valid := true
		for _, vid := range face.VertexIDs {
			if int(vid) >= len(positions) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		a, b, c := positions[face.VertexIDs[0]], positions[face.VertexIDs[1]], positions[face.VertexIDs[2]]
		normal, ok := faceNormal(a, b, c)
		if !ok {
			continue
		}

		tex := 0
		if int(face.TextureID) < len(node.TextureIDs) {
			tex = int(node.TextureIDs[face.TextureID])
		}
		if tex < 0 || tex >= textureCount {
			tex = 0
		}
		mesh, ok := byTexture[tex]
		if !ok {
			mesh = &scene.Mesh{Name: node.Name, MaterialIndex: int32(tex)}
			byTexture[tex] = mesh
			meshes = append(meshes, mesh)
		}

		rsmAddFace(mesh, node, face, positions, normal, false)
		if face.TwoSide != 0 {
			rsmAddFace(mesh, node, face, positions, normal, true)
		}
	}

	if len(meshes) > 1 {
		for _, m := range meshes {
			m.Name = fmt.Sprintf("%s_%d", node.Name, m.MaterialIndex)
		}
	}
	return meshes
}

// rsmAddFace appends one triangle; back faces reverse the winding and flip
// the normal.
func rsmAddFace(mesh *scene.Mesh, node *formats.RSMNode, face formats.RSMFace, positions []math.Vec3, normal math.Vec3, back bool) {
	order := [3]int{0, 1, 2}
	if back {
		order = [3]int{2, 1, 0}
		normal = normal.Scale(-1)
	}
	for _, j := range order {
		var uv math.Vec2
		if tc := int(face.TexCoordIDs[j]); tc < len(node.TexCoords) {
			uv = math.Vec2{X: node.TexCoords[tc].U, Y: node.TexCoords[tc].V}
		}
		mesh.Indices = append(mesh.Indices, uint32(len(mesh.Vertices)))
		mesh.Vertices = append(mesh.Vertices, positions[face.VertexIDs[j]])
		mesh.Normals = append(mesh.Normals, normal)
		mesh.UV0 = append(mesh.UV0, uv)
	}
}

// rsmAnimation collects every node's keyframes into one clip. Nodes
// without keys produce empty channels, which the clip rejects.
func rsmAnimation(rsm *formats.RSM, log *zap.Logger) *scene.Animation {
	anim := scene.NewAnimation(rsmAnimationName, float32(rsm.AnimLength), rsmTicksPerSecond)
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		ch := scene.NewChannel(n.Name)
		for _, k := range n.PosKeys {
			ch.AddPosition(scene.Key[math.Vec3]{Time: float32(k.Frame), Value: math.Vec3FromArray(k.Position)})
		}
		for _, k := range n.RotKeys {
			ch.AddRotation(scene.Key[math.Vec4]{Time: float32(k.Frame), Value: quatFromArray(k.Quaternion).Normalize()})
		}
		for _, k := range n.ScaleKeys {
			ch.AddScale(scene.Key[math.Vec3]{Time: float32(k.Frame), Value: math.Vec3FromArray(k.Scale)})
		}
		if !anim.AddChannel(ch) {
			log.Warn("dropping empty channel", zap.String("animation", anim.Name), zap.String("node", n.Name))
		}
	}
	return anim
}

func quatFromArray(q [4]float32) math.Vec4 {
	return math.Vec4{X: q[0], Y: q[1], Z: q[2], W: q[3]}
}
