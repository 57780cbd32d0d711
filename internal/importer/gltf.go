package importer

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
	"github.com/Faultbox/tmdl/pkg/skin"
)

// glTF times are seconds; clips are stored in milliseconds.
const gltfTicksPerSecond = 1000

// GLTFImporter imports glTF 2.0 and GLB files. The node hierarchy of the
// default scene becomes the skeleton; skinned primitives keep their joint
// influences and unskinned ones are rigidly bound to their node.
type GLTFImporter struct {
	Options
}

// Import implements Importer. External buffers and images are resolved
// relative to the model through src.
func (imp *GLTFImporter) Import(src Source, name string) (*Result, error) {
	data, err := src.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	dir := path.Dir(strings.ReplaceAll(name, "\\", "/"))

	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), sourceFS{src: SubSource{Source: src, Dir: dir}})
	if err := dec.Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}
	return imp.build(src, name, doc)
}

// gltfBuild carries the state of one import.
type gltfBuild struct {
	doc  *gltf.Document
	src  Source
	dir  string
	opts Options
	log  *zap.Logger

	s     *scene.Scene
	model *scene.Model

	// refs and names are indexed by glTF node; unreachable nodes keep NoRef.
	refs  []scene.Ref
	names []string

	// textureByImage maps glTF images to loaded texture names.
	textureByImage map[uint32]string
	defaultMat     int32
}

func (imp *GLTFImporter) build(src Source, name string, doc *gltf.Document) (*Result, error) {
	b := &gltfBuild{
		doc:            doc,
		src:            src,
		dir:            path.Dir(strings.ReplaceAll(name, "\\", "/")),
		opts:           imp.Options,
		log:            imp.logger().With(zap.String("model", name)),
		textureByImage: make(map[uint32]string),
		defaultMat:     -1,
	}
	modelName := baseName(name)
	s, model, modelRef, armature := newModelScene(modelName)
	b.s, b.model = s, model

	b.nodeTree(armature)
	if err := b.images(); err != nil {
		return nil, err
	}
	b.materials()

	md := ModelData{Model: model, Armature: armature, Offsets: make(map[string]math.Mat4)}
	for i, node := range doc.Nodes {
		if node.Mesh == nil || b.refs[i] == scene.NoRef {
			continue
		}
		indices, skins, err := b.meshes(i, node)
		if err != nil {
			return nil, err
		}
		if len(indices) == 0 {
			continue
		}
		md.Skins = append(md.Skins, skins...)
		addMeshNode(s.Tree, modelRef, b.names[i]+"_mesh", indices...)
	}
	if err := b.offsets(md.Offsets); err != nil {
		return nil, err
	}

	res := &Result{Scene: s, Models: []ModelData{md}}
	for i := range doc.Animations {
		anim, err := b.animation(i)
		if err != nil {
			return nil, err
		}
		res.Animations = append(res.Animations, anim)
	}

	b.log.Debug("imported glTF",
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("skins", len(doc.Skins)),
		zap.Int("animations", len(res.Animations)))
	return res, nil
}

// sceneRoots returns the root nodes of the default scene, or every
// parentless node when the document has no scenes.
func (b *gltfBuild) sceneRoots(parents []int) []uint32 {
	if len(b.doc.Scenes) > 0 {
		idx := uint32(0)
		if b.doc.Scene != nil && int(*b.doc.Scene) < len(b.doc.Scenes) {
			idx = *b.doc.Scene
		}
		return b.doc.Scenes[idx].Nodes
	}
	var roots []uint32
	for i, p := range parents {
		if p < 0 {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

// nodeTree mirrors the reachable glTF hierarchy under armature. Node names
// are made unique so bones can be looked up by name.
func (b *gltfBuild) nodeTree(armature scene.Ref) {
	n := len(b.doc.Nodes)
	b.refs = make([]scene.Ref, n)
	b.names = make([]string, n)
	parents := make([]int, n)
	for i := range parents {
		parents[i] = -1
		b.refs[i] = scene.NoRef
	}
	for i, node := range b.doc.Nodes {
		for _, c := range node.Children {
			if int(c) < n && parents[c] < 0 && int(c) != i {
				parents[c] = i
			}
		}
	}

	used := make(map[string]bool)
	var visit func(i uint32, parent scene.Ref)
	visit = func(i uint32, parent scene.Ref) {
		if int(i) >= n || b.refs[i] != scene.NoRef {
			return
		}
		node := b.doc.Nodes[i]
		name := node.Name
		switch {
		case name == "":
			name = fmt.Sprintf("node_%d", i)
		case used[name]:
			name = fmt.Sprintf("%s_%d", name, i)
		}
		used[name] = true
		b.names[i] = name

		ref := b.s.Tree.AddNode(parent, name)
		b.refs[i] = ref
		b.s.Tree.Node(ref).Transform = gltfNodeTransform(node)
		for _, c := range node.Children {
			visit(c, ref)
		}
	}
	for _, root := range b.sceneRoots(parents) {
		visit(root, armature)
	}
}

// gltfNodeTransform returns the node's local TRS. A node matrix takes
// precedence and is decomposed assuming no shear.
func gltfNodeTransform(node *gltf.Node) scene.Transform {
	m := math.Mat4(node.Matrix)
	if m != (math.Mat4{}) && m != math.Identity() {
		return decompose(m)
	}
	t := scene.IdentityTransform()
	t.Position = math.Vec3FromArray(node.TranslationOrDefault())
	t.Rotation = quatFromArray(node.RotationOrDefault()).Normalize()
	t.Scale = math.Vec3FromArray(node.ScaleOrDefault())
	return t
}

// decompose splits a column-major affine matrix into translation, rotation
// and scale.
func decompose(m math.Mat4) scene.Transform {
	gm := mgl32.Mat4(m)
	t := scene.IdentityTransform()
	t.Position = math.Vec3{X: gm[12], Y: gm[13], Z: gm[14]}

	c0, c1, c2 := gm.Col(0).Vec3(), gm.Col(1).Vec3(), gm.Col(2).Vec3()
	sx, sy, sz := c0.Len(), c1.Len(), c2.Len()
	t.Scale = math.Vec3{X: sx, Y: sy, Z: sz}
	if sx < 1e-8 || sy < 1e-8 || sz < 1e-8 {
		return t
	}

	rot := mgl32.Mat3FromCols(c0.Mul(1/sx), c1.Mul(1/sy), c2.Mul(1/sz))
	q := mgl32.Mat4ToQuat(rot.Mat4()).Normalize()
	t.Rotation = math.Vec4{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
	return t
}

// images decodes every image once. Undecodable images are skipped unless
// textures are required.
func (b *gltfBuild) images() error {
	for i, im := range b.doc.Images {
		name, data, err := b.imageData(i, im)
		if err == nil {
			var tex *scene.Texture
			tex, err = DecodeTexture(name, data, b.opts.ColorKey)
			if err == nil {
				b.textureByImage[uint32(i)] = tex.Name
				b.model.Textures = append(b.model.Textures, tex)
				continue
			}
		}
		if b.opts.RequireTextures {
			return errors.Wrapf(err, "loading image %s", name)
		}
		b.log.Warn("skipping image", zap.String("image", name), zap.Error(err))
	}
	return nil
}

// imageData returns a texture name and the encoded bytes of an image,
// whether it lives in a buffer view, a data URI or an external file.
func (b *gltfBuild) imageData(i int, im *gltf.Image) (string, []byte, error) {
	name := im.Name
	switch {
	case im.BufferView != nil:
		if name == "" {
			name = fmt.Sprintf("image_%d%s", i, mimeExt(im.MimeType))
		}
		data, err := b.bufferView(*im.BufferView)
		return name, data, err
	case im.IsEmbeddedResource():
		if name == "" {
			name = fmt.Sprintf("image_%d%s", i, mimeExt(im.MimeType))
		}
		data, err := im.MarshalData()
		return name, data, errors.Wrapf(err, "image %d", i)
	default:
		uri, err := url.PathUnescape(im.URI)
		if err != nil {
			uri = im.URI
		}
		if name == "" {
			name = uri
		}
		data, err := b.src.Read(path.Join(b.dir, uri))
		return name, data, err
	}
}

func (b *gltfBuild) bufferView(idx uint32) ([]byte, error) {
	if int(idx) >= len(b.doc.BufferViews) {
		return nil, errors.Errorf("buffer view %d out of range", idx)
	}
	bv := b.doc.BufferViews[idx]
	if int(bv.Buffer) >= len(b.doc.Buffers) {
		return nil, errors.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := b.doc.Buffers[bv.Buffer].Data
	end := int(bv.ByteOffset) + int(bv.ByteLength)
	if end > len(data) {
		return nil, errors.Errorf("buffer view %d exceeds buffer %d", idx, bv.Buffer)
	}
	return data[bv.ByteOffset:end], nil
}

func mimeExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	return ""
}

// materials creates one material per glTF material with its base colour,
// normal and emissive samplers.
func (b *gltfBuild) materials() {
	for i, m := range b.doc.Materials {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		mat := &scene.Material{Name: name}
		if pbr := m.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
			b.bindSampler(mat, "diffuse", pbr.BaseColorTexture.Index)
		}
		if m.NormalTexture != nil && m.NormalTexture.Index != nil {
			b.bindSampler(mat, "normal", *m.NormalTexture.Index)
		}
		if m.EmissiveTexture != nil {
			b.bindSampler(mat, "emissive", m.EmissiveTexture.Index)
		}
		b.model.Materials = append(b.model.Materials, mat)
	}
}

func (b *gltfBuild) bindSampler(mat *scene.Material, sampler string, texture uint32) {
	if int(texture) >= len(b.doc.Textures) {
		return
	}
	src := b.doc.Textures[texture].Source
	if src == nil {
		return
	}
	if name, ok := b.textureByImage[*src]; ok {
		mat.SetSampler(sampler, name)
	}
}

// materialIndex maps a primitive's material to the model's material list,
// creating an untextured default when the primitive has none.
func (b *gltfBuild) materialIndex(idx *uint32) int32 {
	if idx != nil && int(*idx) < len(b.doc.Materials) {
		return int32(*idx)
	}
	if b.defaultMat < 0 {
		b.defaultMat = int32(len(b.model.Materials))
		b.model.Materials = append(b.model.Materials, &scene.Material{Name: "default"})
	}
	return b.defaultMat
}

// meshes converts the primitives of the mesh node i carries. Skinned
// primitives keep their bind-space positions; unskinned ones are moved to
// model space and bound to the node.
func (b *gltfBuild) meshes(i int, node *gltf.Node) ([]int32, []Skin, error) {
	if int(*node.Mesh) >= len(b.doc.Meshes) {
		return nil, nil, errors.Errorf("node %s: mesh %d out of range", b.names[i], *node.Mesh)
	}
	gm := b.doc.Meshes[*node.Mesh]

	var joints []string
	skinned := node.Skin != nil && int(*node.Skin) < len(b.doc.Skins)
	if skinned {
		for _, j := range b.doc.Skins[*node.Skin].Joints {
			name := ""
			if int(j) < len(b.names) {
				name = b.names[j]
			}
			joints = append(joints, name)
		}
	}
	world := b.s.Tree.WorldMatrix(b.refs[i])

	var indices []int32
	var skins []Skin
	for p, prim := range gm.Primitives {
		meshName := gm.Name
		if meshName == "" {
			meshName = b.names[i]
		}
		if len(gm.Primitives) > 1 {
			meshName = fmt.Sprintf("%s_%d", meshName, p)
		}
		if prim.Mode != gltf.PrimitiveTriangles {
			b.log.Warn("skipping non-triangle primitive", zap.String("mesh", meshName))
			continue
		}

		mesh, err := b.primitive(prim)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "mesh %s", meshName)
		}
		mesh.Name = meshName
		mesh.MaterialIndex = b.materialIndex(prim.Material)

		var sk Skin
		if skinned {
			sk, err = b.primitiveSkin(prim, mesh, joints)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "mesh %s", meshName)
			}
		} else {
			for v := range mesh.Vertices {
				mesh.Vertices[v] = world.TransformVec3(mesh.Vertices[v])
				mesh.Normals[v] = math.Vec3FromArray(world.TransformDirection(mesh.Normals[v].Array())).Normalize()
			}
			sk = Skin{
				Shape:      skin.Shape{Rigid: true},
				RigidJoint: b.names[i],
				Declared:   mesh.VertexCount(),
			}
		}

		indices = append(indices, int32(len(b.model.Meshes)))
		b.model.Meshes = append(b.model.Meshes, mesh)
		skins = append(skins, sk)
	}
	return indices, skins, nil
}

// primitive reads positions, normals, the first UV set and indices.
// Missing normals are accumulated from the faces.
func (b *gltfBuild) primitive(prim *gltf.Primitive) (*scene.Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || int(posIdx) >= len(b.doc.Accessors) {
		return nil, errors.New("primitive has no positions")
	}
	positions, err := modeler.ReadPosition(b.doc, b.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, errors.Wrap(err, "reading positions")
	}

	mesh := &scene.Mesh{
		Vertices: make([]math.Vec3, len(positions)),
		Normals:  make([]math.Vec3, len(positions)),
		UV0:      make([]math.Vec2, len(positions)),
	}
	for v, p := range positions {
		mesh.Vertices[v] = math.Vec3FromArray(p)
	}

	if prim.Indices != nil && int(*prim.Indices) < len(b.doc.Accessors) {
		mesh.Indices, err = modeler.ReadIndices(b.doc, b.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading indices")
		}
	} else {
		mesh.Indices = make([]uint32, len(positions))
		for v := range mesh.Indices {
			mesh.Indices[v] = uint32(v)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok && int(idx) < len(b.doc.Accessors) {
		uvs, err := modeler.ReadTextureCoord(b.doc, b.doc.Accessors[idx], nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading texture coordinates")
		}
		for v := 0; v < len(uvs) && v < len(mesh.UV0); v++ {
			mesh.UV0[v] = math.Vec2{X: uvs[v][0], Y: uvs[v][1]}
		}
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok && int(idx) < len(b.doc.Accessors) {
		normals, err := modeler.ReadNormal(b.doc, b.doc.Accessors[idx], nil)
		if err != nil {
			return nil, errors.Wrap(err, "reading normals")
		}
		for v := 0; v < len(normals) && v < len(mesh.Normals); v++ {
			mesh.Normals[v] = math.Vec3FromArray(normals[v])
		}
	} else {
		accumulateNormals(mesh)
	}
	return mesh, nil
}

// accumulateNormals sets every vertex normal to the normalized sum of the
// normals of the faces using it.
func accumulateNormals(mesh *scene.Mesh) {
	for f := 0; f+2 < len(mesh.Indices); f += 3 {
		ia, ib, ic := mesh.Indices[f], mesh.Indices[f+1], mesh.Indices[f+2]
		if int(ia) >= len(mesh.Vertices) || int(ib) >= len(mesh.Vertices) || int(ic) >= len(mesh.Vertices) {
			continue
		}
		n, ok := faceNormal(mesh.Vertices[ia], mesh.Vertices[ib], mesh.Vertices[ic])
		if !ok {
			continue
		}
		for _, v := range [3]uint32{ia, ib, ic} {
			mesh.Normals[v] = mesh.Normals[v].Add(n)
		}
	}
	for v := range mesh.Normals {
		mesh.Normals[v] = mesh.Normals[v].Normalize()
	}
}

// primitiveSkin reads JOINTS_0 and WEIGHTS_0. The joints accessor count is
// the declared skin vertex count.
func (b *gltfBuild) primitiveSkin(prim *gltf.Primitive, mesh *scene.Mesh, joints []string) (Skin, error) {
	sk := Skin{
		Shape:    skin.Shape{SkinCount: skin.MaxInfluences},
		Joints:   joints,
		Declared: mesh.VertexCount(),
	}

	if idx, ok := prim.Attributes[gltf.JOINTS_0]; ok && int(idx) < len(b.doc.Accessors) {
		raw, err := modeler.ReadJoints(b.doc, b.doc.Accessors[idx], nil)
		if err != nil {
			return sk, errors.Wrap(err, "reading joints")
		}
		sk.Declared = len(raw)
		sk.Shape.Indices = make([][4]int32, len(raw))
		for v, j := range raw {
			sk.Shape.Indices[v] = [4]int32{int32(j[0]), int32(j[1]), int32(j[2]), int32(j[3])}
		}
	}
	if idx, ok := prim.Attributes[gltf.WEIGHTS_0]; ok && int(idx) < len(b.doc.Accessors) {
		w, err := modeler.ReadWeights(b.doc, b.doc.Accessors[idx], nil)
		if err != nil {
			return sk, errors.Wrap(err, "reading weights")
		}
		sk.Shape.Weights = w
	}

	extra, ok, err := b.secondInfluenceSet(prim)
	if err != nil {
		return sk, err
	}
	if ok {
		sk.Shape = mergeInfluences(sk.Shape, extra, mesh.VertexCount())
	}
	return sk, nil
}

// secondInfluenceSet reads JOINTS_1 and WEIGHTS_1 when both are present.
func (b *gltfBuild) secondInfluenceSet(prim *gltf.Primitive) (skin.Shape, bool, error) {
	ji, okJ := prim.Attributes["JOINTS_1"]
	wi, okW := prim.Attributes["WEIGHTS_1"]
	if !okJ || !okW || int(ji) >= len(b.doc.Accessors) || int(wi) >= len(b.doc.Accessors) {
		return skin.Shape{}, false, nil
	}
	raw, err := modeler.ReadJoints(b.doc, b.doc.Accessors[ji], nil)
	if err != nil {
		return skin.Shape{}, false, errors.Wrap(err, "reading second joint set")
	}
	w, err := modeler.ReadWeights(b.doc, b.doc.Accessors[wi], nil)
	if err != nil {
		return skin.Shape{}, false, errors.Wrap(err, "reading second weight set")
	}
	shape := skin.Shape{Indices: make([][4]int32, len(raw)), Weights: w}
	for v, j := range raw {
		shape.Indices[v] = [4]int32{int32(j[0]), int32(j[1]), int32(j[2]), int32(j[3])}
	}
	return shape, true, nil
}

// mergeInfluences folds two four-slot influence sets into one, the first set
// taking the free slots first. Influences beyond four per vertex are dropped.
func mergeInfluences(first, second skin.Shape, vertexCount int) skin.Shape {
	in := skin.NewInfluences(vertexCount)
	for _, set := range []skin.Shape{first, second} {
		for v := 0; v < vertexCount && v < len(set.Indices) && v < len(set.Weights); v++ {
			for slot := 0; slot < skin.MaxInfluences; slot++ {
				in.Add(v, set.Indices[v][slot], set.Weights[v][slot])
			}
		}
	}
	return in.Shape()
}

// offsets records the inverse bind matrices of every skin by joint name.
func (b *gltfBuild) offsets(out map[string]math.Mat4) error {
	for s, sk := range b.doc.Skins {
		if sk.InverseBindMatrices == nil || int(*sk.InverseBindMatrices) >= len(b.doc.Accessors) {
			continue
		}
		v, err := modeler.ReadAccessor(b.doc, b.doc.Accessors[*sk.InverseBindMatrices], nil)
		if err != nil {
			return errors.Wrapf(err, "reading inverse bind matrices of skin %d", s)
		}
		mats, ok := v.([][4][4]float32)
		if !ok {
			return errors.Errorf("skin %d: inverse bind matrices are %T", s, v)
		}
		for j, node := range sk.Joints {
			if j >= len(mats) || int(node) >= len(b.names) || b.names[node] == "" {
				continue
			}
			var m math.Mat4
			for c := 0; c < 4; c++ {
				for r := 0; r < 4; r++ {
					m[c*4+r] = mats[j][r][c]
				}
			}
			out[b.names[node]] = m
		}
	}
	return nil
}

// animation converts one glTF animation. Every targeted node gets one
// channel; cubic-spline outputs keep only their values.
func (b *gltfBuild) animation(i int) (*scene.Animation, error) {
	ga := b.doc.Animations[i]
	name := ga.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", i)
	}

	var order []*scene.Channel
	byNode := make(map[uint32]*scene.Channel)
	var end float32

	for _, gc := range ga.Channels {
		if gc.Sampler == nil || gc.Target.Node == nil || int(*gc.Sampler) >= len(ga.Samplers) {
			continue
		}
		node := *gc.Target.Node
		if int(node) >= len(b.refs) || b.refs[node] == scene.NoRef {
			continue
		}
		if gc.Target.Path != gltf.TRSTranslation && gc.Target.Path != gltf.TRSRotation && gc.Target.Path != gltf.TRSScale {
			continue
		}
		sampler := ga.Samplers[*gc.Sampler]
		times, values, err := b.samplerData(sampler)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s", name)
		}

		ch, ok := byNode[node]
		if !ok {
			ch = scene.NewChannel(b.names[node])
			byNode[node] = ch
			order = append(order, ch)
		}
		for k, t := range times {
			if k >= len(values) {
				break
			}
			tick := t * gltfTicksPerSecond
			if tick > end {
				end = tick
			}
			v := values[k]
			switch gc.Target.Path {
			case gltf.TRSTranslation:
				ch.AddPosition(scene.Key[math.Vec3]{Time: tick, Value: math.Vec3{X: v[0], Y: v[1], Z: v[2]}})
			case gltf.TRSRotation:
				ch.AddRotation(scene.Key[math.Vec4]{Time: tick, Value: quatFromArray(v).Normalize()})
			case gltf.TRSScale:
				ch.AddScale(scene.Key[math.Vec3]{Time: tick, Value: math.Vec3{X: v[0], Y: v[1], Z: v[2]}})
			}
		}
	}

	anim := scene.NewAnimation(name, end, gltfTicksPerSecond)
	for _, ch := range order {
		if !anim.AddChannel(ch) {
			b.log.Warn("dropping empty channel", zap.String("animation", name), zap.String("node", ch.NodeName))
		}
	}
	return anim, nil
}

// samplerData reads a sampler's key times and outputs, widened to four
// components.
func (b *gltfBuild) samplerData(s *gltf.AnimationSampler) ([]float32, [][4]float32, error) {
	if s.Input == nil || s.Output == nil ||
		int(*s.Input) >= len(b.doc.Accessors) || int(*s.Output) >= len(b.doc.Accessors) {
		return nil, nil, errors.New("sampler accessor out of range")
	}
	in, err := modeler.ReadAccessor(b.doc, b.doc.Accessors[*s.Input], nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading key times")
	}
	times, ok := in.([]float32)
	if !ok {
		return nil, nil, errors.Errorf("key times are %T", in)
	}

	out, err := modeler.ReadAccessor(b.doc, b.doc.Accessors[*s.Output], nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading key values")
	}
	values, err := widen(out)
	if err != nil {
		return nil, nil, err
	}

	if s.Interpolation == gltf.InterpolationCubicSpline && len(values) == 3*len(times) {
		keep := make([][4]float32, len(times))
		for k := range keep {
			keep[k] = values[3*k+1]
		}
		values = keep
	}
	return times, values, nil
}

// widen converts accessor output to float vectors, normalizing integer
// rotations.
func widen(v any) ([][4]float32, error) {
	switch data := v.(type) {
	case [][3]float32:
		out := make([][4]float32, len(data))
		for i, d := range data {
			out[i] = [4]float32{d[0], d[1], d[2], 0}
		}
		return out, nil
	case [][4]float32:
		return data, nil
	case [][4]int8:
		return normalized(data, 127), nil
	case [][4]uint8:
		return normalized(data, 255), nil
	case [][4]int16:
		return normalized(data, 32767), nil
	case [][4]uint16:
		return normalized(data, 65535), nil
	}
	return nil, errors.Errorf("unsupported key values %T", v)
}

func normalized[T int8 | uint8 | int16 | uint16](data [][4]T, scale float32) [][4]float32 {
	out := make([][4]float32, len(data))
	for i, d := range data {
		for c := range d {
			f := float32(d[c]) / scale
			if f < -1 {
				f = -1
			}
			out[i][c] = f
		}
	}
	return out
}
