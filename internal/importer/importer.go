// Package importer turns source model files into scenes ready for the
// conversion pipeline. Importers build the node tree, meshes, materials and
// animations; skeleton folding, skin resolution and binding are left to the
// pipeline so every format goes through the same steps.
package importer

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/pkg/math"
	"github.com/Faultbox/tmdl/pkg/scene"
	"github.com/Faultbox/tmdl/pkg/skin"
)

// ErrUnsupported is returned for files no importer handles.
var ErrUnsupported = errors.New("unsupported model format")

// ArmatureName is the name given to the node every skeleton hangs from.
const ArmatureName = "Armature"

// Importer reads one model file from a source.
type Importer interface {
	Import(src Source, name string) (*Result, error)
}

// Result is an imported scene plus the raw data the pipeline still has to
// resolve. Scene.Models and Models are parallel.
type Result struct {
	Scene      *scene.Scene
	Models     []ModelData
	Animations []*scene.Animation
}

// ModelData is the unresolved part of one model.
type ModelData struct {
	Model *scene.Model

	// Armature is the node whose subtree becomes the skeleton, NoRef when
	// the model has none.
	Armature scene.Ref

	// Skins is parallel to Model.Meshes.
	Skins []Skin

	// Offsets holds inverse bind matrices the source provides, by bone name.
	Offsets map[string]math.Mat4
}

// Skin is the raw skinning data of one mesh. Raw indices refer to Joints
// by position; the pipeline maps joint names to skeleton bone ids.
type Skin struct {
	Shape  skin.Shape
	Joints []string

	// RigidJoint binds the whole mesh to one bone when set.
	RigidJoint string

	// Declared is the vertex count the source claims for the skin buffers.
	Declared int
}

// Options control texture lookup and diagnostics.
type Options struct {
	// TextureDirs are searched, in order, for texture files before the
	// model's own directory.
	TextureDirs []string

	// ColorKey makes magenta texels transparent.
	ColorKey bool

	// RequireTextures fails the import when a texture cannot be loaded
	// instead of skipping it.
	RequireTextures bool

	Log *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

// Registry maps file extensions to importers.
type Registry struct {
	byExt map[string]Importer
}

// NewRegistry returns a registry with every built-in importer.
func NewRegistry(opts Options) *Registry {
	r := &Registry{byExt: make(map[string]Importer)}
	r.Register(".rsm", &RSMImporter{Options: opts})
	r.Register(".bmd", &BMDImporter{Options: opts})
	gltf := &GLTFImporter{Options: opts}
	r.Register(".gltf", gltf)
	r.Register(".glb", gltf)
	return r
}

// Register adds or replaces the importer for ext.
func (r *Registry) Register(ext string, imp Importer) {
	r.byExt[strings.ToLower(ext)] = imp
}

// For returns the importer for a file name.
func (r *Registry) For(name string) (Importer, bool) {
	imp, ok := r.byExt[strings.ToLower(path.Ext(name))]
	return imp, ok
}

// Supported reports whether some importer handles name.
func (r *Registry) Supported(name string) bool {
	_, ok := r.For(name)
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Import reads name with the importer registered for its extension.
func (r *Registry) Import(src Source, name string) (*Result, error) {
	imp, ok := r.For(name)
	if !ok {
		return nil, errors.Wrap(ErrUnsupported, name)
	}
	return imp.Import(src, name)
}

// baseName strips directories and the extension from a source path.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}

// newModelScene creates the root, model and armature nodes shared by every
// importer: root > model > armature.
func newModelScene(name string) (*scene.Scene, *scene.Model, scene.Ref, scene.Ref) {
	s := scene.New(name)
	model := scene.NewModel(name)
	s.Models = append(s.Models, model)

	modelRef := s.Tree.AddNode(s.Root, name)
	s.Tree.Node(modelRef).Role = scene.RoleModel

	armature := s.Tree.AddNode(modelRef, ArmatureName)
	s.Tree.Node(armature).Role = scene.RoleArmature
	return s, model, modelRef, armature
}

// addMeshNode hangs a mesh-holding node under parent.
func addMeshNode(t *scene.Tree, parent scene.Ref, name string, meshes ...int32) scene.Ref {
	ref := t.AddNode(parent, name)
	n := t.Node(ref)
	n.Role = scene.RoleMesh
	n.Meshes = append(n.Meshes, meshes...)
	return ref
}

// faceNormal returns the unit normal of a triangle, false when degenerate.
func faceNormal(a, b, c math.Vec3) (math.Vec3, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Length() < 1e-5 {
		return math.Vec3{}, false
	}
	return n.Normalize(), true
}
