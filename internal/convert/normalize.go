package convert

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/internal/importer"
	"github.com/Faultbox/tmdl/pkg/scene"
	"github.com/Faultbox/tmdl/pkg/skin"
)

// NormalizeOptions control how an imported scene is finished.
type NormalizeOptions struct {
	// BoneNodes rebuilds each skeleton as bone nodes under its armature
	// after the source nodes are pruned.
	BoneNodes bool

	// DebugVertex logs every resolved vertex.
	DebugVertex bool
}

// Normalize turns an import result into a scene ready to be written: it
// folds every armature into a skeleton, resolves skins, binds animations,
// prunes the bone nodes and validates the models.
func Normalize(res *importer.Result, opts NormalizeOptions, log *zap.Logger) (*scene.Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := res.Scene
	if len(res.Models) != len(s.Models) {
		return nil, errors.Errorf("scene has %d models, import data for %d", len(s.Models), len(res.Models))
	}

	for _, md := range res.Models {
		sk := scene.NewSkeleton()
		if md.Armature != scene.NoRef {
			sk = scene.BuildSkeleton(s.Tree, scene.SkeletonRoot(s.Tree, md.Armature))
		}
		for name, m := range md.Offsets {
			if !sk.SetOffset(name, m) {
				log.Debug("offset for unknown bone", zap.String("bone", name))
			}
		}
		md.Model.Skeleton = sk

		if err := resolveSkins(md, sk); err != nil {
			return nil, errors.Wrapf(err, "model %s", md.Model.Name)
		}
		if opts.DebugVertex {
			dumpVertices(md.Model, log)
		}
	}

	s.AttachAnimations(res.Animations)
	for _, a := range res.Animations {
		if unbound := a.Unbound(); len(unbound) > 0 {
			log.Warn("animation channels without a bone",
				zap.String("animation", a.Name),
				zap.Strings("channels", unbound))
		}
	}

	for _, md := range res.Models {
		pruneArmature(s, md, opts.BoneNodes)
	}
	s.Tree.AssignIDs(s.Root)

	for _, m := range s.Models {
		if err := m.Validate(); err != nil {
			return nil, errors.Wrapf(err, "model %s", m.Name)
		}
	}
	return s, nil
}

// resolveSkins maps each mesh's joint names to bone ids and fills its
// per-vertex bone ids and weights. A declared vertex count that differs
// from the mesh is fatal.
func resolveSkins(md importer.ModelData, sk *scene.Skeleton) error {
	for i, mesh := range md.Model.Meshes {
		if i >= len(md.Skins) {
			break
		}
		raw := md.Skins[i]
		shape := raw.Shape

		switch {
		case raw.RigidJoint != "":
			shape.Rigid = true
			shape.RigidBone = 0
			if id, ok := sk.Bone(raw.RigidJoint); ok {
				shape.RigidBone = id
			}
		case raw.Joints != nil:
			shape.MatrixToBone = make([]int32, len(raw.Joints))
			for j, name := range raw.Joints {
				shape.MatrixToBone[j] = -1
				if name == "" {
					continue
				}
				if id, ok := sk.Bone(name); ok {
					shape.MatrixToBone[j] = id
				}
			}
		}

		if err := skin.CheckVertexCount(raw.Declared, mesh.VertexCount()); err != nil {
			return errors.Wrapf(err, "mesh %s", mesh.Name)
		}
		mesh.BoneIDs, mesh.Weights = skin.Resolve(shape, mesh.VertexCount())
	}
	return nil
}

// pruneArmature removes the nodes that became bones. With boneNodes the
// skeleton is rebuilt as flagged nodes where the bones used to hang; an
// armature left empty is dropped otherwise.
func pruneArmature(s *scene.Scene, md importer.ModelData, boneNodes bool) {
	sk := md.Model.Skeleton
	if md.Armature == scene.NoRef || sk.Len() == 0 {
		return
	}
	anchor := md.Armature
	if n := s.Tree.Node(anchor); n != nil && n.IsBone {
		anchor = n.Parent()
	}

	s.PruneSkeleton(sk)

	if boneNodes {
		if anchor != scene.NoRef {
			sk.ToNodes(s.Tree, anchor)
		}
		return
	}
	if n := s.Tree.Node(md.Armature); n != nil && len(n.Children()) == 0 && n.Parent() != scene.NoRef {
		s.Tree.Detach(md.Armature)
	}
}

func dumpVertices(m *scene.Model, log *zap.Logger) {
	for _, mesh := range m.Meshes {
		for v, pos := range mesh.Vertices {
			p := pos.Array()
			fields := []zap.Field{
				zap.String("mesh", mesh.Name),
				zap.Int("vertex", v),
				zap.Float32s("pos", p[:]),
			}
			if v < len(mesh.BoneIDs) {
				fields = append(fields,
					zap.Int32s("bones", mesh.BoneIDs[v][:]),
					zap.Float32s("weights", mesh.Weights[v][:]))
			}
			log.Info("vertex", fields...)
		}
	}
}
