package scene

import "github.com/Faultbox/tmdl/pkg/math"

// Bone is one joint of a Skeleton. ID equals the bone's position in
// Skeleton.Bones.
type Bone struct {
	Name string
	Transform

	ID       int32
	Parent   int32
	Children []int32

	// Offset is the inverse bind matrix: model space to bone space.
	Offset math.Mat4

	// Node is the source node the bone was built from, NoRef if none.
	Node Ref
}

// Skeleton is an ordered, indexable bone hierarchy.
type Skeleton struct {
	Bones    []Bone
	RootName string

	byName map[string]int32
}

// NewSkeleton returns an empty skeleton.
func NewSkeleton() *Skeleton {
	return &Skeleton{byName: make(map[string]int32)}
}

// BuildSkeleton folds the subtree under root into a Skeleton. The root
// becomes bone 0, its descendants follow in pre-order. Every visited node is
// flagged as a bone. Offsets are computed from the bind pose.
func BuildSkeleton(tree *Tree, root Ref) *Skeleton {
	s := NewSkeleton()
	rootNode := tree.Node(root)
	if rootNode == nil {
		return s
	}
	s.RootName = rootNode.Name

	nodes := append([]Ref{root}, tree.AllChildren(root)...)
	for _, ref := range nodes {
		n := tree.Node(ref)
		n.IsBone = true
		n.Role = RoleBone
		id := s.AddBone(n.Name, n.Transform, -1)
		s.Bones[id].Node = ref
	}

	// parents are resolved by name, after every bone exists
	for i, ref := range nodes[1:] {
		parent := tree.Node(tree.Node(ref).Parent())
		if parent == nil {
			continue
		}
		if pid, ok := s.Bone(parent.Name); ok {
			s.SetParent(int32(i+1), pid)
		}
	}

	s.ComputeOffsets()
	return s
}

// SkeletonRoot picks the node a skeleton should be built from: the
// armature's only child, or the armature itself when it has several.
func SkeletonRoot(tree *Tree, armature Ref) Ref {
	n := tree.Node(armature)
	if n == nil {
		return NoRef
	}
	if len(n.children) == 1 {
		return n.children[0]
	}
	return armature
}

// AddBone appends a bone and returns its id. parent may be -1.
func (s *Skeleton) AddBone(name string, t Transform, parent int32) int32 {
	id := int32(len(s.Bones))
	s.Bones = append(s.Bones, Bone{
		Name:      name,
		Transform: t,
		ID:        id,
		Parent:    -1,
		Offset:    math.Identity(),
		Node:      NoRef,
	})
	if s.byName == nil {
		s.byName = make(map[string]int32)
	}
	if _, dup := s.byName[name]; !dup {
		s.byName[name] = id
	}
	if len(s.Bones) == 1 {
		s.RootName = name
	}
	if parent >= 0 {
		s.SetParent(id, parent)
	}
	return id
}

// Len returns the bone count.
func (s *Skeleton) Len() int { return len(s.Bones) }

// Bone looks up a bone id by exact name. Duplicate names resolve to the
// first bone.
func (s *Skeleton) Bone(name string) (int32, bool) {
	if s == nil {
		return -1, false
	}
	id, ok := s.byName[name]
	if !ok {
		return -1, false
	}
	return id, true
}

// SetParent makes parent the parent of bone id, detaching it from any
// previous parent.
func (s *Skeleton) SetParent(id, parent int32) {
	if !s.valid(id) || !s.valid(parent) || id == parent {
		return
	}
	b := &s.Bones[id]
	if b.Parent >= 0 {
		old := &s.Bones[b.Parent]
		for i, c := range old.Children {
			if c == id {
				old.Children = append(old.Children[:i], old.Children[i+1:]...)
				break
			}
		}
	}
	b.Parent = parent
	s.Bones[parent].Children = append(s.Bones[parent].Children, id)
}

func (s *Skeleton) valid(id int32) bool {
	return id >= 0 && int(id) < len(s.Bones)
}

// WorldMatrix composes the bind pose from the root down to bone id.
func (s *Skeleton) WorldMatrix(id int32) math.Mat4 {
	m := math.Identity()
	for guard := 0; s.valid(id) && guard <= len(s.Bones); guard++ {
		m = s.Bones[id].Matrix().Mul(m)
		id = s.Bones[id].Parent
	}
	return m
}

// ComputeOffsets sets every bone's offset to the inverse of its bind-pose
// world matrix.
func (s *Skeleton) ComputeOffsets() {
	for i := range s.Bones {
		s.Bones[i].Offset = s.WorldMatrix(int32(i)).Inverse()
	}
}

// SetOffset replaces the offset matrix of the named bone.
func (s *Skeleton) SetOffset(name string, m math.Mat4) bool {
	id, ok := s.Bone(name)
	if !ok {
		return false
	}
	s.Bones[id].Offset = m
	return true
}

// ToNodes rebuilds the bone hierarchy as flagged nodes under parent and
// returns the ref of the first root bone.
func (s *Skeleton) ToNodes(tree *Tree, parent Ref) Ref {
	first := NoRef
	var build func(id int32, under Ref)
	build = func(id int32, under Ref) {
		b := &s.Bones[id]
		ref := tree.AddNode(under, b.Name)
		n := tree.Node(ref)
		n.Transform = b.Transform
		n.IsBone = true
		n.Role = RoleBone
		n.ID = b.ID
		if first == NoRef {
			first = ref
		}
		for _, c := range b.Children {
			build(c, ref)
		}
	}
	for i := range s.Bones {
		if s.Bones[i].Parent < 0 {
			build(int32(i), parent)
		}
	}
	return first
}
