// Package scene holds the normalized in-memory scene model: an arena-backed
// node tree, skeletons, meshes, materials, textures and animations.
//
// Importers fill a Scene from their source format; the tmdl package writes it.
package scene

import "github.com/Faultbox/tmdl/pkg/math"

// Ref is an index into a Tree's node arena.
type Ref int32

// NoRef marks a missing parent or an unresolved lookup.
const NoRef Ref = -1

// Role tags what a node stands for in the source hierarchy.
type Role uint8

const (
	RoleNone Role = iota
	RoleModel
	RoleArmature
	RoleBone
	RoleMesh
)

var roleNames = [...]string{"none", "model", "armature", "bone", "mesh"}

// String returns the role name.
func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Transform is a local translation, rotation and scale.
type Transform struct {
	Position math.Vec3
	Rotation math.Vec4
	Scale    math.Vec3
}

// IdentityTransform returns zero translation, identity rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3One(),
	}
}

// Matrix returns T * R * S.
func (t Transform) Matrix() math.Mat4 {
	return math.Compose(t.Position, t.Rotation, t.Scale)
}

// Node is one element of the scene hierarchy.
type Node struct {
	Name string
	Transform

	// Meshes indexes into the owning model's mesh list.
	Meshes []int32
	IsBone bool
	Role   Role

	// ID is the importer's pre-order sequence number, -1 when unset.
	ID int32

	parent   Ref
	children []Ref
}

// Parent returns the parent ref, NoRef for a root or detached node.
func (n *Node) Parent() Ref { return n.parent }

// Children returns the ordered child refs. The slice must not be modified.
func (n *Node) Children() []Ref { return n.children }

// Tree is an arena of nodes linked by Ref.
type Tree struct {
	nodes []Node
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// NewNode adds a detached node with an identity transform.
func (t *Tree) NewNode(name string) Ref {
	t.nodes = append(t.nodes, Node{
		Name:      name,
		Transform: IdentityTransform(),
		ID:        -1,
		parent:    NoRef,
	})
	return Ref(len(t.nodes) - 1)
}

// Len returns the number of nodes ever allocated, attached or not.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for ref, or nil if ref is out of range.
func (t *Tree) Node(ref Ref) *Node {
	if !t.valid(ref) {
		return nil
	}
	return &t.nodes[ref]
}

func (t *Tree) valid(ref Ref) bool {
	return ref >= 0 && int(ref) < len(t.nodes)
}

// SetParent moves child under parent, appending it to parent's children.
// A child already under parent keeps a single entry, moved to the end.
// Passing NoRef as parent detaches the child. Reparenting a node under its
// own subtree is ignored.
func (t *Tree) SetParent(child, parent Ref) {
	if !t.valid(child) || child == parent {
		return
	}
	if parent != NoRef && (!t.valid(parent) || t.isAncestor(child, parent)) {
		return
	}

	t.Detach(child)
	if parent == NoRef {
		return
	}
	t.nodes[child].parent = parent
	t.nodes[parent].children = append(t.nodes[parent].children, child)
}

// AddChild attaches child under parent.
func (t *Tree) AddChild(parent, child Ref) {
	t.SetParent(child, parent)
}

// AddNode creates a node named name under parent.
func (t *Tree) AddNode(parent Ref, name string) Ref {
	ref := t.NewNode(name)
	t.SetParent(ref, parent)
	return ref
}

// Detach removes ref from its parent's child list. No-op for roots.
func (t *Tree) Detach(ref Ref) {
	if !t.valid(ref) {
		return
	}
	n := &t.nodes[ref]
	if n.parent == NoRef {
		return
	}
	p := &t.nodes[n.parent]
	for i, c := range p.children {
		if c == ref {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = NoRef
}

// isAncestor reports whether a is node or one of node's ancestors.
func (t *Tree) isAncestor(a, node Ref) bool {
	for cur := node; cur != NoRef; cur = t.nodes[cur].parent {
		if cur == a {
			return true
		}
	}
	return false
}

// GetChild returns the first direct child of parent named name.
func (t *Tree) GetChild(parent Ref, name string) (Ref, bool) {
	if !t.valid(parent) {
		return NoRef, false
	}
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].Name == name {
			return c, true
		}
	}
	return NoRef, false
}

// AllChildren flattens every descendant of ref in pre-order, excluding ref.
func (t *Tree) AllChildren(ref Ref) []Ref {
	if !t.valid(ref) {
		return nil
	}
	var out []Ref
	var visit func(Ref)
	visit = func(r Ref) {
		for _, c := range t.nodes[r].children {
			out = append(out, c)
			visit(c)
		}
	}
	visit(ref)
	return out
}

// RemoveChild detaches the first node named name found anywhere below ref,
// searching depth-first. It reports whether a node was removed.
func (t *Tree) RemoveChild(ref Ref, name string) bool {
	for _, c := range t.AllChildren(ref) {
		if t.nodes[c].Name == name {
			t.Detach(c)
			return true
		}
	}
	return false
}

// Find returns root or the first descendant named name, in pre-order.
func (t *Tree) Find(root Ref, name string) (Ref, bool) {
	return t.find(root, func(n *Node) bool { return n.Name == name })
}

// FindRole returns root or the first descendant tagged with role.
func (t *Tree) FindRole(root Ref, role Role) (Ref, bool) {
	return t.find(root, func(n *Node) bool { return n.Role == role })
}

func (t *Tree) find(root Ref, match func(*Node) bool) (Ref, bool) {
	if !t.valid(root) {
		return NoRef, false
	}
	if match(&t.nodes[root]) {
		return root, true
	}
	for _, c := range t.AllChildren(root) {
		if match(&t.nodes[c]) {
			return c, true
		}
	}
	return NoRef, false
}

// Walk visits root and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(root Ref, fn func(ref Ref, depth int) bool) {
	if !t.valid(root) {
		return
	}
	var visit func(Ref, int)
	visit = func(r Ref, depth int) {
		if !fn(r, depth) {
			return
		}
		for _, c := range t.nodes[r].children {
			visit(c, depth+1)
		}
	}
	visit(root, 0)
}

// WorldMatrix composes the local transforms from the tree root down to ref.
func (t *Tree) WorldMatrix(ref Ref) math.Mat4 {
	m := math.Identity()
	for cur := ref; t.valid(cur); cur = t.nodes[cur].parent {
		m = t.nodes[cur].Matrix().Mul(m)
	}
	return m
}

// AssignIDs numbers root and its descendants in pre-order starting at 0.
func (t *Tree) AssignIDs(root Ref) {
	var next int32
	t.Walk(root, func(ref Ref, _ int) bool {
		t.nodes[ref].ID = next
		next++
		return true
	})
}
