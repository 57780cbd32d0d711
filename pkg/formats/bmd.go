package formats

import (
	"errors"
	"fmt"
	"strings"
)

// BMD format errors.
var (
	ErrInvalidBMDMagic  = errors.New("invalid BMD magic: expected 'BMD'")
	ErrEncryptedBMD     = errors.New("encrypted BMD versions are not supported")
	ErrTruncatedBMDData = errors.New("truncated BMD data")
)

const (
	bmdNameSize     = 32
	bmdTriangleSize = 64
	bmdMaxMeshes    = 100
)

// BMDVertex is a vertex position bound to one bone.
type BMDVertex struct {
	Node     int16
	Position [3]float32
}

// BMDNormal is a normal bound to one bone.
type BMDNormal struct {
	Node       int16
	Normal     [3]float32
	BindVertex int16
}

// BMDTriangle indexes a mesh's vertices, normals and texcoords. Polygon 4
// marks a quad (0-1-2, 0-2-3).
type BMDTriangle struct {
	Polygon     uint8
	VertexIDs   [4]int16
	NormalIDs   [4]int16
	TexCoordIDs [4]int16
}

// Corners returns the triangle corner slots, two triangles for quads.
func (t BMDTriangle) Corners() [][3]int {
	if t.Polygon == 4 {
		return [][3]int{{0, 1, 2}, {0, 2, 3}}
	}
	return [][3]int{{0, 1, 2}}
}

// BMDMesh is one sub-mesh with its texture reference.
type BMDMesh struct {
	Vertices     []BMDVertex
	Normals      []BMDNormal
	TexCoords    [][2]float32
	Triangles    []BMDTriangle
	TextureIndex int16
	Texture      string
}

// BMDAction is an animation's key count and optional root motion.
type BMDAction struct {
	KeyCount  int
	Positions [][3]float32 // root motion, only when position lock is set
}

// BMDBoneKeys holds one bone's keys for one action. Rotations are XYZ Euler
// angles in radians.
type BMDBoneKeys struct {
	Positions [][3]float32
	Rotations [][3]float32
}

// BMDBone is a skeleton joint. Dummy bones carry no data but keep their
// index so vertex bone references stay valid.
type BMDBone struct {
	Dummy   bool
	Name    string
	Parent  int16
	Actions []BMDBoneKeys
}

// BMD is a parsed MU Online model.
type BMD struct {
	Version uint8
	Name    string
	Meshes  []BMDMesh
	Actions []BMDAction
	Bones   []BMDBone
}

// ParseBMD parses an unencrypted BMD model (version 10).
func ParseBMD(data []byte) (*BMD, error) {
	if len(data) < 4 {
		return nil, ErrTruncatedBMDData
	}
	if string(data[:3]) != "BMD" {
		return nil, ErrInvalidBMDMagic
	}
	version := data[3]
	if version == 12 || version == 15 {
		return nil, fmt.Errorf("%w: version %d", ErrEncryptedBMD, version)
	}

	r := newBinReader(data[4:], ErrTruncatedBMDData)
	bmd := &BMD{Version: version, Name: r.fixedString(bmdNameSize)}
	meshCount := int(r.u16())
	boneCount := int(r.u16())
	actionCount := int(r.u16())
	if r.err != nil {
		return nil, r.err
	}
	if meshCount > bmdMaxMeshes {
		return nil, fmt.Errorf("invalid BMD mesh count %d", meshCount)
	}

	bmd.Meshes = make([]BMDMesh, meshCount)
	for i := range bmd.Meshes {
		parseBMDMesh(r, &bmd.Meshes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing mesh %d: %w", i, r.err)
		}
	}

	bmd.Actions = make([]BMDAction, actionCount)
	for i := range bmd.Actions {
		a := &bmd.Actions[i]
		a.KeyCount = int(r.i16())
		if r.u8() != 0 {
			a.Positions = make([][3]float32, a.KeyCount)
			for k := range a.Positions {
				a.Positions[k] = r.vec3()
			}
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("parsing actions: %w", r.err)
	}

	bmd.Bones = make([]BMDBone, boneCount)
	for i := range bmd.Bones {
		parseBMDBone(r, bmd.Actions, &bmd.Bones[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing bone %d: %w", i, r.err)
		}
	}

	return bmd, nil
}

func parseBMDMesh(r *binReader, m *BMDMesh) {
	nv := int(r.i16())
	nn := int(r.i16())
	ntc := int(r.i16())
	nt := int(r.i16())
	m.TextureIndex = r.i16()
	if nv < 0 || nn < 0 || ntc < 0 || nt < 0 {
		r.err = fmt.Errorf("negative element count (%d, %d, %d, %d)", nv, nn, ntc, nt)
		return
	}

	m.Vertices = make([]BMDVertex, nv)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Node = r.i16()
		r.skip(2)
		v.Position = r.vec3()
	}

	m.Normals = make([]BMDNormal, nn)
	for i := range m.Normals {
		n := &m.Normals[i]
		n.Node = r.i16()
		r.skip(2)
		n.Normal = r.vec3()
		n.BindVertex = r.i16()
		r.skip(2)
	}

	m.TexCoords = make([][2]float32, ntc)
	for i := range m.TexCoords {
		m.TexCoords[i] = [2]float32{r.f32(), r.f32()}
	}

	m.Triangles = make([]BMDTriangle, nt)
	for i := range m.Triangles {
		start := r.off
		t := &m.Triangles[i]
		t.Polygon = r.u8()
		r.skip(1)
		for k := 0; k < 4; k++ {
			t.VertexIDs[k] = r.i16()
		}
		for k := 0; k < 4; k++ {
			t.NormalIDs[k] = r.i16()
		}
		for k := 0; k < 4; k++ {
			t.TexCoordIDs[k] = r.i16()
		}
		// lightmap coordinates and padding
		r.skip(bmdTriangleSize - (r.off - start))
	}

	m.Texture = strings.ReplaceAll(r.fixedString(bmdNameSize), "\\", "/")
}

func parseBMDBone(r *binReader, actions []BMDAction, b *BMDBone) {
	b.Parent = -1
	if r.u8() != 0 {
		b.Dummy = true
		return
	}
	b.Name = r.fixedString(bmdNameSize)
	b.Parent = r.i16()

	b.Actions = make([]BMDBoneKeys, len(actions))
	for i, a := range actions {
		keys := &b.Actions[i]
		keys.Positions = make([][3]float32, a.KeyCount)
		for k := range keys.Positions {
			keys.Positions[k] = r.vec3()
		}
		keys.Rotations = make([][3]float32, a.KeyCount)
		for k := range keys.Rotations {
			keys.Rotations[k] = r.vec3()
		}
	}
}

// VertexCount returns the number of vertex records across all meshes.
func (b *BMD) VertexCount() int {
	total := 0
	for _, m := range b.Meshes {
		total += len(m.Vertices)
	}
	return total
}

// BindPose returns a bone's first position and rotation key of the first
// action, the pose the model is authored in.
func (b *BMD) BindPose(bone int) (pos, rot [3]float32) {
	if bone < 0 || bone >= len(b.Bones) {
		return
	}
	for _, keys := range b.Bones[bone].Actions {
		if len(keys.Positions) > 0 {
			return keys.Positions[0], keys.Rotations[0]
		}
	}
	return
}
