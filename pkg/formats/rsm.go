// Package formats parses the binary model formats the importers read:
// Ragnarok Online RSM models and MU Online BMD models.
package formats

import (
	"errors"
	"fmt"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
)

const (
	rsmNameSize  = 40
	rsmMaxNodes  = 10000
	rsmMaxArray  = 100000
	rsmMaxFrames = 10000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType is the shading mode stored in the header.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex color (v1.2+).
type RSMTexCoord struct {
	Color [4]uint8
	U, V  float32
}

// RSMFace is a triangle referencing a node's vertices and texcoords.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16
	TwoSide     int32
	SmoothGroup int32
}

// RSMPosKeyframe is a position keyframe (before v1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a quaternion rotation keyframe (X, Y, Z, W).
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKeyframe is a scale keyframe (v1.5+).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy with its mesh and keyframes.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32

	Matrix   [9]float32 // vertex-only 3x3 transform
	Offset   [3]float32 // vertex-only pivot offset
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// RSMVolumeBox is a collision volume.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM is a parsed Ragnarok Online model.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // milliseconds
	Shading     RSMShadingType
	Alpha       float32
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// ParseRSM parses an RSM 1.x model. Names are decoded from EUC-KR.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	r := newBinReader(data, ErrTruncatedRSMData)
	r.skip(4)
	rsm := &RSM{Version: RSMVersion{Major: r.u8(), Minor: r.u8()}}

	// 2.x files use a different node layout
	if rsm.Version.Major != 1 || rsm.Version.Minor < 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rsm.AnimLength = r.i32()
	rsm.Shading = RSMShadingType(r.i32())
	rsm.Alpha = 1.0
	if rsm.Version.AtLeast(1, 4) {
		rsm.Alpha = float32(r.u8()) / 255.0
	}
	r.skip(16) // reserved

	textures := r.count("texture", rsmMaxArray)
	rsm.Textures = make([]string, 0, textures)
	for i := 0; i < textures && r.err == nil; i++ {
		rsm.Textures = append(rsm.Textures, r.fixedString(rsmNameSize))
	}
	rsm.RootNode = r.fixedString(rsmNameSize)

	nodeCount := r.i32()
	if r.err != nil {
		return nil, r.err
	}
	if nodeCount < 0 || nodeCount > rsmMaxNodes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeCount, nodeCount)
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}

	// volume boxes are optional trailing data
	if r.remaining() >= 4 {
		boxes := r.count("volume box", rsmMaxNodes)
		for i := 0; i < boxes && r.err == nil; i++ {
			box := RSMVolumeBox{Size: r.vec3(), Position: r.vec3(), Rotation: r.vec3()}
			if rsm.Version.AtLeast(1, 3) {
				box.Flag = r.i32()
			}
			rsm.VolumeBoxes = append(rsm.VolumeBoxes, box)
		}
		if r.err != nil {
			return nil, r.err
		}
	}

	return rsm, nil
}

func parseRSMNode(r *binReader, version RSMVersion, node *RSMNode) {
	node.Name = r.fixedString(rsmNameSize)
	node.Parent = r.fixedString(rsmNameSize)

	n := r.count("node texture", rsmMaxArray)
	node.TextureIDs = make([]int32, n)
	for i := range node.TextureIDs {
		node.TextureIDs[i] = r.i32()
	}

	for i := range node.Matrix {
		node.Matrix[i] = r.f32()
	}
	node.Offset = r.vec3()
	node.Position = r.vec3()
	node.RotAngle = r.f32()
	node.RotAxis = r.vec3()
	node.Scale = r.vec3()

	n = r.count("vertex", rsmMaxArray)
	node.Vertices = make([][3]float32, n)
	for i := range node.Vertices {
		node.Vertices[i] = r.vec3()
	}

	n = r.count("texcoord", rsmMaxArray)
	node.TexCoords = make([]RSMTexCoord, n)
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		tc.Color = [4]uint8{255, 255, 255, 255}
		if version.AtLeast(1, 2) {
			tc.Color = [4]uint8{r.u8(), r.u8(), r.u8(), r.u8()}
		}
		tc.U = r.f32()
		tc.V = r.f32()
	}

	n = r.count("face", rsmMaxArray)
	node.Faces = make([]RSMFace, n)
	for i := range node.Faces {
		f := &node.Faces[i]
		f.VertexIDs = [3]uint16{r.u16(), r.u16(), r.u16()}
		f.TexCoordIDs = [3]uint16{r.u16(), r.u16(), r.u16()}
		f.TextureID = r.u16()
		r.skip(2) // padding
		f.TwoSide = r.i32()
		if version.AtLeast(1, 2) {
			f.SmoothGroup = r.i32()
		}
	}

	if !version.AtLeast(1, 5) {
		n = r.count("position key", rsmMaxFrames)
		node.PosKeys = make([]RSMPosKeyframe, n)
		for i := range node.PosKeys {
			node.PosKeys[i] = RSMPosKeyframe{Frame: r.i32(), Position: r.vec3()}
		}
	}

	n = r.count("rotation key", rsmMaxFrames)
	node.RotKeys = make([]RSMRotKeyframe, n)
	for i := range node.RotKeys {
		node.RotKeys[i] = RSMRotKeyframe{Frame: r.i32(), Quaternion: r.vec4()}
	}

	if version.AtLeast(1, 5) {
		n = r.count("scale key", rsmMaxFrames)
		node.ScaleKeys = make([]RSMScaleKeyframe, n)
		for i := range node.ScaleKeys {
			node.ScaleKeys[i] = RSMScaleKeyframe{Frame: r.i32(), Scale: r.vec3()}
		}
	}
}

// GetTotalVertexCount returns the number of vertices across all nodes.
func (rsm *RSM) GetTotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// GetTotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) GetTotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// GetNodeByName returns the first node with the given name, or nil.
func (rsm *RSM) GetNodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// GetRootNode returns the node named by the header's root node field.
// Files with an empty root name fall back to the first parentless node.
func (rsm *RSM) GetRootNode() *RSMNode {
	if rsm.RootNode != "" {
		return rsm.GetNodeByName(rsm.RootNode)
	}
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == "" {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// HasAnimation returns true if any node carries keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if len(node.PosKeys) > 0 || len(node.RotKeys) > 0 || len(node.ScaleKeys) > 0 {
			return true
		}
	}
	return false
}
