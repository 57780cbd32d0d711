package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type bmdBuilder struct{ bytes.Buffer }

func (b *bmdBuilder) put(v any)        { binary.Write(&b.Buffer, binary.LittleEndian, v) }
func (b *bmdBuilder) name(s string)    { b.Write(append([]byte(s), make([]byte, 32-len(s))...)) }
func (b *bmdBuilder) f32(v ...float32) { b.put(v) }

// makeBMD builds a model with one quad mesh on two bones (the second bone
// is preceded by a dummy) and one two-key action.
func makeBMD() []byte {
	var b bmdBuilder
	b.WriteString("BMD")
	b.WriteByte(10)
	b.name("box")
	b.put([]uint16{1, 3, 1}) // meshes, bones, actions

	// mesh header: vertices, normals, texcoords, triangles, texture index
	b.put([]int16{4, 1, 4, 1, 0})
	for i, node := range []int16{0, 0, 2, 2} {
		b.put([]int16{node, 0})
		b.f32(float32(i), 0, 0)
	}
	b.put([]int16{0, 0})
	b.f32(0, 0, 1)
	b.put([]int16{0, 0})
	for i := 0; i < 4; i++ {
		b.f32(float32(i)/4, 0.5)
	}
	tri := make([]byte, 64)
	tri[0] = 4
	binary.LittleEndian.PutUint16(tri[2:], 0)
	binary.LittleEndian.PutUint16(tri[4:], 1)
	binary.LittleEndian.PutUint16(tri[6:], 2)
	binary.LittleEndian.PutUint16(tri[8:], 3)
	for k := 0; k < 4; k++ {
		binary.LittleEndian.PutUint16(tri[18+k*2:], uint16(k))
	}
	b.Write(tri)
	b.name("data\\box.jpg")

	// action: two keys, no position lock
	b.put(int16(2))
	b.WriteByte(0)

	// bone 0
	b.WriteByte(0)
	b.name("root")
	b.put(int16(-1))
	b.f32(0, 0, 0, 0, 0, 1)       // positions
	b.f32(0, 0, 0, 0, 0, 1.5)     // rotations
	// bone 1 (dummy)
	b.WriteByte(1)
	// bone 2
	b.WriteByte(0)
	b.name("lid")
	b.put(int16(0))
	b.f32(1, 0, 0, 1, 0, 0)
	b.f32(0.5, 0, 0, 0.5, 0, 0)
	return b.Bytes()
}

func TestParseBMD(t *testing.T) {
	bmd, err := ParseBMD(makeBMD())
	if err != nil {
		t.Fatalf("ParseBMD failed: %v", err)
	}

	if bmd.Name != "box" || bmd.Version != 10 {
		t.Errorf("name/version = %q/%d", bmd.Name, bmd.Version)
	}
	if len(bmd.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(bmd.Meshes))
	}

	m := bmd.Meshes[0]
	if len(m.Vertices) != 4 || m.Vertices[3].Node != 2 || m.Vertices[3].Position[0] != 3 {
		t.Errorf("vertices = %v", m.Vertices)
	}
	if len(m.Normals) != 1 || m.Normals[0].Normal != [3]float32{0, 0, 1} {
		t.Errorf("normals = %v", m.Normals)
	}
	if m.Texture != "data/box.jpg" {
		t.Errorf("texture = %q", m.Texture)
	}
	tri := m.Triangles[0]
	if tri.Polygon != 4 || tri.VertexIDs != [4]int16{0, 1, 2, 3} || tri.TexCoordIDs[3] != 3 {
		t.Errorf("triangle = %+v", tri)
	}
	if got := len(tri.Corners()); got != 2 {
		t.Errorf("quad corners = %d, want 2", got)
	}

	if len(bmd.Actions) != 1 || bmd.Actions[0].KeyCount != 2 {
		t.Errorf("actions = %+v", bmd.Actions)
	}

	if len(bmd.Bones) != 3 {
		t.Fatalf("bone count = %d, want 3", len(bmd.Bones))
	}
	if !bmd.Bones[1].Dummy {
		t.Error("bone 1 should be a dummy")
	}
	lid := bmd.Bones[2]
	if lid.Name != "lid" || lid.Parent != 0 {
		t.Errorf("lid = %+v", lid)
	}
	if lid.Actions[0].Rotations[1] != [3]float32{0.5, 0, 0} {
		t.Errorf("lid rotation key 1 = %v", lid.Actions[0].Rotations[1])
	}

	pos, rot := bmd.BindPose(0)
	if pos != [3]float32{} || rot != [3]float32{} {
		t.Errorf("root bind pose = %v %v", pos, rot)
	}
	if bmd.VertexCount() != 4 {
		t.Errorf("VertexCount() = %d, want 4", bmd.VertexCount())
	}
}

func TestParseBMD_Errors(t *testing.T) {
	valid := makeBMD()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncatedBMDData},
		{"bad magic", []byte("XYZ\x0a...."), ErrInvalidBMDMagic},
		{"xor encrypted", []byte("BMD\x0c\x00\x00\x00\x00"), ErrEncryptedBMD},
		{"lea encrypted", []byte("BMD\x0f\x00\x00\x00\x00"), ErrEncryptedBMD},
		{"truncated", valid[:len(valid)-10], ErrTruncatedBMDData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBMD(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
