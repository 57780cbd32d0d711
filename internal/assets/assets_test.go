package assets

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/tmdl/internal/importer"
	"github.com/Faultbox/tmdl/pkg/grf"
)

// storedGRF builds a version 0x200 archive whose entries are stored
// uncompressed.
func storedGRF(t *testing.T, files map[string]string) *grf.Archive {
	t.Helper()

	var body, table bytes.Buffer
	for name, content := range files {
		offset := uint32(body.Len())
		body.WriteString(content)
		table.WriteString(name)
		table.WriteByte(0)
		binary.Write(&table, binary.LittleEndian, uint32(len(content)))
		binary.Write(&table, binary.LittleEndian, uint32(len(content)))
		binary.Write(&table, binary.LittleEndian, uint32(len(content)))
		table.WriteByte(1)
		binary.Write(&table, binary.LittleEndian, offset)
	}

	var ztable bytes.Buffer
	zw := zlib.NewWriter(&ztable)
	zw.Write(table.Bytes())
	zw.Close()

	var h grf.Header
	copy(h.Magic[:], "Master of Magic")
	h.TableOffset = uint32(body.Len())
	h.FileCount = uint32(len(files)) + 7
	h.Version = 0x200

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, h)
	out.Write(body.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(ztable.Len()))
	binary.Write(&out, binary.LittleEndian, uint32(table.Len()))
	out.Write(ztable.Bytes())

	a, err := grf.NewArchive(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	return a
}

func TestManagerRead(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	m.Add(storedGRF(t, map[string]string{
		`data\texture\wood.bmp`: "old",
		`data\model\box.rsm`:    "box",
	}))
	m.Add(storedGRF(t, map[string]string{
		`data\texture\wood.bmp`: "new",
	}))

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	tests := []struct {
		name string
		want string
	}{
		{"data/texture/wood.bmp", "new"},
		{`DATA\Model\Box.rsm`, "box"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := m.Read(tt.name)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Read = %q, want %q", data, tt.want)
			}
		})
	}

	_, err := m.Read("data/texture/missing.bmp")
	if !errors.Is(err, importer.ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
}

func TestManagerCache(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()
	m.Add(storedGRF(t, map[string]string{"data/a.bmp": "a"}))

	for i := 0; i < 3; i++ {
		if _, err := m.Read("data/A.bmp"); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	hits, misses := m.cache.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses, want 2, 1", hits, misses)
	}
}

func TestManagerAsSource(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()
	m.Add(storedGRF(t, map[string]string{"data/a.bmp": "archive"}))

	src := importer.MultiSource{importer.MapSource{"data/b.bmp": []byte("disk")}, m}
	data, err := src.Read("data/a.bmp")
	if err != nil || string(data) != "archive" {
		t.Errorf("Read = %q, %v", data, err)
	}
}

func TestAddArchiveMissing(t *testing.T) {
	m := NewManager(nil)
	if err := m.AddArchive(filepath.Join(t.TempDir(), "none.grf")); err == nil {
		t.Error("expected error for missing archive")
	}

	bad := filepath.Join(t.TempDir(), "bad.grf")
	if err := os.WriteFile(bad, []byte("not an archive at all, far too short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.AddArchive(bad); err == nil {
		t.Error("expected error for invalid archive")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after failures", m.Len())
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	if _, ok := c.Get("a"); ok {
		t.Error("empty cache reported a hit")
	}
	c.Set("a", []byte("1"))
	if data, ok := c.Get("a"); !ok || string(data) != "1" {
		t.Errorf("Get = %q, %v", data, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = %d, %d", hits, misses)
	}

	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Error("cleared cache reported a hit")
	}
}
