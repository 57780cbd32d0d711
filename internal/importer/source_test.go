package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSourceCaseFold(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Data", "Texture")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Wall.BMP"), []byte("pixels"), 0o644))

	src := DirSource{Root: root}

	data, err := src.Read("Data/Texture/Wall.BMP")
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	data, err = src.Read(`data\texture\wall.bmp`)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	_, err = src.Read("data/texture/missing.bmp")
	assert.True(t, errors.Is(err, ErrNotFound))
}

type failingSource struct{ err error }

func (f failingSource) Read(string) ([]byte, error) { return nil, f.err }

func TestMultiSource(t *testing.T) {
	first := MapSource{"a.txt": []byte("first")}
	second := MapSource{"a.txt": []byte("second"), "b.txt": []byte("only second")}

	src := MultiSource{first, second}

	data, err := src.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	data, err = src.Read("b.txt")
	require.NoError(t, err)
	assert.Equal(t, "only second", string(data))

	_, err = src.Read("c.txt")
	assert.True(t, errors.Is(err, ErrNotFound))

	broken := errors.New("disk on fire")
	_, err = MultiSource{first, failingSource{broken}, second}.Read("b.txt")
	assert.True(t, errors.Is(err, broken))
}

func TestMapSourceAndSubSource(t *testing.T) {
	src := MapSource{"Model/Tree.RSM": []byte("tree")}

	data, err := src.Read(`model\tree.rsm`)
	require.NoError(t, err)
	assert.Equal(t, "tree", string(data))

	sub := SubSource{Source: src, Dir: "model"}
	data, err = sub.Read("tree.rsm")
	require.NoError(t, err)
	assert.Equal(t, "tree", string(data))
}

func TestSourceFS(t *testing.T) {
	fsys := sourceFS{src: MapSource{"buffers/mesh.bin": []byte{1, 2, 3, 4}}}

	data, err := fs.ReadFile(fsys, "buffers/mesh.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = fs.ReadFile(fsys, "buffers/other.bin")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = fsys.Open("../escape.bin")
	assert.Error(t, err)
}
