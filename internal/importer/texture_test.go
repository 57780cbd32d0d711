package importer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// testImage is 2x1: opaque green, then the magenta key.
func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, B: 255, A: 255})
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	return buf.Bytes()
}

func bmpBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testImage()))
	return buf.Bytes()
}

// tgaFooter is a TGA 2.0 footer with no extension or developer area. The
// decoder seeks back from the end of the file to look for it.
var tgaFooter = append(make([]byte, 8), "TRUEVISION-XFILE.\x00"...)

// tgaBytes is an uncompressed 24-bit 1x1 TGA holding a red pixel.
func tgaBytes() []byte {
	header := []byte{
		0, 0, 2, // no id, no colour map, true colour
		0, 0, 0, 0, 0, // colour map spec
		0, 0, 0, 0, // origin
		1, 0, 1, 0, // 1x1
		24, 0x20, // bpp, top-left origin
	}
	data := append(header, 0, 0, 255)
	return append(data, tgaFooter...)
}

func TestDecodeImageFormats(t *testing.T) {
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(), nil))
	ozj := append(make([]byte, ozjHeaderSize), jpg.Bytes()...)
	ozt := append(make([]byte, oztHeaderSize), tgaBytes()...)

	tests := []struct {
		name   string
		file   string
		data   []byte
		format string
	}{
		{"png", "a.png", pngBytes(t), "png"},
		{"bmp", "a.bmp", bmpBytes(t), "bmp"},
		{"jpeg", "a.jpg", jpg.Bytes(), "jpg"},
		{"ozj", "a.ozj", ozj, "jpg"},
		{"tga", "a.tga", tgaBytes(), "tga"},
		{"ozt", "a.OZT", ozt, "tga"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := DecodeImage(tt.file, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.NotZero(t, img.Bounds().Dx())
		})
	}
}

func TestDecodeImageUnknown(t *testing.T) {
	_, _, err := DecodeImage("notes.dat", []byte("definitely not an image"))
	assert.True(t, errors.Is(err, ErrTextureFormat))

	_, _, err = DecodeImage("short.ozj", []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeTextureColorKey(t *testing.T) {
	tex, err := DecodeTexture("a.bmp", bmpBytes(t), true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), tex.Width)
	assert.Equal(t, int32(1), tex.Height)
	assert.Equal(t, int32(4), tex.Channels)
	require.Len(t, tex.Pixels, 8)
	assert.Equal(t, []byte{0, 255, 0, 255}, tex.Pixels[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, tex.Pixels[4:8])

	tex, err = DecodeTexture("a.png", pngBytes(t), false)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 255, 255}, tex.Pixels[4:8])
}

func TestDecodeTextureTGA(t *testing.T) {
	tex, err := DecodeTexture("red.tga", tgaBytes(), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, tex.Pixels)
}

func TestIsMagentaKey(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    bool
	}{
		{255, 0, 255, true},
		{252, 8, 251, true},
		{255, 11, 255, false},
		{249, 0, 255, false},
		{0, 0, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMagentaKey(tt.r, tt.g, tt.b), "rgb(%d,%d,%d)", tt.r, tt.g, tt.b)
	}
}

func TestTextureCandidates(t *testing.T) {
	got := textureCandidates(`Item\sword.jpg`, "data/model", []string{"data/texture"})

	assert.Equal(t, "data/texture/Item/sword.jpg", got[0])
	assert.Contains(t, got, "data/texture/Item/sword.ozj")
	assert.Contains(t, got, "data/model/Item/sword.jpg")
	assert.Contains(t, got, "data/model/texture/sword.ozj")
}

func TestLoadTextures(t *testing.T) {
	src := MapSource{"data/texture/wall.png": pngBytes(t)}
	opts := Options{TextureDirs: []string{"data/texture"}, ColorKey: true}

	textures, index, err := loadTextures(src, opts, "data/model", []string{"missing.bmp", "wall.png", ""})
	require.NoError(t, err)
	require.Len(t, textures, 1)
	assert.Equal(t, "wall.png", textures[0].Name)
	assert.Equal(t, []int{-1, 0, -1}, index)

	opts.RequireTextures = true
	_, _, err = loadTextures(src, opts, "data/model", []string{"missing.bmp"})
	assert.True(t, errors.Is(err, ErrNotFound))
}
