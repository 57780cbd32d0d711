package importer

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/Faultbox/tmdl/pkg/scene"
)

// ErrTextureFormat is returned for image data no decoder accepts.
var ErrTextureFormat = errors.New("unknown texture format")

// MU Online wraps JPEG and TGA textures in small headers.
const (
	ozjHeaderSize = 24
	oztHeaderSize = 4
)

// DecodeImage decodes texture bytes. The format is sniffed from the data;
// TGA has no signature and is chosen by extension. The returned string is
// the detected format.
func DecodeImage(name string, data []byte) (image.Image, string, error) {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".ozj":
		if len(data) <= ozjHeaderSize {
			return nil, "", errors.Errorf("texture %s: OZJ too short", name)
		}
		data = data[ozjHeaderSize:]
	case ".ozt":
		if len(data) <= oztHeaderSize {
			return nil, "", errors.Errorf("texture %s: OZT too short", name)
		}
		data = data[oztHeaderSize:]
		ext = ".tga"
	}

	format := "tga"
	if ext != ".tga" {
		format = ""
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			format = kind.Extension
		}
	}

	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch format {
	case "png":
		img, err = png.Decode(r)
	case "jpg":
		img, err = jpeg.Decode(r)
	case "bmp":
		img, err = bmp.Decode(r)
	case "gif":
		img, err = gif.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	case "tga":
		img, err = tga.Decode(r)
	default:
		return nil, "", errors.Wrapf(ErrTextureFormat, "texture %s", name)
	}
	if err != nil {
		return nil, format, errors.Wrapf(err, "decoding %s texture %s", format, name)
	}
	return img, format, nil
}

// DecodeTexture decodes texture bytes into a four-channel scene texture.
func DecodeTexture(name string, data []byte, colorKey bool) (*scene.Texture, error) {
	img, _, err := DecodeImage(name, data)
	if err != nil {
		return nil, err
	}
	rgba := ImageToRGBA(img, colorKey)
	b := rgba.Bounds()
	return &scene.Texture{
		Name:     name,
		Width:    int32(b.Dx()),
		Height:   int32(b.Dy()),
		Channels: 4,
		Pixels:   rgba.Pix,
	}, nil
}

// IsMagentaKey checks if an RGB color matches the RO magenta transparency key.
// Uses tolerance (R >= 250, G <= 10, B >= 250) to handle BMP decoding variations.
func IsMagentaKey(r, g, b uint8) bool {
	return r >= 250 && g <= 10 && b >= 250
}

// ImageToRGBA converts any image to a tightly packed *image.RGBA whose
// origin is (0, 0). With colorKey, magenta texels become transparent black.
func ImageToRGBA(img image.Image, colorKey bool) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if colorKey && IsMagentaKey(c.R, c.G, c.B) {
				c = color.NRGBA{}
			}
			rgba.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}

	return rgba
}

// textureCandidates lists the names a texture reference may be stored
// under: the configured directories first, then the model's directory.
// MU references .jpg/.tga while shipping .ozj/.ozt.
func textureCandidates(ref, modelDir string, dirs []string) []string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	names := []string{ref}
	switch strings.ToLower(path.Ext(ref)) {
	case ".jpg", ".jpeg":
		names = append(names, strings.TrimSuffix(ref, path.Ext(ref))+".ozj")
	case ".tga":
		names = append(names, strings.TrimSuffix(ref, path.Ext(ref))+".ozt")
	}

	var out []string
	for _, dir := range append(append([]string(nil), dirs...), modelDir) {
		for _, n := range names {
			out = append(out, path.Join(dir, n))
		}
		if dir == modelDir {
			for _, n := range names {
				out = append(out, path.Join(dir, "texture", path.Base(n)))
			}
		}
	}
	return out
}

// loadTexture reads and decodes a referenced texture through src. The
// returned texture is named after the reference, not the file found.
func loadTexture(src Source, opts Options, modelDir, ref string) (*scene.Texture, error) {
	var lastErr error = errors.Wrap(ErrNotFound, ref)
	for _, name := range textureCandidates(ref, modelDir, opts.TextureDirs) {
		data, err := src.Read(name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				lastErr = err
			}
			continue
		}
		tex, err := DecodeTexture(name, data, opts.ColorKey)
		if err != nil {
			lastErr = err
			continue
		}
		tex.Name = strings.ReplaceAll(ref, "\\", "/")
		return tex, nil
	}
	return nil, lastErr
}

// loadTextures loads each reference in order. Failures are skipped with a
// warning unless textures are required; the returned index maps reference
// position to texture position, -1 for skipped ones.
func loadTextures(src Source, opts Options, modelDir string, refs []string) ([]*scene.Texture, []int, error) {
	log := opts.logger()
	textures := make([]*scene.Texture, 0, len(refs))
	index := make([]int, len(refs))
	for i, ref := range refs {
		index[i] = -1
		if ref == "" {
			continue
		}
		tex, err := loadTexture(src, opts, modelDir, ref)
		if err != nil {
			if opts.RequireTextures {
				return nil, nil, errors.Wrapf(err, "loading texture %s", ref)
			}
			log.Warn("skipping texture", zap.String("texture", ref), zap.Error(err))
			continue
		}
		index[i] = len(textures)
		textures = append(textures, tex)
	}
	return textures, index, nil
}
