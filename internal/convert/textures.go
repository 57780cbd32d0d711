package convert

import (
	"image"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/pkg/scene"
)

// ExportTextures writes every decoded texture of s as a lossless WebP file
// in outDir and returns the written paths.
func (c *Converter) ExportTextures(s *scene.Scene, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating texture directory")
	}

	var paths []string
	seen := make(map[string]bool)
	for _, m := range s.Models {
		for _, t := range m.Textures {
			img, err := textureImage(t)
			if err != nil {
				return paths, errors.Wrapf(err, "texture %s", t.Name)
			}
			base := path.Base(strings.ReplaceAll(t.Name, `\`, "/"))
			base = strings.TrimSuffix(base, path.Ext(base))
			name := base + ".webp"
			for i := 1; seen[name]; i++ {
				name = base + "_" + strconv.Itoa(i) + ".webp"
			}
			seen[name] = true

			out := filepath.Join(outDir, name)
			if err := writeWebP(out, img); err != nil {
				return paths, err
			}
			c.log.Debug("texture exported", zap.String("texture", t.Name), zap.String("path", out))
			paths = append(paths, out)
		}
	}
	return paths, nil
}

// textureImage wraps the texture pixels in an image. Three-channel pixels
// are expanded to opaque RGBA.
func textureImage(t *scene.Texture) (image.Image, error) {
	w, h := int(t.Width), int(t.Height)
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid size %dx%d", w, h)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	switch t.Channels {
	case 4:
		if len(t.Pixels) != w*h*4 {
			return nil, errors.Errorf("have %d bytes for %dx%d RGBA", len(t.Pixels), w, h)
		}
		copy(img.Pix, t.Pixels)
	case 3:
		if len(t.Pixels) != w*h*3 {
			return nil, errors.Errorf("have %d bytes for %dx%d RGB", len(t.Pixels), w, h)
		}
		for i := 0; i < w*h; i++ {
			img.Pix[i*4+0] = t.Pixels[i*3+0]
			img.Pix[i*4+1] = t.Pixels[i*3+1]
			img.Pix[i*4+2] = t.Pixels[i*3+2]
			img.Pix[i*4+3] = 255
		}
	default:
		return nil, errors.Errorf("unsupported channel count %d", t.Channels)
	}
	return img, nil
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating texture file")
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return f.Close()
}
