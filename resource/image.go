package resource

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	gl "github.com/go-gl/gl/v4.3-core/gl"
)

// Image is a static 2D texture loaded from disk, exposed to shaders as a
// sampler plus a companion resolution/aspect vector.
type Image struct {
	Name   string
	Path   string
	Tex    uint32
	Width  int
	Height int
}

// LoadImage decodes the file at path and uploads it as a mipmapped RGBA
// texture.
func LoadImage(name, path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %q: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %q: %w", path, err)
	}

	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, image.Point{}, draw.Src)

	width := rgba.Rect.Dx()
	height := rgba.Rect.Dy()

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return &Image{Name: name, Path: path, Tex: tex, Width: width, Height: height}, nil
}

// Destroy frees the texture.
func (i *Image) Destroy() {
	gl.DeleteTextures(1, &i.Tex)
	i.Tex = 0
}

// ImageCache keeps decoded images alive across pipeline reloads so an
// unchanged declaration never re-reads the file. Like the target arena,
// loads are staged in a transaction: fresh textures live on the Tx until
// Commit, so an aborted reload never frees a texture the running graph
// still samples.
type ImageCache struct {
	images map[string]*Image

	// Swappable for tests; default to GL texture upload.
	load func(name, path string) (*Image, error)
	free func(*Image)
}

func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*Image),
		load:   LoadImage,
		free:   func(img *Image) { img.Destroy() },
	}
}

// ImageTx stages the image loads of one reload.
type ImageTx struct {
	cache *ImageCache
	fresh map[string]*Image
}

// Begin starts a new load transaction.
func (c *ImageCache) Begin() *ImageTx {
	return &ImageTx{cache: c, fresh: make(map[string]*Image)}
}

// Acquire returns the image under name, reusing the cached texture when
// the declared path is unchanged and loading a fresh one otherwise. A
// texture a fresh load replaces stays live until Commit.
func (tx *ImageTx) Acquire(name, path string) (*Image, error) {
	if img, ok := tx.fresh[name]; ok && img.Path == path {
		return img, nil
	}
	if img, ok := tx.cache.images[name]; ok && img.Path == path {
		return img, nil
	}
	img, err := tx.cache.load(name, path)
	if err != nil {
		return nil, err
	}
	if old, ok := tx.fresh[name]; ok {
		tx.cache.free(old)
	}
	tx.fresh[name] = img
	return img, nil
}

// Commit installs the staged textures and frees every cache entry the new
// pipeline no longer declares, including entries a staged load replaced.
func (tx *ImageTx) Commit(keep map[string]bool) {
	for name, img := range tx.fresh {
		if old, ok := tx.cache.images[name]; ok {
			tx.cache.free(old)
		}
		tx.cache.images[name] = img
	}
	tx.fresh = nil
	for name, img := range tx.cache.images {
		if !keep[name] {
			tx.cache.free(img)
			delete(tx.cache.images, name)
		}
	}
}

// Rollback frees the staged textures; the cache keeps serving what it had.
func (tx *ImageTx) Rollback() {
	for _, img := range tx.fresh {
		tx.cache.free(img)
	}
	tx.fresh = nil
}

// Destroy frees all cached images.
func (c *ImageCache) Destroy() {
	for name, img := range c.images {
		c.free(img)
		delete(c.images, name)
	}
}
