package resource

import (
	"math/rand"

	gl "github.com/go-gl/gl/v4.3-core/gl"
)

// NoiseSize is the edge length of the 3D noise texture.
const NoiseSize = 64

// MakeNoise3D uploads a fresh RGBA8 white-noise volume. A new one is
// generated on every pipeline reload so shaders never settle into the same
// grain.
func MakeNoise3D() uint32 {
	data := make([]uint8, NoiseSize*NoiseSize*NoiseSize*4)
	for i := 0; i < len(data); i += 8 {
		v := rand.Uint64()
		for k := 0; k < 8 && i+k < len(data); k++ {
			data[i+k] = uint8(v >> (8 * k))
		}
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_3D, tex)
	gl.TexImage3D(gl.TEXTURE_3D, 0, gl.RGBA8, NoiseSize, NoiseSize, NoiseSize,
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(data))
	gl.TexParameteri(gl.TEXTURE_3D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_3D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_3D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_3D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_3D, gl.TEXTURE_WRAP_R, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_3D, 0)
	return tex
}
