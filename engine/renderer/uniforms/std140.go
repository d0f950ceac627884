package uniforms

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/array/engine/math"
)

// writer packs values with std140 offsets. Callers pass explicit offsets so
// the layout is visible next to the GLSL block it mirrors.
type writer []byte

func (w writer) float(off int, v float32) {
	binary.LittleEndian.PutUint32(w[off:], gomath.Float32bits(v))
}

func (w writer) vec2(off int, v math.Vec2) {
	w.float(off, v.X)
	w.float(off+4, v.Y)
}

func (w writer) vec3(off int, v math.Vec3) {
	w.float(off, v.X)
	w.float(off+4, v.Y)
	w.float(off+8, v.Z)
}

func (w writer) mat4(off int, m math.Mat4) {
	for i, f := range m.Data {
		w.float(off+i*4, f)
	}
}
