package scene

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"cogentcore.org/core/math32"
)

// Fingerprint hashes everything about the object that affects a render:
// geometry, transform, material and light parameters.
func (o *Object) Fingerprint() string {
	h := sha256.New()
	writeString(h, o.ID)
	writeString(h, string(o.Kind))
	writeString(h, string(o.Class))
	writeVec(h, o.Transform.Location)
	writeVec(h, o.Transform.Rotation)
	writeVec(h, o.Transform.scale())
	writeString(h, o.Material.Name)
	writeFloats(h, o.Material.Color[:]...)
	writeFloats(h, o.Material.Emission)
	if o.Material.Opaque {
		writeString(h, "opaque")
	}
	if o.Light != nil {
		writeFloats(h, o.Light.Color[:]...)
		writeFloats(h, o.Light.Energy, o.Light.ShadowRadius)
	}
	if o.Mesh != nil {
		for _, p := range o.Mesh.Positions {
			writeVec(h, p)
		}
		for _, f := range o.Mesh.Faces {
			for _, v := range f.V {
				_ = binary.Write(h, binary.LittleEndian, int64(v))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	_ = binary.Write(h, binary.LittleEndian, uint32(len(s)))
	h.Write([]byte(s))
}

func writeVec(h hash.Hash, v math32.Vector3) {
	writeFloats(h, v.X, v.Y, v.Z)
}

func writeFloats(h hash.Hash, vs ...float32) {
	var buf [4]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
}
