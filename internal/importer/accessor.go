package importer

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/qmuntal/gltf"
)

var componentCount = map[gltf.AccessorType]int{
	gltf.AccessorScalar: 1,
	gltf.AccessorVec2:   2,
	gltf.AccessorVec3:   3,
	gltf.AccessorVec4:   4,
	gltf.AccessorMat4:   16,
}

var componentSize = map[gltf.ComponentType]int{
	gltf.ComponentByte:   1,
	gltf.ComponentUbyte:  1,
	gltf.ComponentShort:  2,
	gltf.ComponentUshort: 2,
	gltf.ComponentUint:   4,
	gltf.ComponentFloat:  4,
}

// accessorView locates the bytes of one accessor.
type accessorView struct {
	data   []byte
	start  int
	stride int
	count  int
	comps  int
	size   int
	ctype  gltf.ComponentType
}

func view(doc *gltf.Document, index int, want gltf.AccessorType) (*accessorView, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}
	acc := doc.Accessors[index]
	if acc.Type != want {
		return nil, fmt.Errorf("accessor %d: expected %v, got %v", index, want, acc.Type)
	}
	if acc.BufferView == nil {
		return nil, fmt.Errorf("accessor %d has no buffer view", index)
	}
	bv := doc.BufferViews[*acc.BufferView]
	buf := doc.Buffers[bv.Buffer]
	if buf.Data == nil {
		return nil, fmt.Errorf("buffer %d has no data", bv.Buffer)
	}

	comps, size := componentCount[acc.Type], componentSize[acc.ComponentType]
	if size == 0 {
		return nil, fmt.Errorf("accessor %d: unsupported component type %v", index, acc.ComponentType)
	}
	v := &accessorView{
		data:   buf.Data,
		start:  bv.ByteOffset + acc.ByteOffset,
		stride: bv.ByteStride,
		count:  acc.Count,
		comps:  comps,
		size:   size,
		ctype:  acc.ComponentType,
	}
	if v.stride == 0 {
		v.stride = comps * size
	}
	if end := v.start + (v.count-1)*v.stride + comps*size; v.count > 0 && end > len(v.data) {
		return nil, fmt.Errorf("accessor %d overruns its buffer (%d > %d)", index, end, len(v.data))
	}
	return v, nil
}

func (v *accessorView) component(i, j int) []byte {
	off := v.start + i*v.stride + j*v.size
	return v.data[off : off+v.size]
}

// floats reads every element as float32. Normalized integer components
// are mapped to [0, 1].
func (v *accessorView) floats() [][]float32 {
	out := make([][]float32, v.count)
	for i := range out {
		out[i] = make([]float32, v.comps)
		for j := range out[i] {
			b := v.component(i, j)
			switch v.ctype {
			case gltf.ComponentFloat:
				out[i][j] = stdmath.Float32frombits(binary.LittleEndian.Uint32(b))
			case gltf.ComponentUbyte:
				out[i][j] = float32(b[0]) / 255
			case gltf.ComponentUshort:
				out[i][j] = float32(binary.LittleEndian.Uint16(b)) / 65535
			default:
				out[i][j] = float32(v.uint(b))
			}
		}
	}
	return out
}

// uints reads every element as unsigned integers.
func (v *accessorView) uints() [][]uint32 {
	out := make([][]uint32, v.count)
	for i := range out {
		out[i] = make([]uint32, v.comps)
		for j := range out[i] {
			out[i][j] = v.uint(v.component(i, j))
		}
	}
	return out
}

func (v *accessorView) uint(b []byte) uint32 {
	switch v.size {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

func readFloats(doc *gltf.Document, index int, typ gltf.AccessorType) ([][]float32, error) {
	v, err := view(doc, index, typ)
	if err != nil {
		return nil, err
	}
	return v.floats(), nil
}

func readIndices(doc *gltf.Document, index int) ([]uint32, error) {
	v, err := view(doc, index, gltf.AccessorScalar)
	if err != nil {
		return nil, err
	}
	if v.ctype == gltf.ComponentFloat {
		return nil, fmt.Errorf("accessor %d: float indices", index)
	}
	rows := v.uints()
	out := make([]uint32, len(rows))
	for i, r := range rows {
		out[i] = r[0]
	}
	return out, nil
}

func readJoints(doc *gltf.Document, index int) ([][]uint32, error) {
	v, err := view(doc, index, gltf.AccessorVec4)
	if err != nil {
		return nil, err
	}
	return v.uints(), nil
}
