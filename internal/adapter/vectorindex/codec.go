package vectorindex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"ragpipe/internal/domain"
)

const (
	blobMagic   = "RAGV"
	blobVersion = 1
	headerSize  = 4 + 2 + 1 + 1 + 16 + 4 + 4
)

// blob is the decoded vector file: header fields plus the raw vectors.
type blob struct {
	id      uuid.UUID
	metric  Metric
	dim     int
	vectors [][]float32
}

// MarshalBinary stores: magic, version(uint16), metric(uint8), reserved(uint8),
// index id (16 bytes), dim(uint32), n(uint32), then n*dim float32 values.
// All integers and floats are little-endian.
func (x *Index) MarshalBinary() ([]byte, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.encodeLocked(), nil
}

func (x *Index) encodeLocked() []byte {
	out := make([]byte, headerSize, headerSize+4*x.dim*len(x.records))
	copy(out[0:4], blobMagic)
	binary.LittleEndian.PutUint16(out[4:6], blobVersion)
	out[6] = x.metric.code()
	copy(out[8:24], x.id[:])
	binary.LittleEndian.PutUint32(out[24:28], uint32(x.dim))
	binary.LittleEndian.PutUint32(out[28:32], uint32(len(x.records)))

	b := make([]byte, 4)
	for _, r := range x.records {
		for _, v := range r.Vector {
			binary.LittleEndian.PutUint32(b, math.Float32bits(v))
			out = append(out, b...)
		}
	}
	return out
}

func decodeBlob(data []byte) (*blob, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: vector file truncated (%d bytes)", domain.ErrCorruptIndex, len(data))
	}
	if string(data[0:4]) != blobMagic {
		return nil, fmt.Errorf("%w: bad magic %q", domain.ErrCorruptIndex, data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != blobVersion {
		return nil, fmt.Errorf("%w: unsupported vector file version %d", domain.ErrCorruptIndex, v)
	}
	metric, ok := metricFromCode(data[6])
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric code %d", domain.ErrCorruptIndex, data[6])
	}

	b := &blob{metric: metric}
	copy(b.id[:], data[8:24])
	b.dim = int(binary.LittleEndian.Uint32(data[24:28]))
	n := int(binary.LittleEndian.Uint32(data[28:32]))

	if n > 0 && b.dim == 0 {
		return nil, fmt.Errorf("%w: %d vectors of dimension 0", domain.ErrCorruptIndex, n)
	}
	// bound n before multiplying so a crafted header cannot overflow
	if body := uint64(len(data) - headerSize); b.dim > 0 && uint64(n) > body/(4*uint64(b.dim)) {
		return nil, fmt.Errorf("%w: header claims %d vectors of dimension %d, vector file has %d bytes",
			domain.ErrCorruptIndex, n, b.dim, len(data))
	}
	if want := headerSize + 4*b.dim*n; len(data) != want {
		return nil, fmt.Errorf("%w: vector file has %d bytes, expected %d", domain.ErrCorruptIndex, len(data), want)
	}

	off := headerSize
	b.vectors = make([][]float32, n)
	for i := range b.vectors {
		vec := make([]float32, b.dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		b.vectors[i] = vec
	}
	return b, nil
}
