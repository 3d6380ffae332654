package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
)

// flatIndex is an exact inner-product index over unit-normalized vectors.
// With normalized inputs the inner product equals cosine similarity.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func (ix *flatIndex) count() int {
	return len(ix.vectors)
}

func (ix *flatIndex) add(vecs [][]float32) error {
	for _, v := range vecs {
		if ix.dim == 0 {
			ix.dim = len(v)
		}
		if len(v) != ix.dim {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), ix.dim)
		}
		ix.vectors = append(ix.vectors, v)
	}
	return nil
}

// search returns up to k (index, score) pairs ordered by descending inner
// product.
func (ix *flatIndex) search(query []float32, k int) ([]int, []float32) {
	if len(ix.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	type hit struct {
		idx   int
		score float32
	}
	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = hit{idx: i, score: dot(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if k > len(hits) {
		k = len(hits)
	}
	idxs := make([]int, k)
	scores := make([]float32, k)
	for i := 0; i < k; i++ {
		idxs[i] = hits[i].idx
		scores[i] = hits[i].score
	}
	return idxs, scores
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// normalize scales v to unit length in place. Zero vectors are left as-is
// so they simply never score.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Binary layout: uint32 dimension, uint32 count, then count*dimension
// little-endian float32 values in row order.

func (ix *flatIndex) writeFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	header := [2]uint32{uint32(ix.dim), uint32(len(ix.vectors))}
	if err := binary.Write(f, binary.LittleEndian, header[:]); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write index header: %w", err)
	}
	for _, v := range ix.vectors {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func readIndexFile(path string) (*flatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var header [2]uint32
	if err := binary.Read(f, binary.LittleEndian, header[:]); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])
	if dim <= 0 || dim > 1<<16 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}

	ix := &flatIndex{dim: dim, vectors: make([][]float32, 0, count)}
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}
