package storage

import (
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	cbor "github.com/fxamacker/cbor/v2"

	"github.com/pnnl/chgl/model"
)

const (
	// DefaultDensity is the probability of a vertex / edge pair being included in a generated workload.
	DefaultDensity = 0.1
	// MaxWorkloadPairs bounds the vertex / edge pairs a generated workload may span.
	MaxWorkloadPairs = 1 << 26
)

type (
	// Workload is a replayable set of inclusions for a graph of the given dimensions.
	Workload struct {
		NumVertices int64               `cbor:"num_vertices"`
		NumEdges    int64               `cbor:"num_edges"`
		Inclusions  model.InclusionList `cbor:"inclusions"`
	}
)

// Validate checks workload dimensions and inclusion ids.
func (w Workload) Validate() error {
	if w.NumVertices <= 0 {
		return errors.Newf("%s: must be GT 0", "NumVertices")
	}
	if w.NumEdges <= 0 {
		return errors.Newf("%s: must be GT 0", "NumEdges")
	}
	for i, pair := range w.Inclusions {
		if pair.Vertex < 0 || int64(pair.Vertex) >= w.NumVertices {
			return errors.Newf("inclusion[%d] %s: vertex out of range", i, pair)
		}
		if pair.Edge < 0 || int64(pair.Edge) >= w.NumEdges {
			return errors.Newf("inclusion[%d] %s: edge out of range", i, pair)
		}
	}

	return nil
}

// GenerateWorkload includes every vertex / edge pair with the given probability.
func GenerateWorkload(numVertices, numEdges int64, density float64, rng *rand.Rand) (Workload, error) {
	if numVertices <= 0 {
		return Workload{}, errors.Newf("%s: must be GT 0", "numVertices")
	}
	if numEdges <= 0 {
		return Workload{}, errors.Newf("%s: must be GT 0", "numEdges")
	}
	if density <= 0 || density > 1 {
		return Workload{}, errors.Newf("%s: must be in (0, 1]", "density")
	}
	if numVertices > MaxWorkloadPairs/numEdges {
		return Workload{}, errors.Newf("%dx%d: must span LTE %d pairs", numVertices, numEdges, MaxWorkloadPairs)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	w := Workload{
		NumVertices: numVertices,
		NumEdges:    numEdges,
		Inclusions:  make(model.InclusionList, 0, int(float64(numVertices*numEdges)*density)),
	}
	for v := int64(0); v < numVertices; v++ {
		for e := int64(0); e < numEdges; e++ {
			if rng.Float64() <= density {
				w.Inclusions = append(w.Inclusions, model.Inclusion{Vertex: model.VertexId(v), Edge: model.EdgeId(e)})
			}
		}
	}

	return w, nil
}

// SaveWorkload writes the workload to the file system (canonical CBOR).
func SaveWorkload(filePath string, w Workload) error {
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "workload")
	}

	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return errors.Wrap(err, "CBOR enc mode")
	}
	raw, err := encMode.Marshal(w)
	if err != nil {
		return errors.Wrap(err, "CBOR marshal")
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return errors.Wrapf(err, "write to file (%s)", filePath)
	}

	return nil
}

// LoadWorkload reads a workload written by SaveWorkload.
func LoadWorkload(filePath string) (Workload, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return Workload{}, errors.Wrapf(err, "reading file (%s)", filePath)
	}

	var w Workload
	if err := cbor.Unmarshal(raw, &w); err != nil {
		return Workload{}, errors.Wrap(err, "CBOR unmarshal")
	}
	if err := w.Validate(); err != nil {
		return Workload{}, errors.Wrapf(err, "workload (%s)", filePath)
	}

	return w, nil
}
