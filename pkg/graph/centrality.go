package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/soundprediction/docgraph/pkg/utils"
)

const (
	defaultDampingFactor = 0.85
	defaultMaxIterations = 100
	defaultTolerance     = 1e-6
)

// Centrality methods reported in CentralityScores.Method.
const (
	MethodIterative = "eigenvector_hits_pagerank"
	MethodDegree    = "degree"
)

var (
	ErrNoEdges      = errors.New("graph has no edges")
	ErrNotConverged = errors.New("centrality did not converge")
	ErrNonFinite    = errors.New("centrality produced non-finite values")
)

// Link is a weighted directed connection between two node ids.
type Link struct {
	Source string
	Target string
	Weight float64
}

// CentralityOptions tunes the iterative methods.
type CentralityOptions struct {
	DampingFactor float64
	MaxIterations int
	Tolerance     float64
}

// DefaultCentralityOptions returns damping 0.85, 100 iterations and a 1e-6 tolerance.
func DefaultCentralityOptions() CentralityOptions {
	return CentralityOptions{
		DampingFactor: defaultDampingFactor,
		MaxIterations: defaultMaxIterations,
		Tolerance:     defaultTolerance,
	}
}

// CentralityScores holds per-node scores keyed by node id. Every score is
// finite and non-negative.
type CentralityScores struct {
	Centrality map[string]float64
	Hub        map[string]float64
	Authority  map[string]float64
	PageRank   map[string]float64
	Degree     map[string]float64
	Method     string
	FellBack   bool
}

type indexedLink struct {
	source, target int
	weight         float64
}

// ComputeCentrality runs eigenvector centrality over the undirected view and
// HITS and PageRank over the directed view of the given links. Links naming
// unknown ids are ignored. If there are no usable links, or any method fails
// to converge or yields a non-finite value, every score falls back to degree
// centrality and a warning is logged.
func ComputeCentrality(ids []string, links []Link, opts CentralityOptions, logger *slog.Logger) *CentralityScores {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.DampingFactor <= 0 || opts.DampingFactor >= 1 {
		opts.DampingFactor = defaultDampingFactor
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	indexed := make([]indexedLink, 0, len(links))
	for _, l := range links {
		s, okS := index[l.Source]
		t, okT := index[l.Target]
		if !okS || !okT || !utils.IsFinite(l.Weight) || l.Weight < 0 {
			continue
		}
		indexed = append(indexed, indexedLink{source: s, target: t, weight: l.Weight})
	}

	n := len(ids)
	degree := degreeCentrality(n, indexed)
	scores := &CentralityScores{Degree: toMap(ids, degree)}

	err := func() error {
		if len(indexed) == 0 {
			return ErrNoEdges
		}
		eigen, err := eigenvectorCentrality(n, indexed, opts)
		if err != nil {
			return fmt.Errorf("eigenvector: %w", err)
		}
		hubs, auths, err := hits(n, indexed, opts)
		if err != nil {
			return fmt.Errorf("hits: %w", err)
		}
		rank, err := pageRank(n, indexed, opts)
		if err != nil {
			return fmt.Errorf("pagerank: %w", err)
		}
		scores.Centrality = toMap(ids, eigen)
		scores.Hub = toMap(ids, hubs)
		scores.Authority = toMap(ids, auths)
		scores.PageRank = toMap(ids, rank)
		scores.Method = MethodIterative
		return nil
	}()

	if err != nil {
		if n > 0 {
			logger.Warn("Falling back to degree centrality", "nodes", n, "links", len(indexed), "reason", err)
		}
		scores.Centrality = toMap(ids, degree)
		scores.Hub = toMap(ids, degree)
		scores.Authority = toMap(ids, degree)
		scores.PageRank = toMap(ids, degree)
		scores.Method = MethodDegree
		scores.FellBack = true
	}
	return scores
}

func toMap(ids []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		out[id] = values[i]
	}
	return out
}

// degreeCentrality is the number of distinct neighbours divided by n-1.
func degreeCentrality(n int, links []indexedLink) []float64 {
	out := make([]float64, n)
	if n <= 1 {
		return out
	}
	neighbours := make([]map[int]struct{}, n)
	for i := range neighbours {
		neighbours[i] = make(map[int]struct{})
	}
	for _, l := range links {
		if l.source == l.target {
			continue
		}
		neighbours[l.source][l.target] = struct{}{}
		neighbours[l.target][l.source] = struct{}{}
	}
	for i := range out {
		out[i] = float64(len(neighbours[i])) / float64(n-1)
	}
	return out
}

// eigenvectorCentrality power-iterates (A + I) over the symmetric weighted
// adjacency, normalising to unit L2 length each round.
func eigenvectorCentrality(n int, links []indexedLink, opts CentralityOptions) ([]float64, error) {
	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / float64(n)
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		last := x
		x = make([]float64, n)
		copy(x, last)
		for _, l := range links {
			x[l.target] += last[l.source] * l.weight
			if l.source != l.target {
				x[l.source] += last[l.target] * l.weight
			}
		}

		var norm float64
		for _, v := range x {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 || !utils.IsFinite(norm) {
			return nil, ErrNonFinite
		}
		var delta float64
		for i := range x {
			x[i] /= norm
			delta += math.Abs(x[i] - last[i])
		}
		if delta < float64(n)*opts.Tolerance {
			return x, checkFinite(x)
		}
	}
	return nil, ErrNotConverged
}

// hits computes hub and authority scores, each normalised to sum to 1.
func hits(n int, links []indexedLink, opts CentralityOptions) ([]float64, []float64, error) {
	hubs := make([]float64, n)
	for i := range hubs {
		hubs[i] = 1 / float64(n)
	}
	auths := make([]float64, n)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		last := hubs

		auths = make([]float64, n)
		for _, l := range links {
			auths[l.target] += last[l.source] * l.weight
		}
		hubs = make([]float64, n)
		for _, l := range links {
			hubs[l.source] += auths[l.target] * l.weight
		}

		if err := normalizeSum(auths); err != nil {
			return nil, nil, err
		}
		if err := normalizeSum(hubs); err != nil {
			return nil, nil, err
		}

		var delta float64
		for i := range hubs {
			delta += math.Abs(hubs[i] - last[i])
		}
		if delta < opts.Tolerance {
			if err := checkFinite(hubs); err != nil {
				return nil, nil, err
			}
			return hubs, auths, checkFinite(auths)
		}
	}
	return nil, nil, ErrNotConverged
}

// pageRank runs weighted PageRank, spreading dangling-node mass uniformly.
func pageRank(n int, links []indexedLink, opts CentralityOptions) ([]float64, error) {
	outWeight := make([]float64, n)
	for _, l := range links {
		outWeight[l.source] += l.weight
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	d := opts.DampingFactor

	for iter := 0; iter < opts.MaxIterations; iter++ {
		var dangling float64
		for i, w := range outWeight {
			if w == 0 {
				dangling += rank[i]
			}
		}

		next := make([]float64, n)
		base := (1-d)/float64(n) + d*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for _, l := range links {
			if outWeight[l.source] > 0 {
				next[l.target] += d * rank[l.source] * l.weight / outWeight[l.source]
			}
		}

		var delta float64
		for i := range next {
			delta += math.Abs(next[i] - rank[i])
		}
		rank = next
		if delta < float64(n)*opts.Tolerance {
			return rank, checkFinite(rank)
		}
	}
	return nil, ErrNotConverged
}

func normalizeSum(v []float64) error {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 || !utils.IsFinite(sum) {
		return ErrNonFinite
	}
	for i := range v {
		v[i] /= sum
	}
	return nil
}

func checkFinite(v []float64) error {
	for _, x := range v {
		if !utils.IsFinite(x) || x < 0 {
			return ErrNonFinite
		}
	}
	return nil
}
