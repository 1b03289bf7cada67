// Package forest implements random forest classification and regression
// over dense feature matrices, exposing mean-decrease-in-impurity feature
// importances and out-of-bag scores.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"gofactor/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
	CriterionMSE     = "mse"
)

var (
	// ErrNonFinite is returned when X or y contain NaN or Inf.
	ErrNonFinite = errors.New("non-finite input")
	// ErrDimension is returned when y does not align with the rows of X.
	ErrDimension = errors.New("dimension mismatch")
	// ErrTooFewSamples is returned when n cannot support the split settings.
	ErrTooFewSamples = errors.New("too few samples")
	// ErrInvalidParams is returned for unusable forest settings.
	ErrInvalidParams = fmt.Errorf("forest: %w", ports.ErrInvalidParams)
)

// dataset is the feature-major view of (X, y) shared read-only by all trees.
type dataset struct {
	cols    [][]float64
	y       []float64
	labels  []int
	classes []float64
}

// Forest is a fitted tree ensemble.
type Forest struct {
	classification bool
	classes        []float64
	trees          []*tree
	importances    []float64
	oob            float64
	hasOOB         bool
}

var _ ports.ForestModel = (*Forest)(nil)

// Learner fits forests. It is stateless and safe for concurrent use.
type Learner struct{}

// NewLearner creates a forest learner
func NewLearner() *Learner {
	return &Learner{}
}

// Fit grows params.Trees trees on bootstrap samples of (X, y).
func (l *Learner) Fit(ctx context.Context, X mat.Matrix, y []float64, params ports.ForestParams) (ports.ForestModel, error) {
	f, err := Fit(ctx, X, y, params)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Fit grows a forest. Every tree gets its own seed drawn up front from the
// master seed, so the result does not depend on Workers.
func Fit(ctx context.Context, X mat.Matrix, y []float64, params ports.ForestParams) (*Forest, error) {
	rows, cols := X.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", ErrDimension, rows, len(y))
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty matrix %dx%d", ErrTooFewSamples, rows, cols)
	}
	tp, err := resolveParams(params, cols)
	if err != nil {
		return nil, err
	}
	if rows < tp.minSamplesSplit {
		return nil, fmt.Errorf("%w: %d samples, min_samples_split is %d", ErrTooFewSamples, rows, tp.minSamplesSplit)
	}
	if params.OOBScore && !params.Bootstrap {
		return nil, fmt.Errorf("%w: out-of-bag score requires bootstrap", ErrInvalidParams)
	}

	d, err := newDataset(X, y, params.Classification)
	if err != nil {
		return nil, err
	}

	master := rand.New(rand.NewSource(params.Seed))
	seeds := make([]int64, params.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*tree, params.Trees)
	inBag := make([][]bool, params.Trees)

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := 0; t < params.Trees; t++ {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[t]))
			idx, bag := sampleRows(rows, params.Bootstrap, rng)
			trees[t] = newBuilder(d, tp, rng).build(idx)
			inBag[t] = bag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := &Forest{
		classification: params.Classification,
		classes:        d.classes,
		trees:          trees,
		importances:    aggregateImportances(trees, cols),
	}
	if params.OOBScore {
		f.oob, f.hasOOB = f.outOfBag(d, inBag)
	}
	return f, nil
}

func resolveParams(params ports.ForestParams, cols int) (treeParams, error) {
	if params.Trees < 1 {
		return treeParams{}, fmt.Errorf("%w: tree count %d", ErrInvalidParams, params.Trees)
	}
	criterion := strings.ToLower(params.Criterion)
	if params.Classification {
		switch criterion {
		case "", "impurity", CriterionGini:
			criterion = CriterionGini
		case CriterionEntropy:
		default:
			return treeParams{}, fmt.Errorf("%w: classification criterion %q", ErrInvalidParams, params.Criterion)
		}
	} else {
		switch criterion {
		case "", CriterionMSE, "squared_error":
			criterion = CriterionMSE
		default:
			return treeParams{}, fmt.Errorf("%w: regression criterion %q", ErrInvalidParams, params.Criterion)
		}
	}
	maxFeatures, err := resolveMaxFeatures(params.MaxFeatures, cols, params.Classification)
	if err != nil {
		return treeParams{}, err
	}
	minSplit := params.MinSamplesSplit
	if minSplit == 0 {
		minSplit = 2
	}
	minLeaf := params.MinSamplesLeaf
	if minLeaf == 0 {
		minLeaf = 1
	}
	if minSplit < 2 || minLeaf < 1 || params.MaxDepth < 0 {
		return treeParams{}, fmt.Errorf("%w: min_samples_split=%d min_samples_leaf=%d max_depth=%d",
			ErrInvalidParams, minSplit, minLeaf, params.MaxDepth)
	}
	return treeParams{
		classification:  params.Classification,
		criterion:       criterion,
		maxFeatures:     maxFeatures,
		maxDepth:        params.MaxDepth,
		minSamplesSplit: minSplit,
		minSamplesLeaf:  minLeaf,
	}, nil
}

// resolveMaxFeatures turns a feature-subsampling rule into a count.
// "auto" is sqrt for classification and all features for regression.
func resolveMaxFeatures(rule string, cols int, classification bool) (int, error) {
	rule = strings.ToLower(strings.TrimSpace(rule))
	var k int
	switch rule {
	case "auto":
		if classification {
			k = int(math.Sqrt(float64(cols)))
		} else {
			k = cols
		}
	case "sqrt":
		k = int(math.Sqrt(float64(cols)))
	case "log2":
		k = int(math.Log2(float64(cols)))
	case "", "all", "none":
		k = cols
	default:
		if n, err := strconv.Atoi(rule); err == nil {
			if n < 1 || n > cols {
				return 0, fmt.Errorf("%w: max_features %d outside [1,%d]", ErrInvalidParams, n, cols)
			}
			return n, nil
		}
		frac, err := strconv.ParseFloat(rule, 64)
		if err != nil || frac <= 0 || frac > 1 {
			return 0, fmt.Errorf("%w: max_features %q", ErrInvalidParams, rule)
		}
		k = int(frac * float64(cols))
	}
	if k < 1 {
		k = 1
	}
	if k > cols {
		k = cols
	}
	return k, nil
}

func newDataset(X mat.Matrix, y []float64, classification bool) (*dataset, error) {
	rows, cols := X.Dims()
	d := &dataset{
		cols: make([][]float64, cols),
		y:    make([]float64, rows),
	}
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: X[%d,%d]", ErrNonFinite, i, j)
			}
			col[i] = v
		}
		d.cols[j] = col
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: y[%d]", ErrNonFinite, i)
		}
		d.y[i] = v
	}
	if classification {
		seen := make(map[float64]bool)
		for _, v := range y {
			if !seen[v] {
				seen[v] = true
				d.classes = append(d.classes, v)
			}
		}
		sort.Float64s(d.classes)
		pos := make(map[float64]int, len(d.classes))
		for i, c := range d.classes {
			pos[c] = i
		}
		d.labels = make([]int, rows)
		for i, v := range y {
			d.labels[i] = pos[v]
		}
	}
	return d, nil
}

// sampleRows draws a bootstrap sample, or all rows when bootstrap is off.
func sampleRows(n int, bootstrap bool, rng *rand.Rand) ([]int, []bool) {
	idx := make([]int, n)
	bag := make([]bool, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.Intn(n)
		} else {
			idx[i] = i
		}
		bag[idx[i]] = true
	}
	return idx, bag
}

// aggregateImportances normalizes each tree's impurity decrease, averages
// across trees and normalizes again so the result sums to 1. Trees that
// never split contribute nothing.
func aggregateImportances(trees []*tree, cols int) []float64 {
	imp := make([]float64, cols)
	for _, t := range trees {
		total := 0.0
		for _, v := range t.decrease {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range t.decrease {
			imp[j] += v / total
		}
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// outOfBag scores every sample with the trees that did not see it:
// accuracy for classification, R² for regression.
func (f *Forest) outOfBag(d *dataset, inBag [][]bool) (float64, bool) {
	rows := len(d.y)
	row := make([]float64, len(d.cols))
	var truth, pred []float64
	for i := 0; i < rows; i++ {
		for j := range d.cols {
			row[j] = d.cols[j][i]
		}
		var acc []float64
		votes := 0
		for t, tr := range f.trees {
			if inBag[t][i] {
				continue
			}
			leaf := tr.leaf(row)
			if acc == nil {
				acc = make([]float64, len(leaf))
			}
			for k, v := range leaf {
				acc[k] += v
			}
			votes++
		}
		if votes == 0 {
			continue
		}
		truth = append(truth, d.y[i])
		if f.classification {
			pred = append(pred, f.classes[argmax(acc)])
		} else {
			pred = append(pred, acc[0]/float64(votes))
		}
	}
	if len(truth) == 0 {
		return 0, false
	}
	if f.classification {
		correct := 0
		for i := range truth {
			if truth[i] == pred[i] {
				correct++
			}
		}
		return float64(correct) / float64(len(truth)), true
	}
	return rSquared(truth, pred)
}

func rSquared(truth, pred []float64) (float64, bool) {
	mean, err := stats.Mean(truth)
	if err != nil {
		return 0, false
	}
	var ssRes, ssTot float64
	for i := range truth {
		r := truth[i] - pred[i]
		ssRes += r * r
		d := truth[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0, false
	}
	return 1 - ssRes/ssTot, true
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Importances returns the normalized mean decrease in impurity per feature.
func (f *Forest) Importances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}

// OOBScore returns the out-of-bag score when it was computed.
func (f *Forest) OOBScore() (float64, bool) {
	return f.oob, f.hasOOB
}

// NumTrees returns the ensemble size.
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// Classes returns the sorted class labels of a classification forest.
func (f *Forest) Classes() []float64 {
	out := make([]float64, len(f.classes))
	copy(out, f.classes)
	return out
}

// IsClassifier reports whether the forest predicts classes.
func (f *Forest) IsClassifier() bool {
	return f.classification
}

// PredictProba averages the leaf class distributions over all trees.
func (f *Forest) PredictProba(row []float64) []float64 {
	if !f.classification {
		return nil
	}
	acc := make([]float64, len(f.classes))
	for _, t := range f.trees {
		for k, v := range t.leaf(row) {
			acc[k] += v
		}
	}
	for k := range acc {
		acc[k] /= float64(len(f.trees))
	}
	return acc
}

// Predict returns the majority class or the mean regression value.
func (f *Forest) Predict(row []float64) float64 {
	if f.classification {
		return f.classes[argmax(f.PredictProba(row))]
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.leaf(row)[0]
	}
	return sum / float64(len(f.trees))
}
