package forest

import (
	"math"
	"math/rand"
	"sort"
)

const leafFeature = -1

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	// value holds class probabilities for classification, the mean for regression
	value []float64
}

// tree is a fitted CART tree stored as a flat node slice, root at 0.
type tree struct {
	nodes []node
	// decrease is the raw weighted impurity decrease per feature
	decrease []float64
}

func (t *tree) leaf(row []float64) []float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature == leafFeature {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeParams struct {
	classification  bool
	criterion       string
	maxFeatures     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// builder grows one tree over feature-major data.
type builder struct {
	cols     [][]float64
	y        []float64
	labels   []int
	nClasses int
	params   treeParams
	rng      *rand.Rand
	t        *tree
	features []int
}

func newBuilder(d *dataset, params treeParams, rng *rand.Rand) *builder {
	features := make([]int, len(d.cols))
	for i := range features {
		features[i] = i
	}
	return &builder{
		cols:     d.cols,
		y:        d.y,
		labels:   d.labels,
		nClasses: len(d.classes),
		params:   params,
		rng:      rng,
		t:        &tree{decrease: make([]float64, len(d.cols))},
		features: features,
	}
}

func (b *builder) build(idx []int) *tree {
	b.grow(idx, 0)
	return b.t
}

func (b *builder) grow(idx []int, depth int) int {
	id := len(b.t.nodes)
	b.t.nodes = append(b.t.nodes, node{feature: leafFeature})

	imp := b.impurity(idx)
	n := len(idx)
	if n < b.params.minSamplesSplit ||
		n < 2*b.params.minSamplesLeaf ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		imp <= 1e-12 {
		b.t.nodes[id].value = b.leafValue(idx)
		return id
	}

	s, ok := b.bestSplit(idx)
	if !ok {
		b.t.nodes[id].value = b.leafValue(idx)
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, n-s.nLeft)
	col := b.cols[s.feature]
	for _, i := range idx {
		if col[i] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.t.decrease[s.feature] += float64(n)*imp - s.weightedChild
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.t.nodes[id].feature = s.feature
	b.t.nodes[id].threshold = s.threshold
	b.t.nodes[id].left = l
	b.t.nodes[id].right = r
	return id
}

type split struct {
	feature   int
	threshold float64
	nLeft     int
	// weightedChild is nLeft·impLeft + nRight·impRight
	weightedChild float64
}

// bestSplit draws features in random order and returns the split with the
// lowest weighted child impurity. Drawing stops after maxFeatures features
// once at least one of them was non-constant; constant features do not
// end the search on their own.
func (b *builder) bestSplit(idx []int) (split, bool) {
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	best := split{weightedChild: math.Inf(1)}
	found := false
	sorted := make([]int, len(idx))
	visited, evaluated := 0, 0
	for _, f := range b.features {
		if visited >= b.params.maxFeatures && evaluated > 0 {
			break
		}
		visited++
		col := b.cols[f]
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool { return col[sorted[i]] < col[sorted[j]] })
		if col[sorted[0]] == col[sorted[len(sorted)-1]] {
			continue
		}
		evaluated++
		var s split
		var ok bool
		if b.params.classification {
			s, ok = b.scanClassification(sorted, col)
		} else {
			s, ok = b.scanRegression(sorted, col)
		}
		if ok && s.weightedChild < best.weightedChild {
			s.feature = f
			best = s
			found = true
		}
	}
	return best, found
}

func threshold(lo, hi float64) float64 {
	t := lo/2 + hi/2
	if t >= hi || math.IsInf(t, 0) || math.IsNaN(t) {
		t = lo
	}
	return t
}

func (b *builder) scanClassification(sorted []int, col []float64) (split, bool) {
	n := len(sorted)
	total := make([]float64, b.nClasses)
	for _, i := range sorted {
		total[b.labels[i]]++
	}
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)

	best := split{weightedChild: math.Inf(1)}
	found := false
	minLeaf := b.params.minSamplesLeaf
	for p := 0; p < n-1; p++ {
		left[b.labels[sorted[p]]]++
		if col[sorted[p]] == col[sorted[p+1]] {
			continue
		}
		nl := p + 1
		nr := n - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		for c := range right {
			right[c] = total[c] - left[c]
		}
		w := float64(nl)*classImpurity(b.params.criterion, left, float64(nl)) +
			float64(nr)*classImpurity(b.params.criterion, right, float64(nr))
		if w < best.weightedChild {
			best = split{
				threshold:     threshold(col[sorted[p]], col[sorted[p+1]]),
				nLeft:         nl,
				weightedChild: w,
			}
			found = true
		}
	}
	return best, found
}

func (b *builder) scanRegression(sorted []int, col []float64) (split, bool) {
	n := len(sorted)
	var sum, sq float64
	for _, i := range sorted {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}

	best := split{weightedChild: math.Inf(1)}
	found := false
	minLeaf := b.params.minSamplesLeaf
	var lSum, lSq float64
	for p := 0; p < n-1; p++ {
		v := b.y[sorted[p]]
		lSum += v
		lSq += v * v
		if col[sorted[p]] == col[sorted[p+1]] {
			continue
		}
		nl := float64(p + 1)
		nr := float64(n) - nl
		if p+1 < minLeaf || n-p-1 < minLeaf {
			continue
		}
		rSum := sum - lSum
		rSq := sq - lSq
		// n·variance = Σy² - (Σy)²/n
		w := (lSq - lSum*lSum/nl) + (rSq - rSum*rSum/nr)
		if w < best.weightedChild {
			best = split{
				threshold:     threshold(col[sorted[p]], col[sorted[p+1]]),
				nLeft:         p + 1,
				weightedChild: w,
			}
			found = true
		}
	}
	return best, found
}

func (b *builder) impurity(idx []int) float64 {
	n := float64(len(idx))
	if n == 0 {
		return 0
	}
	if b.params.classification {
		counts := make([]float64, b.nClasses)
		for _, i := range idx {
			counts[b.labels[i]]++
		}
		return classImpurity(b.params.criterion, counts, n)
	}
	var sum, sq float64
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	mean := sum / n
	v := sq/n - mean*mean
	if v < 0 {
		v = 0
	}
	return v
}

func (b *builder) leafValue(idx []int) []float64 {
	n := float64(len(idx))
	if b.params.classification {
		probs := make([]float64, b.nClasses)
		for _, i := range idx {
			probs[b.labels[i]]++
		}
		for c := range probs {
			probs[c] /= n
		}
		return probs
	}
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	return []float64{sum / n}
}

func classImpurity(criterion string, counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch criterion {
	case CriterionEntropy:
		e := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				e -= p * math.Log2(p)
			}
		}
		return e
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
}
