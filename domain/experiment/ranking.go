package experiment

// FactorScore pairs a factor with its score under one strategy.
type FactorScore struct {
	Factor string  `json:"factor"`
	Score  float64 `json:"score"`
}

// Ranking is an ordered list of factor scores. Sort direction depends on
// the strategy that produced it.
type Ranking []FactorScore

// Names returns the factor names in rank order.
func (r Ranking) Names() []string {
	names := make([]string, len(r))
	for i, fs := range r {
		names[i] = fs.Factor
	}
	return names
}

// Lookup returns the score of a factor.
func (r Ranking) Lookup(factor string) (float64, bool) {
	for _, fs := range r {
		if fs.Factor == factor {
			return fs.Score, true
		}
	}
	return 0, false
}

// Top returns the first k entries, or all of them when k exceeds the length.
func (r Ranking) Top(k int) Ranking {
	if k < 0 {
		k = 0
	}
	if k > len(r) {
		k = len(r)
	}
	return r[:k]
}

// AsMap returns factor -> score.
func (r Ranking) AsMap() map[string]float64 {
	m := make(map[string]float64, len(r))
	for _, fs := range r {
		m[fs.Factor] = fs.Score
	}
	return m
}
