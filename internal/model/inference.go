package model

// predict runs the artifact's regression model over a dense feature vector
// already aligned to FeatureColumns.
func (a *Artifact) predict(x []float64) float64 {
	switch a.Model.Type {
	case ModelTypeLinear:
		return a.predictLinear(x)
	case ModelTypeGBTree:
		return a.predictGBTree(x)
	default:
		// validate() rejects unknown types at load time.
		return 0
	}
}

func (a *Artifact) predictLinear(x []float64) float64 {
	sum := a.Model.Intercept
	for i, col := range a.FeatureColumns {
		if coef, ok := a.Model.Coefficients[col]; ok {
			sum += coef * x[i]
		}
	}
	return sum
}

func (a *Artifact) predictGBTree(x []float64) float64 {
	sum := a.Model.BaseScore
	for _, tree := range a.Model.Trees {
		sum += tree.eval(x)
	}
	return sum
}

// eval walks the tree from the root to a leaf. The step bound guards against
// a malformed cyclic tree that slipped past validation.
func (t Tree) eval(x []float64) float64 {
	node := 0
	for steps := 0; steps <= len(t.Feature); steps++ {
		f := t.Feature[node]
		if f < 0 {
			return t.Value[node]
		}
		if x[f] < t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}
