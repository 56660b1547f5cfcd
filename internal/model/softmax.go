package model

import (
	"math"
	"sort"
)

// Softmax subtracts the max logit before exponentiating so large logits don't overflow.
func Softmax(logits []float32) []float64 {
	probs := make([]float64, len(logits))
	if len(logits) == 0 {
		return probs
	}

	maxVal := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxVal {
			maxVal = float64(v)
		}
	}

	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxVal)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// TopIndices returns the indices of the k largest values, largest first.
// Equal values keep ascending index order.
func TopIndices(values []float64, k int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
