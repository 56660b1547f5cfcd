package model

import (
	"sort"
	"strings"
)

// TopK is how many of the highest-probability classes are matched against Buckets.
const TopK = 20

type Bucket struct {
	Name     string
	Keywords []string
}

// Buckets maps ImageNet label substrings to coarse animal categories.
// Order matters only for breaking ties between equal scores.
var Buckets = []Bucket{
	{"Dog", []string{"dog", "labrador", "retriever", "shepherd", "chihuahua", "pug", "husky", "terrier"}},
	{"Cat", []string{"cat", "tabby", "siamese", "persian", "lynx"}},
	{"Bird", []string{"bird", "parrot", "jay", "magpie", "penguin", "ostrich", "eagle", "owl", "king penguin"}},
	{"Horse", []string{"horse", "zebra", "donkey"}},
	{"Cattle", []string{"cow", "ox", "bison", "buffalo"}},
	{"Sheep", []string{"sheep", "ram"}},
	{"Goat", []string{"goat"}},
	{"Pig", []string{"pig", "boar", "hog"}},
	{"Rabbit", []string{"hare", "rabbit"}},
	{"Bear", []string{"bear", "panda"}},
	{"Feline", []string{"tiger", "lion", "leopard", "cheetah", "jaguar"}},
	{"Canine", []string{"wolf", "fox"}},
	{"Rodent", []string{"mouse", "rat", "squirrel", "hamster"}},
	{"Reptile", []string{"snake", "lizard", "crocodile", "turtle"}},
	{"Fish", []string{"fish", "shark", "ray", "goldfish"}},
	{"Insect", []string{"butterfly", "bee", "ant", "dragonfly", "ladybug", "beetle", "mosquito"}},
}

func (b Bucket) matches(label string) bool {
	for _, k := range b.Keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

// Classify turns raw logits into bucket predictions. Each bucket keeps the
// highest probability among the top-K classes whose label matches it.
// labels[i] names logits[i]; indices past the end of labels never match.
func Classify(labels []string, logits []float32) []Prediction {
	probs := Softmax(logits)

	found := make(map[int]float64)
	for _, idx := range TopIndices(probs, TopK) {
		if idx >= len(labels) {
			continue
		}
		label := strings.ToLower(labels[idx])
		score := probs[idx]
		for bi, bucket := range Buckets {
			if !bucket.matches(label) {
				continue
			}
			if cur, ok := found[bi]; !ok || cur < score {
				found[bi] = score
			}
		}
	}

	order := make([]int, 0, len(found))
	for bi := range found {
		order = append(order, bi)
	}
	sort.Ints(order)
	sort.SliceStable(order, func(i, j int) bool {
		return found[order[i]] > found[order[j]]
	})

	result := make([]Prediction, 0, len(order))
	for _, bi := range order {
		result = append(result, Prediction{Label: Buckets[bi].Name, Score: found[bi]})
	}
	return result
}
