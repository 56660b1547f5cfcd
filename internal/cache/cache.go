// Package cache memoizes prediction results by the SHA-256 of the uploaded bytes.
package cache

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Brownie44l1/animal-api/internal/model"
)

type Key [sha256.Size]byte

func KeyOf(data []byte) Key {
	return sha256.Sum256(data)
}

// Results is safe for concurrent use. A nil *Results never hits.
type Results struct {
	lru *lru.Cache[Key, []model.Prediction]
}

// New returns nil when size is zero, which disables caching.
func New(size int) (*Results, error) {
	if size == 0 {
		return nil, nil
	}
	c, err := lru.New[Key, []model.Prediction](size)
	if err != nil {
		return nil, err
	}
	return &Results{lru: c}, nil
}

func (r *Results) Get(key Key) ([]model.Prediction, bool) {
	if r == nil {
		return nil, false
	}
	result, ok := r.lru.Get(key)
	if !ok {
		return nil, false
	}
	return clone(result), true
}

func (r *Results) Add(key Key, result []model.Prediction) {
	if r == nil {
		return
	}
	r.lru.Add(key, clone(result))
}

func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return r.lru.Len()
}

func clone(p []model.Prediction) []model.Prediction {
	out := make([]model.Prediction, len(p))
	copy(out, p)
	return out
}
