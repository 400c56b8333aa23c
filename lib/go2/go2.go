// Package go2 contains general utility helpers that should've been in Go. Maybe they'll be in Go 2.0.
package go2

import (
	"golang.org/x/exp/constraints"
)

func Pointer[T any](v T) *T {
	return &v
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Max(lo, Min(v, hi))
}

func Contains[T comparable](els []T, el T) bool {
	for _, el2 := range els {
		if el2 == el {
			return true
		}
	}
	return false
}

func Filter[T any](els []T, fn func(T) bool) []T {
	out := []T{}
	for _, el := range els {
		if fn(el) {
			out = append(out, el)
		}
	}
	return out
}

// Sum adds up fn over els.
func Sum[T any, N constraints.Integer | constraints.Float](els []T, fn func(T) N) N {
	var s N
	for _, el := range els {
		s += fn(el)
	}
	return s
}
