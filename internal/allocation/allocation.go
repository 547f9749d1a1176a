/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package allocation converts weight maps and pool sizes into integer
// sub-quotas. The two entry points are pure functions with no catalog
// access; everything else in the batch pipeline builds on them.
package allocation

import (
	"math"
	"sort"
)

// DefaultMaxShare caps any single source at 70% of a quota.
const DefaultMaxShare = 0.70

// ProportionalSplit divides total across keys in proportion to their
// weights. Every key with positive weight receives at least 1 when total
// allows; zero-weight keys always receive zero. The result sums exactly
// to total.
func ProportionalSplit(total int, weights map[string]int) map[string]int {
	out := make(map[string]int, len(weights))
	for key := range weights {
		out[key] = 0
	}

	sum := 0
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 || total <= 0 {
		return out
	}

	type share struct {
		key   string
		exact float64
	}

	shares := make([]share, 0, len(weights))
	leftover := total
	for key, w := range weights {
		if w <= 0 {
			continue
		}
		exact := float64(w) / float64(sum) * float64(total)
		n := int(math.Floor(exact))
		if n < 1 {
			n = 1
		}
		out[key] = n
		leftover -= n
		shares = append(shares, share{key: key, exact: exact})
	}

	if leftover < 0 {
		// Floors plus the min-1 guarantee overshot; walk the largest
		// allocations down, never below 1.
		keys := make([]string, 0, len(shares))
		for _, s := range shares {
			keys = append(keys, s.key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if out[keys[i]] != out[keys[j]] {
				return out[keys[i]] > out[keys[j]]
			}
			return keys[i] < keys[j]
		})
		for _, key := range keys {
			if leftover == 0 {
				break
			}
			if out[key] > 1 {
				dec := out[key] - 1
				if dec > -leftover {
					dec = -leftover
				}
				out[key] -= dec
				leftover += dec
			}
		}
		// More positive keys than units: representation has to give, so
		// the smallest shares drop to zero.
		if leftover < 0 {
			sort.Slice(shares, func(i, j int) bool {
				if shares[i].exact != shares[j].exact {
					return shares[i].exact < shares[j].exact
				}
				return shares[i].key < shares[j].key
			})
			for _, s := range shares {
				if leftover == 0 {
					break
				}
				if out[s.key] > 0 {
					leftover += out[s.key]
					out[s.key] = 0
				}
			}
		}
	}

	if leftover > 0 {
		// Hand remaining units to the keys that lost the most to flooring.
		sort.Slice(shares, func(i, j int) bool {
			ri := shares[i].exact - float64(out[shares[i].key])
			rj := shares[j].exact - float64(out[shares[j].key])
			if ri != rj {
				return ri > rj
			}
			return shares[i].key < shares[j].key
		})
		for _, s := range shares {
			if leftover == 0 {
				break
			}
			out[s.key]++
			leftover--
		}
	}

	return out
}

// CappedQuota splits total across sources proportionally to their available
// candidate counts. A source never receives more than max(1, round(maxShare*
// total)) nor more than it has available. Leftover from capping goes to the
// sources with the largest fractional shortfall, bounded by cap and
// availability; when pools run out entirely the result may sum to less
// than total.
func CappedQuota(total int, sizes []int, maxShare float64) []int {
	out := make([]int, len(sizes))
	if len(sizes) == 0 || total <= 0 {
		return out
	}
	if maxShare <= 0 {
		maxShare = DefaultMaxShare
	}

	sum := 0
	for _, s := range sizes {
		if s > 0 {
			sum += s
		}
	}
	if sum == 0 {
		return out
	}

	cap := int(math.Round(float64(total) * maxShare))
	if cap < 1 {
		cap = 1
	}

	raw := make([]float64, len(sizes))
	leftover := total
	for i, s := range sizes {
		if s <= 0 {
			continue
		}
		raw[i] = float64(s) / float64(sum) * float64(total)
		base := int(math.Floor(raw[i]))
		if base > cap {
			base = cap
		}
		if base > s {
			base = s
		}
		out[i] = base
		leftover -= base
	}

	if leftover <= 0 {
		return out
	}

	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra := raw[order[a]] - float64(out[order[a]])
		rb := raw[order[b]] - float64(out[order[b]])
		if ra != rb {
			return ra > rb
		}
		return order[a] < order[b]
	})

	// Repeat passes until nothing can absorb the leftover; a single pass
	// is not enough when caps bind several sources at once.
	for leftover > 0 {
		gave := false
		for _, i := range order {
			if leftover == 0 {
				break
			}
			if out[i] < cap && out[i] < sizes[i] {
				out[i]++
				leftover--
				gave = true
			}
		}
		if !gave {
			break
		}
	}

	return out
}
