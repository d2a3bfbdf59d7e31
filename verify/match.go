// Package verify implements geometric verification of loop-closure
// candidates: binary descriptor matching with Lowe's ratio test, rigid
// 3D-3D pose estimation, RANSAC, and the inlier gates that decide whether
// a candidate becomes a verified edge.
package verify

import "math/bits"

// HammingDistance counts differing bits between two descriptors.
// Assumes slices are the same length (caller's responsibility).
func HammingDistance(a, b []byte) int {
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// MatchDescriptors brute-force matches query descriptors against match
// descriptors with 2-NN Hamming search and Lowe's ratio test: a pair is
// retained iff the nearest distance is strictly below loweRatio times the
// second-nearest distance. Ties go to the lowest match index, so the
// output is deterministic. Returns parallel index slices into query and
// match.
func MatchDescriptors(query, match [][]byte, loweRatio float64) (queryIdx, matchIdx []int) {
	if len(match) < 2 {
		return nil, nil
	}
	for qi, qd := range query {
		best, second := -1, -1
		bestDist, secondDist := 0, 0
		for mi, md := range match {
			d := HammingDistance(qd, md)
			switch {
			case best < 0 || d < bestDist:
				second, secondDist = best, bestDist
				best, bestDist = mi, d
			case second < 0 || d < secondDist:
				second, secondDist = mi, d
			}
		}
		if float64(bestDist) < loweRatio*float64(secondDist) {
			queryIdx = append(queryIdx, qi)
			matchIdx = append(matchIdx, best)
		}
	}
	return queryIdx, matchIdx
}
