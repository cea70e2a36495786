// Package geo encodes map area locations as geohashes. Exports carry a
// precision-6 hash (cells of roughly 1.2 km x 0.6 km) and object keys use a
// coarser prefix so artifacts for nearby areas share a CDN path.
package geo

import "strings"

// Geohash base32 alphabet. It drops a, i, l and o.
const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

const (
	// DefaultPrecision is the hash length reported in export results.
	DefaultPrecision = 6

	// CellPrecision is the hash length used to group export artifacts under
	// a shared storage prefix. Four characters cover about 39 km x 19 km.
	CellPrecision = 4
)

// Encode returns the geohash of a coordinate at the given precision. A
// precision below 1 falls back to DefaultPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	out := make([]byte, 0, precision)
	var ch uint
	bit := 0
	evenBit := true

	for len(out) < precision {
		if evenBit {
			if mid := (minLng + maxLng) / 2; lng > mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			if mid := (minLat + maxLat) / 2; lat > mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		evenBit = !evenBit

		if bit++; bit == 5 {
			out = append(out, alphabet[ch])
			bit, ch = 0, 0
		}
	}

	return string(out)
}

// Valid reports whether s is a well-formed geohash.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}

// Truncate coarsens a geohash to the given precision. Truncation never moves
// a hash out of its containing cell, so a precision-4 truncation of a
// precision-6 hash names the cell the original sits in. Invalid input or a
// precision below 1 yields the empty string.
func Truncate(hash string, precision int) string {
	if precision < 1 || !Valid(hash) {
		return ""
	}
	lower := strings.ToLower(hash)
	if len(lower) <= precision {
		return lower
	}
	return lower[:precision]
}
