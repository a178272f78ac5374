package imaging

import (
	"image"

	"github.com/corona10/goimagehash"
)

// DefaultDuplicateThreshold is the maximum Hamming distance between two dHash values
// below which images are considered perceptually identical.
const DefaultDuplicateThreshold = 10

type seenImage struct {
	key  string
	hash *goimagehash.ImageHash
}

// DuplicateFilter remembers perceptual hashes of images seen so far.
// It is not safe for concurrent use.
type DuplicateFilter struct {
	threshold int
	seen      []seenImage
}

// NewDuplicateFilter creates a filter. threshold <= 0 selects DefaultDuplicateThreshold.
func NewDuplicateFilter(threshold int) *DuplicateFilter {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	return &DuplicateFilter{threshold: threshold}
}

// Check returns the key of an earlier image perceptually identical to img.
// Otherwise img is remembered under key and ("", false) is returned.
// If hashing fails the image is treated as unique.
func (f *DuplicateFilter) Check(key string, img image.Image) (string, bool) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", false
	}

	for _, s := range f.seen {
		dist, err := hash.Distance(s.hash)
		if err == nil && dist < f.threshold {
			return s.key, true
		}
	}

	f.seen = append(f.seen, seenImage{key: key, hash: hash})
	return "", false
}

// Len returns the number of distinct images remembered.
func (f *DuplicateFilter) Len() int { return len(f.seen) }
