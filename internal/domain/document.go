package domain

import (
	"crypto/sha1" //nolint:gosec // identifier only, not a security boundary
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ImageDocument is one embedded image as written to the index.
type ImageDocument struct {
	ID         string
	SourcePath string
	Embedding  []float32
}

// NewImageDocument builds a document keyed by the stable identifier of path.
func NewImageDocument(path string, embedding []float32) ImageDocument {
	return ImageDocument{
		ID:         StableID(path),
		SourcePath: path,
		Embedding:  embedding,
	}
}

// Hit is a single nearest-neighbor match returned by the index.
type Hit struct {
	ItemID     string
	SourcePath string
	Relevance  float64
}

// SearchRequest is a nearest-neighbor query against one document type.
type SearchRequest struct {
	DocType        string
	Tensor         string // serialized query vector, see TensorLiteral
	Hits           int
	TargetHits     int
	RankingProfile string
}

// Search defaults.
const (
	DefaultHits           = 3
	DefaultTargetHits     = 10
	DefaultRankingProfile = "closeness"
	DefaultDocType        = "forbidden"
)

var docTypeRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateDocType checks that name is a plain identifier.
// Document types are interpolated into YQL and URL paths.
func ValidateDocType(name string) error {
	if !docTypeRe.MatchString(name) {
		return fmt.Errorf("document type %q must match %s: %w", name, docTypeRe.String(), ErrInvalidArgument)
	}
	return nil
}

// StableID derives the document identifier from a file path: the hex SHA-1 of its bytes.
func StableID(path string) string {
	h := sha1.Sum([]byte(path)) //nolint:gosec // see import
	return hex.EncodeToString(h[:])
}

// TensorLiteral serializes v as a dense float tensor literal:
// tensor<float>(x[N]):[v0,v1,...] with seven digits after the decimal point.
func TensorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*11 + 32)
	b.WriteString("tensor<float>(x[")
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteString("]):[")
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', 7, 64))
	}
	b.WriteByte(']')
	return b.String()
}
