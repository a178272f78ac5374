package domain

// KeyPrefix namespaces every key this service writes to the cache store.
const KeyPrefix = "imgdetect:"

// DefaultNamespace is the document namespace used for every feed and query.
const DefaultNamespace = "vinted"

// VectorConfig holds vectorization settings of the image model.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
}

// DefaultVectorConfig returns the configuration tuned for SigLIP 2 base (patch16, 512px).
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "google/siglip2-base-patch16-512",
		Dimensions:     EmbeddingDimensions,
		DistanceMetric: "angular",
	}
}
