package chi

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeImageDecodeFailed ErrorCode = "image_decode_failed"
	CodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	CodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	CodeSearchFailed      ErrorCode = "search_failed"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HitResponse is one nearest neighbor.
type HitResponse struct {
	ItemID     string  `json:"item_id"`
	SourcePath string  `json:"source_path,omitempty"`
	Relevance  float64 `json:"relevance"`
}

// DetectResponse is the body of POST /detect.
type DetectResponse struct {
	DocType    string        `json:"doc_type"`
	Category   string        `json:"category"`
	Confidence float64       `json:"confidence"`
	Message    string        `json:"message"`
	Hits       []HitResponse `json:"hits"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
