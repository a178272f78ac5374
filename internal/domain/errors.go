package domain

import "errors"

var (
	// ErrNotFound signals a missing resource (file, folder).
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals a malformed request or flag combination.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrImageDecode signals that an image could not be read or decoded.
	ErrImageDecode = errors.New("image decode failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUpsertFailed signals that the document store rejected or did not acknowledge a write.
	ErrUpsertFailed = errors.New("upsert failed")
	// ErrSearchFailed signals a failed nearest-neighbor query.
	ErrSearchFailed = errors.New("search failed")
)
