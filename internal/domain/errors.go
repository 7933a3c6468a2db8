package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is returned for invalid settings such as chunk sizes.
	ErrConfiguration = errors.New("configuration error")

	// ErrDocumentLoad is returned when the input is unreadable or not a PDF.
	ErrDocumentLoad = errors.New("document load failed")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrRetrieval is returned when the vector store is unreachable or corrupt.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration is returned when no answer provider produced an answer.
	ErrGeneration = errors.New("generation failed")
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageConfig   Stage = "config"
	StageLoad     Stage = "load"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageStore    Stage = "store"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
	StageReport   Stage = "report"
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with the stage it happened in. Errors that already carry
// a stage keep their original one.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// NewConfigurationError formats an ErrConfiguration.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// EmbeddingFailure is returned once retries for a chunk are exhausted.
// ChunkIndex is -1 when the failing text was a query.
type EmbeddingFailure struct {
	ChunkIndex int
	Attempts   int
	Err        error
}

func (e *EmbeddingFailure) Error() string {
	target := fmt.Sprintf("chunk %d", e.ChunkIndex)
	if e.ChunkIndex < 0 {
		target = "query"
	}
	return fmt.Sprintf("%v: %s after %d attempt(s): %v", ErrEmbedding, target, e.Attempts, e.Err)
}

func (e *EmbeddingFailure) Unwrap() error { return e.Err }

func (e *EmbeddingFailure) Is(target error) bool { return target == ErrEmbedding }

// GenerationFailure is returned when every configured provider failed.
type GenerationFailure struct {
	Providers []string
	Err       error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("%v: tried %s: %v", ErrGeneration, strings.Join(e.Providers, ", "), e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

func (e *GenerationFailure) Is(target error) bool { return target == ErrGeneration }
