package pipeline

import (
	"errors"
	"fmt"
)

// Stage names reported on pipeline errors.
const (
	StageValidate = "validate"
	StageRedact   = "redact"
	StageEncrypt  = "encrypt"
	StageStore    = "store"
	StageEmbed    = "embed"
	StageIndex    = "index"
	StageSearch   = "search"
	StageFetch    = "fetch"
	StageAnswer   = "answer"
)

// Sentinel errors.
var (
	// ErrInvalidInput indicates a request with missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable indicates an upstream model call (embedding or
	// answer synthesis) failed.
	ErrModelUnavailable = errors.New("model unavailable")

	// errBadRecordMetadata indicates a single index record carries missing
	// or undecodable crypto metadata. It condemns that record only.
	errBadRecordMetadata = errors.New("bad record metadata")
)

// IngestError is an ingest failure annotated with the stage that failed.
// Stages already completed are not rolled back.
type IngestError struct {
	Stage string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// QueryError is a query failure annotated with the stage that failed.
type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
