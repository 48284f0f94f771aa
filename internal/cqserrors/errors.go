package cqserrors

import "fmt"

// CQSError is the structured error type used throughout cqs. Every
// user-visible failure carries the failing operation, an optional
// project-relative path, and a one-line remedy, per SPEC_FULL.md §7.
type CQSError struct {
	Code       string
	Message    string
	Kind       Kind
	Severity   Severity
	Operation  string // the logical operation that failed
	Path       string // project-relative path, if relevant
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *CQSError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", e.Code, e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Operation, e.Message)
}

func (e *CQSError) Unwrap() error { return e.Cause }

func (e *CQSError) Is(target error) bool {
	t, ok := target.(*CQSError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *CQSError) WithDetail(key, value string) *CQSError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *CQSError) WithSuggestion(s string) *CQSError {
	e.Suggestion = s
	return e
}

func (e *CQSError) WithPath(path string) *CQSError {
	e.Path = path
	return e
}

// New creates a CQSError for the given operation, deriving kind/severity/
// retryable from the code.
func New(code, operation, message string, cause error) *CQSError {
	return &CQSError{
		Code:      code,
		Message:   message,
		Kind:      kindFromCode(code),
		Severity:  severityFromCode(code),
		Operation: operation,
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

func Wrap(code, operation string, err error) *CQSError {
	if err == nil {
		return nil
	}
	return New(code, operation, err.Error(), err)
}

func NotFound(operation, message string) *CQSError {
	return New(ErrCodeNotFound, operation, message, nil).WithSuggestion("verify the name or path and retry")
}

func SchemaMismatch(operation, message string, stale bool) *CQSError {
	code := ErrCodeSchemaNewer
	suggestion := "upgrade cqs to a version that understands this index"
	if stale {
		code = ErrCodeSchemaStale
		suggestion = "remove the index directory and run `cqs index` to rebuild it"
	}
	return New(code, operation, message, nil).WithSuggestion(suggestion)
}

func ModelMismatch(operation, message string, dimension bool) *CQSError {
	code := ErrCodeModelNameMismatch
	if dimension {
		code = ErrCodeModelDimMismatch
	}
	return New(code, operation, message, nil).WithSuggestion("reindex required: the embedding model changed")
}

func ParseFailure(operation, path string, cause error) *CQSError {
	return Wrap(ErrCodeParseNoRoot, operation, cause).WithPath(path)
}

func EmbedFailure(operation string, cause error) *CQSError {
	return Wrap(ErrCodeEmbedInference, operation, cause)
}

func IOError(operation, path string, cause error) *CQSError {
	return Wrap(ErrCodeIOGeneric, operation, cause).WithPath(path)
}

func Checksum(operation, path string) *CQSError {
	return New(ErrCodeChecksumMismatch, operation, "checksum mismatch", nil).
		WithPath(path).
		WithSuggestion("the vector index may be corrupted; rebuild it")
}

func Timeout(operation string, cause error) *CQSError {
	return Wrap(ErrCodeTimeout, operation, cause)
}

func Internal(operation, message string) *CQSError {
	return New(ErrCodeInternal, operation, message, nil)
}

func IsRetryable(err error) bool {
	ce, ok := err.(*CQSError)
	return ok && ce.Retryable
}

func IsFatal(err error) bool {
	ce, ok := err.(*CQSError)
	return ok && ce.Severity == SeverityFatal
}

func KindOf(err error) Kind {
	if ce, ok := err.(*CQSError); ok {
		return ce.Kind
	}
	return ""
}
