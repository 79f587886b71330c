package pipeline

import (
	"errors"
	"log/slog"

	"vulndash/internal/normalizer"
)

// Level is how prominently a failure is shown.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

func (l Level) slogLevel() slog.Level {
	if l == LevelWarning {
		return slog.LevelWarn
	}

	return slog.LevelError
}

// Failure kinds.
const (
	KindEmptyInput     = "empty_input"
	KindNoValidEntries = "no_valid_entries"
	KindConversion     = "conversion"
	KindMissingColumns = "missing_columns"
	KindMalformedJSON  = "malformed_json"
	KindInternal       = "internal"
)

// Failure is the user-facing form of a pipeline error.
type Failure struct {
	Kind    string `json:"kind"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Describe maps err onto a banner. Conversion failures carry the underlying reason.
func Describe(err error) Failure {
	switch {
	case errors.Is(err, normalizer.ErrEmptyInput):
		return Failure{Kind: KindEmptyInput, Level: LevelWarning, Message: "Uploaded file is empty."}
	case errors.Is(err, normalizer.ErrNoValidEntries):
		return Failure{Kind: KindNoValidEntries, Level: LevelError, Message: "No valid vulnerabilities found in the file."}
	case errors.Is(err, normalizer.ErrMissingColumns):
		return Failure{Kind: KindMissingColumns, Level: LevelError, Message: "Missing required columns in the uploaded file."}
	case errors.Is(err, normalizer.ErrConversion):
		return Failure{Kind: KindConversion, Level: LevelError, Message: "Error processing file: " + err.Error()}
	case errors.Is(err, ErrMalformedJSON):
		return Failure{Kind: KindMalformedJSON, Level: LevelError, Message: "Uploaded file is not valid JSON: " + err.Error()}
	default:
		return Failure{Kind: KindInternal, Level: LevelError, Message: "Unexpected error: " + err.Error()}
	}
}
