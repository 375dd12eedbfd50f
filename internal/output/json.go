package output

import (
	"encoding/json"
	"io"
)

// ErrorCode classifies a failed command for scripts driving the exporter.
type ErrorCode string

const (
	ErrGeneral ErrorCode = "GENERAL_ERROR"
	// ErrNotFound means a project or repository does not exist on the server.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrValidation covers bad flags, config, targets and archives.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrArchive means the staging store or archive could not be written.
	// The run stopped and the archive is incomplete.
	ErrArchive ErrorCode = "ARCHIVE_ERROR"
	// ErrUpstream classifies failures talking to Bitbucket Server or git.
	ErrUpstream ErrorCode = "UPSTREAM_ERROR"
)

const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitNotFound   = 2
	ExitValidation = 3
	ExitArchive    = 4
	ExitUpstream   = 5
)

var exitCodes = map[ErrorCode]int{
	ErrNotFound:   ExitNotFound,
	ErrValidation: ExitValidation,
	ErrArchive:    ExitArchive,
	ErrUpstream:   ExitUpstream,
}

// ExitCodeForError returns the process exit code for code. Unknown codes
// exit with ExitGeneral.
func ExitCodeForError(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitGeneral
}

type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// encode writes v as one line. Archive paths and URLs are written without
// HTML escaping so "&" in a query string survives.
func encode(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeJSONSuccess(w io.Writer, data any, message string) {
	encode(w, successEnvelope{OK: true, Data: data, Message: message})
}

func writeJSONError(w io.Writer, err error, code ErrorCode) {
	encode(w, errorEnvelope{Error: err.Error(), Code: code})
}
