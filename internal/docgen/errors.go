package docgen

import "fmt"

// Kinds of best-effort failures.
const (
	KindImageFetch       = "image_fetch"
	KindImageDecode      = "image_decode"
	KindTableMalformed   = "table_malformed"
	KindContentsNotFound = "contents_heading_not_found"
	KindAboutNotFound    = "about_block_not_found"
)

// RecoverableError is a failure the pipeline skips past. Generation still
// completes; the error is reported alongside the result.
type RecoverableError struct {
	Stage   Stage
	Kind    string
	Subject string
	Err     error
}

func (e *RecoverableError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}
