// Package artifact accesses the HTML visualizations a session has generated.
//
// The backend stores each session's generated files in a per-session output
// folder and serves them at {base}/user_output/{folder}/{file}. This package
// validates artifact coordinates, fetches the HTML through the public client
// and reduces it to readable text for the terminal UI. The browser frontend
// embeds these files in an iframe; a terminal gets the extracted content
// instead.
package artifact

import "errors"

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned when a filename or output folder contains
	// invalid characters or fails security validation.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Artifact identifies one generated HTML file. SessionID records which
// session the file was selected for; selection state belongs to the chat
// manager, this is just the coordinate triple.
type Artifact struct {
	SessionID    string
	Filename     string
	OutputFolder string
}

// ValidateName checks that a filename or folder segment is safe to place in
// a URL path.
//
// Validation rules:
//   - Must not be empty
//   - Must not exceed 255 characters
//   - Must not contain path separators (/, \)
//   - Must not contain null bytes
//   - Must not be "." or ".." (path traversal)
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > 255 {
		return ErrInvalidName
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrInvalidName
		}
	}
	if name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}

// Validate checks both coordinates of the artifact.
func (a Artifact) Validate() error {
	if err := ValidateName(a.Filename); err != nil {
		return err
	}
	return ValidateName(a.OutputFolder)
}

// Path returns the server path the artifact is served under.
func (a Artifact) Path() string {
	return "/user_output/" + a.OutputFolder + "/" + a.Filename
}
