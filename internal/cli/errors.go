package cli

import (
	"errors"
	"fmt"
)

var errMissingBaseURL = errors.New("no base URL: pass --base-url, set SCRIPTVIEW_BASE_URL, or run `scriptview config set baseUrl <url>`")

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type scriptFailedError struct {
	path string
	code int
}

func (e scriptFailedError) Error() string {
	return fmt.Sprintf("script failed: %s exited with status %d", e.path, e.code)
}
