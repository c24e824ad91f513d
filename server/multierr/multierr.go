package multierr

import (
	e "errors"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// MultiErr collects errors from independent operations, such as the
// per-member writes of a broadcast, so that a single failure does not
// abort the rest.
type MultiErr struct {
	first error
	errs  []error
}

func New() *MultiErr {
	return &MultiErr{}
}

// Add does nothing when err is nil.
func (m *MultiErr) Add(err error) {
	if err == nil {
		return
	}

	if m.first == nil {
		m.first = err
	}

	m.errs = append(m.errs, err)
}

// Err returns nil when no errors occurred, the error itself when exactly
// one occurred, and a combined error listing all stack traces otherwise.
func (m *MultiErr) Err() error {
	if len(m.errs) <= 1 {
		return m.first
	}

	var sb strings.Builder

	for i, err := range m.errs {
		sb.WriteString(fmt.Sprintf("%d. ", i+1))
		sb.WriteString(errors.ErrorStack(err))

		if i < len(m.errs)-1 {
			sb.WriteString("\n")
		}
	}

	return errors.Errorf("There were multiple errors:\n%s", sb.String())
}

// Is unwraps the juju error cause before comparing against target.
func Is(err, target error) bool {
	return e.Is(errors.Cause(err), target)
}
