package panicerr

import (
	"github.com/sourcegraph/conc/panics"
)

// Call runs fn and converts a panic into an error. A regular error returned
// by fn takes precedence.
func Call(fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if err != nil {
		return err
	}
	return catcher.Recovered().AsError()
}
