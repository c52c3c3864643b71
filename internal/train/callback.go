package train

import "fmt"

// Callback observes the run every K iterations.
type Callback interface {
	OnIteration(s State) error
}

type CallbackFunc func(s State) error

func (f CallbackFunc) OnIteration(s State) error { return f(s) }

// safeCall runs cb and turns a returned error or a panic into an error.
func safeCall(cb Callback, s State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cb.OnIteration(s)
}
