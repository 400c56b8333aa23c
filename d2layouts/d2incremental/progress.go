package d2incremental

// Progress receives one Step per completed iteration of a burst and Complete
// once the session converges.
type Progress interface {
	Step()
	Complete()
}

type noProgress struct{}

func (noProgress) Step()     {}
func (noProgress) Complete() {}

// ProgressFunc adapts a func to Progress. It is called with done == false
// after every iteration and with done == true on convergence.
type ProgressFunc func(done bool)

func (f ProgressFunc) Step() {
	f(false)
}

func (f ProgressFunc) Complete() {
	f(true)
}
