package replyx

// Callback is the transport side of a single in-flight request. Exactly one
// of its methods is invoked, and only ever from the goroutine owned by the
// Dispatcher that the Replier was built with.
type Callback interface {
	Success(value any)
	Error(code string, message *string, details any)
	NotImplemented()
}

// CallbackFuncs adapts plain functions to a Callback. Nil fields are skipped.
type CallbackFuncs struct {
	OnSuccess        func(value any)
	OnError          func(code string, message *string, details any)
	OnNotImplemented func()
}

var _ Callback = CallbackFuncs{}

func (f CallbackFuncs) Success(value any) {
	if f.OnSuccess != nil {
		f.OnSuccess(value)
	}
}

func (f CallbackFuncs) Error(code string, message *string, details any) {
	if f.OnError != nil {
		f.OnError(code, message, details)
	}
}

func (f CallbackFuncs) NotImplemented() {
	if f.OnNotImplemented != nil {
		f.OnNotImplemented()
	}
}
