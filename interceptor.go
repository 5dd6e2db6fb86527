package gamelan

import "context"

// HookContext is the mutable view of an in-progress invocation handed to
// interceptor hooks. Fields are populated as phases complete: Request after
// serialization, Response after transmit, Output or Err at the end.
type HookContext struct {
	Operation    string
	InvocationID string
	Attempt      int
	Config       *View
	Input        any
	Request      *Request
	Response     *Response
	Output       any
	Err          error
}

// Interceptor observes and mutates an invocation at fixed points of the
// orchestrator state machine. Embed NopInterceptor and override only the
// hooks of interest.
//
// "Before" hooks run in registration order; OnSuccess and OnError run in
// reverse registration order over exactly the interceptors that entered the
// attempt, once per attempt, mirroring nested-scope release. A hook error
// aborts the remaining hooks of its phase and becomes the attempt's
// terminal error.
type Interceptor interface {
	BeforeExecution(ctx context.Context, hc *HookContext) error
	BeforeSerialization(ctx context.Context, hc *HookContext) error
	BeforeTransmit(ctx context.Context, hc *HookContext) error
	BeforeDeserialization(ctx context.Context, hc *HookContext) error
	AfterDeserialization(ctx context.Context, hc *HookContext) error
	OnSuccess(ctx context.Context, hc *HookContext) error
	OnError(ctx context.Context, hc *HookContext)
}

// NopInterceptor implements every hook as a no-op, for embedding.
type NopInterceptor struct{}

func (NopInterceptor) BeforeExecution(context.Context, *HookContext) error       { return nil }
func (NopInterceptor) BeforeSerialization(context.Context, *HookContext) error   { return nil }
func (NopInterceptor) BeforeTransmit(context.Context, *HookContext) error        { return nil }
func (NopInterceptor) BeforeDeserialization(context.Context, *HookContext) error { return nil }
func (NopInterceptor) AfterDeserialization(context.Context, *HookContext) error  { return nil }
func (NopInterceptor) OnSuccess(context.Context, *HookContext) error             { return nil }
func (NopInterceptor) OnError(context.Context, *HookContext)                     {}

// hookScope tracks which interceptors entered the current attempt so their
// paired after/error hooks fire exactly once, in reverse registration
// order, even when a later phase fails.
type hookScope struct {
	execution []int // entered before the attempt loop (execution scope)
	attempt   []int // entered during the current attempt
}

func (s *hookScope) enterExecution(i int) {
	s.execution = appendEntered(s.execution, i)
}

func (s *hookScope) enterAttempt(i int) {
	s.attempt = appendEntered(s.attempt, i)
}

func (s *hookScope) resetAttempt() {
	s.attempt = s.attempt[:0]
}

// entered returns the union of execution- and attempt-scope entries in
// registration order.
func (s *hookScope) entered() []int {
	out := make([]int, 0, len(s.execution)+len(s.attempt))
	out = append(out, s.execution...)
	for _, i := range s.attempt {
		out = appendEntered(out, i)
	}
	return out
}

func appendEntered(list []int, i int) []int {
	for _, have := range list {
		if have == i {
			return list
		}
	}
	// Registration order is ascending by construction.
	return append(list, i)
}

// interceptorRegistry dispatches hooks across an ordered interceptor list.
type interceptorRegistry struct {
	interceptors []Interceptor
}

type beforeHook func(Interceptor, context.Context, *HookContext) error

func (r *interceptorRegistry) runBefore(ctx context.Context, hc *HookContext, scope *hookScope, executionScope bool, hook beforeHook) error {
	for i, it := range r.interceptors {
		if executionScope {
			scope.enterExecution(i)
		} else {
			scope.enterAttempt(i)
		}
		if err := hook(it, ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

func (r *interceptorRegistry) beforeExecution(ctx context.Context, hc *HookContext, scope *hookScope) error {
	return r.runBefore(ctx, hc, scope, true, func(it Interceptor, ctx context.Context, hc *HookContext) error {
		return it.BeforeExecution(ctx, hc)
	})
}

func (r *interceptorRegistry) beforeSerialization(ctx context.Context, hc *HookContext, scope *hookScope) error {
	return r.runBefore(ctx, hc, scope, true, func(it Interceptor, ctx context.Context, hc *HookContext) error {
		return it.BeforeSerialization(ctx, hc)
	})
}

func (r *interceptorRegistry) beforeTransmit(ctx context.Context, hc *HookContext, scope *hookScope) error {
	return r.runBefore(ctx, hc, scope, false, func(it Interceptor, ctx context.Context, hc *HookContext) error {
		return it.BeforeTransmit(ctx, hc)
	})
}

func (r *interceptorRegistry) beforeDeserialization(ctx context.Context, hc *HookContext, scope *hookScope) error {
	return r.runBefore(ctx, hc, scope, false, func(it Interceptor, ctx context.Context, hc *HookContext) error {
		return it.BeforeDeserialization(ctx, hc)
	})
}

// afterDeserialization fires in reverse order over the interceptors that
// entered the attempt; the first failure aborts the rest.
func (r *interceptorRegistry) afterDeserialization(ctx context.Context, hc *HookContext, scope *hookScope) error {
	entered := scope.entered()
	for i := len(entered) - 1; i >= 0; i-- {
		if err := r.interceptors[entered[i]].AfterDeserialization(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// onSuccess fires in reverse order; a failing hook turns the completed
// result into the run's terminal error but the remaining hooks still see
// OnError through the caller.
func (r *interceptorRegistry) onSuccess(ctx context.Context, hc *HookContext, scope *hookScope) error {
	entered := scope.entered()
	for i := len(entered) - 1; i >= 0; i-- {
		if err := r.interceptors[entered[i]].OnSuccess(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// onError fires in reverse order for every interceptor that entered the
// attempt. OnError cannot fail; it is the cleanup edge of the pairing.
func (r *interceptorRegistry) onError(ctx context.Context, hc *HookContext, scope *hookScope) {
	entered := scope.entered()
	for i := len(entered) - 1; i >= 0; i-- {
		r.interceptors[entered[i]].OnError(ctx, hc)
	}
}
