package gamelan

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// recordingInterceptor appends "name:Hook" entries to a shared log and can
// be told to fail at one hook.
type recordingInterceptor struct {
	NopInterceptor
	name   string
	log    *[]string
	failAt string
}

func (r *recordingInterceptor) hook(hook string) error {
	*r.log = append(*r.log, r.name+":"+hook)
	if r.failAt == hook {
		return fmt.Errorf("%s failed in %s", r.name, hook)
	}
	return nil
}

func (r *recordingInterceptor) BeforeExecution(context.Context, *HookContext) error {
	return r.hook("BeforeExecution")
}
func (r *recordingInterceptor) BeforeSerialization(context.Context, *HookContext) error {
	return r.hook("BeforeSerialization")
}
func (r *recordingInterceptor) BeforeTransmit(context.Context, *HookContext) error {
	return r.hook("BeforeTransmit")
}
func (r *recordingInterceptor) BeforeDeserialization(context.Context, *HookContext) error {
	return r.hook("BeforeDeserialization")
}
func (r *recordingInterceptor) AfterDeserialization(context.Context, *HookContext) error {
	return r.hook("AfterDeserialization")
}
func (r *recordingInterceptor) OnSuccess(context.Context, *HookContext) error {
	return r.hook("OnSuccess")
}
func (r *recordingInterceptor) OnError(context.Context, *HookContext) {
	_ = r.hook("OnError")
}

func TestBeforeHooksRunInRegistrationOrder(t *testing.T) {
	var log []string
	registry := &interceptorRegistry{interceptors: []Interceptor{
		&recordingInterceptor{name: "a", log: &log},
		&recordingInterceptor{name: "b", log: &log},
		&recordingInterceptor{name: "c", log: &log},
	}}

	var scope hookScope
	hc := &HookContext{}
	if err := registry.beforeTransmit(context.Background(), hc, &scope); err != nil {
		t.Fatalf("beforeTransmit failed: %v", err)
	}

	want := []string{"a:BeforeTransmit", "b:BeforeTransmit", "c:BeforeTransmit"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected before hooks in registration order %v, got %v", want, log)
	}
}

func TestErrorHooksRunInReverseOrder(t *testing.T) {
	var log []string
	registry := &interceptorRegistry{interceptors: []Interceptor{
		&recordingInterceptor{name: "a", log: &log},
		&recordingInterceptor{name: "b", log: &log},
		&recordingInterceptor{name: "c", log: &log},
	}}

	var scope hookScope
	hc := &HookContext{}
	if err := registry.beforeTransmit(context.Background(), hc, &scope); err != nil {
		t.Fatalf("beforeTransmit failed: %v", err)
	}
	log = log[:0]
	registry.onError(context.Background(), hc, &scope)

	want := []string{"c:OnError", "b:OnError", "a:OnError"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected error hooks in reverse order %v, got %v", want, log)
	}
}

func TestFailingBeforeHookAbortsRemainingHooks(t *testing.T) {
	var log []string
	registry := &interceptorRegistry{interceptors: []Interceptor{
		&recordingInterceptor{name: "a", log: &log},
		&recordingInterceptor{name: "b", log: &log, failAt: "BeforeTransmit"},
		&recordingInterceptor{name: "c", log: &log},
	}}

	var scope hookScope
	hc := &HookContext{}
	err := registry.beforeTransmit(context.Background(), hc, &scope)
	if err == nil {
		t.Fatal("Expected the failing hook's error")
	}

	want := []string{"a:BeforeTransmit", "b:BeforeTransmit"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected c to be skipped after b failed, got %v", log)
	}

	// Only the interceptors that entered get their error hook — including
	// the one that failed.
	log = log[:0]
	registry.onError(context.Background(), hc, &scope)
	want = []string{"b:OnError", "a:OnError"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected error hooks for entered interceptors only, got %v", log)
	}
}

func TestHookScopeResetsPerAttempt(t *testing.T) {
	var log []string
	registry := &interceptorRegistry{interceptors: []Interceptor{
		&recordingInterceptor{name: "a", log: &log},
		&recordingInterceptor{name: "b", log: &log},
	}}

	var scope hookScope
	hc := &HookContext{}

	// Execution-scope hooks persist across attempts.
	if err := registry.beforeExecution(context.Background(), hc, &scope); err != nil {
		t.Fatalf("beforeExecution failed: %v", err)
	}

	// First attempt enters both, then the attempt scope resets.
	if err := registry.beforeTransmit(context.Background(), hc, &scope); err != nil {
		t.Fatalf("beforeTransmit failed: %v", err)
	}
	scope.resetAttempt()

	// Second attempt: only "a" enters before the failure.
	scope.enterAttempt(0)

	log = log[:0]
	registry.onError(context.Background(), hc, &scope)
	want := []string{"b:OnError", "a:OnError"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected execution-scope interceptors retained across attempts, got %v", log)
	}
}

func TestOnSuccessReverseOrder(t *testing.T) {
	var log []string
	registry := &interceptorRegistry{interceptors: []Interceptor{
		&recordingInterceptor{name: "a", log: &log},
		&recordingInterceptor{name: "b", log: &log},
	}}

	var scope hookScope
	hc := &HookContext{}
	if err := registry.beforeDeserialization(context.Background(), hc, &scope); err != nil {
		t.Fatalf("beforeDeserialization failed: %v", err)
	}
	log = log[:0]
	if err := registry.onSuccess(context.Background(), hc, &scope); err != nil {
		t.Fatalf("onSuccess failed: %v", err)
	}

	want := []string{"b:OnSuccess", "a:OnSuccess"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Expected success hooks in reverse order %v, got %v", want, log)
	}
}

func TestNopInterceptorImplementsEveryHook(t *testing.T) {
	var it Interceptor = NopInterceptor{}
	hc := &HookContext{}
	ctx := context.Background()

	hooks := []func() error{
		func() error { return it.BeforeExecution(ctx, hc) },
		func() error { return it.BeforeSerialization(ctx, hc) },
		func() error { return it.BeforeTransmit(ctx, hc) },
		func() error { return it.BeforeDeserialization(ctx, hc) },
		func() error { return it.AfterDeserialization(ctx, hc) },
		func() error { return it.OnSuccess(ctx, hc) },
	}
	for i, hook := range hooks {
		if err := hook(); err != nil {
			t.Errorf("Expected no-op hook %d to return nil, got %v", i, err)
		}
	}
	it.OnError(ctx, hc)
}

func TestEnteredDeduplicates(t *testing.T) {
	var scope hookScope
	scope.enterExecution(0)
	scope.enterExecution(0)
	scope.enterAttempt(0)
	scope.enterAttempt(1)
	scope.enterAttempt(1)

	if got := scope.entered(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Expected deduplicated registration order [0 1], got %v", got)
	}
}

func TestHookFailureErrorIsWrapped(t *testing.T) {
	hookErr := errors.New("audit hook rejected request")
	wrapped := &OperationError{
		Type:    ErrorTypeInterceptor,
		Phase:   PhaseTransmit,
		Message: "before-transmit hook failed",
		Cause:   hookErr,
	}
	if !errors.Is(wrapped, hookErr) {
		t.Error("Expected the hook's error to stay reachable through the wrapper")
	}
}
