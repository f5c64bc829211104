package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/shipline/shipline/internal/shellexec"
)

// FakeRunner is a scriptable shellexec.Runner. Commands are keyed by their
// display form (the joined argv or the shell line); unscripted Run calls
// succeed, unscripted Output calls fail loudly so a test never silently
// depends on a missing stub.
type FakeRunner struct {
	mu          sync.Mutex
	runSpecs    []shellexec.Spec
	outputSpecs []shellexec.Spec
	runErrs     map[string][]error
	outputs     map[string]string
}

// NewFakeRunner creates an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		runErrs: make(map[string][]error),
		outputs: make(map[string]string),
	}
}

// StubOutput scripts the stdout of an Output call.
func (f *FakeRunner) StubOutput(display, out string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[display] = out
}

// StubRunErrors scripts the results of successive Run calls for one command.
// A nil entry means success. Once the script is exhausted the command
// succeeds.
func (f *FakeRunner) StubRunErrors(display string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runErrs[display] = append(f.runErrs[display], errs...)
}

// Run implements shellexec.Runner.
func (f *FakeRunner) Run(_ context.Context, spec shellexec.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runSpecs = append(f.runSpecs, spec)

	queue := f.runErrs[spec.Display()]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.runErrs[spec.Display()] = queue[1:]
	return err
}

// Output implements shellexec.Runner.
func (f *FakeRunner) Output(_ context.Context, spec shellexec.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputSpecs = append(f.outputSpecs, spec)

	out, ok := f.outputs[spec.Display()]
	if !ok {
		return "", fmt.Errorf("no stubbed output for command %q", spec.Display())
	}
	return out, nil
}

// RunSpecs returns every spec passed to Run, in order.
func (f *FakeRunner) RunSpecs() []shellexec.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shellexec.Spec{}, f.runSpecs...)
}

// OutputSpecs returns every spec passed to Output, in order.
func (f *FakeRunner) OutputSpecs() []shellexec.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shellexec.Spec{}, f.outputSpecs...)
}

// Commands returns the display form of every Run invocation, in order.
func (f *FakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.runSpecs))
	for _, s := range f.runSpecs {
		out = append(out, s.Display())
	}
	return out
}
