package validation

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	results []Result
	err     error
}

func (s stubExecutor) Execute(payload *etree.Element) ([]Result, error) {
	return s.results, s.err
}

type recordingHandler struct {
	errorsCalls  int
	successCalls int
	lastResults  []Result
}

func (h *recordingHandler) OnErrors(results []Result) {
	h.errorsCalls++
	h.lastResults = results
}

func (h *recordingHandler) OnSuccess(results []Result) {
	h.successCalls++
	h.lastResults = results
}

func TestValidate_UnknownRuleSet(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Validate("does-not-exist", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownRuleSet)
}

func TestValidate_SuccessInvokesOnSuccess(t *testing.T) {
	registry := NewRegistry()
	registry.Register("clean", stubExecutor{results: []Result{{Severity: SeverityWarning, Message: "minor"}}})

	handler := &recordingHandler{}
	results, err := registry.Validate("clean", nil, handler)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, handler.successCalls)
	assert.Equal(t, 0, handler.errorsCalls)
}

func TestValidate_ErrorsInvokeOnErrorsButDoNotFailByDefault(t *testing.T) {
	registry := NewRegistry()
	registry.Register("broken", stubExecutor{results: []Result{
		{Severity: SeverityError, Message: "bad line item"},
		{Severity: SeverityError, Message: "bad total"},
	}})

	handler := &recordingHandler{}
	_, err := registry.Validate("broken", nil, handler)
	require.NoError(t, err)
	assert.Equal(t, 1, handler.errorsCalls)
}

func TestValidate_NilHandlerDefaultsToNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Register("clean", stubExecutor{results: nil})

	_, err := registry.Validate("clean", nil, nil)
	assert.NoError(t, err)
}

func TestValidate_ExecutorErrorPropagates(t *testing.T) {
	registry := NewRegistry()
	registry.Register("broken", stubExecutor{err: assert.AnError})

	_, err := registry.Validate("broken", nil, nil)
	assert.Error(t, err)
}
