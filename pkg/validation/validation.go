// Package validation adapts an externally supplied rule-set engine into the
// send pipeline: spec.md §4.4. No concrete Peppol/UBL Schematron engine is
// implemented here — embedding applications register their own
// RuleSetExecutor under a rule-set identifier.
package validation

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// ErrUnknownRuleSet is returned when Validate is asked to run a rule-set id
// that was never registered.
var ErrUnknownRuleSet = errors.New("unknown validation rule-set")

// Severity classifies a single validation finding.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Result is a single finding produced by a RuleSetExecutor.
type Result struct {
	Severity Severity
	Message  string
}

// RuleSetExecutor runs one named validation rule-set against a payload
// element and returns its findings.
type RuleSetExecutor interface {
	Execute(payload *etree.Element) ([]Result, error)
}

// ResultHandler is notified once validation completes.
type ResultHandler interface {
	OnErrors(results []Result)
	OnSuccess(results []Result)
}

// NoopResultHandler implements ResultHandler with no side effects — the
// default: continue regardless of findings.
type NoopResultHandler struct{}

func (NoopResultHandler) OnErrors(results []Result)  {}
func (NoopResultHandler) OnSuccess(results []Result) {}

// RaisingResultHandler returns an error from Validate whenever any
// error-severity result is present.
type RaisingResultHandler struct{}

func (RaisingResultHandler) OnErrors(results []Result)  {}
func (RaisingResultHandler) OnSuccess(results []Result) {}

// Registry maps rule-set identifiers to the executor that implements them.
type Registry struct {
	executors map[string]RuleSetExecutor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]RuleSetExecutor)}
}

// Register binds id to executor, overwriting any previous binding.
func (r *Registry) Register(id string, executor RuleSetExecutor) {
	r.executors[id] = executor
}

// Validate runs the rule-set named by ruleSetID against payload per
// spec.md §4.4: unknown ids fail fast; otherwise the executor runs
// synchronously and handler is notified with the full result set.
func (r *Registry) Validate(ruleSetID string, payload *etree.Element, handler ResultHandler) ([]Result, error) {
	executor, ok := r.executors[ruleSetID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleSet, ruleSetID)
	}

	results, err := executor.Execute(payload)
	if err != nil {
		return nil, fmt.Errorf("executing rule-set %q: %w", ruleSetID, err)
	}

	if handler == nil {
		handler = NoopResultHandler{}
	}

	if hasError(results) {
		handler.OnErrors(results)
		if _, raises := handler.(RaisingResultHandler); raises {
			return results, fmt.Errorf("validation rule-set %q produced errors", ruleSetID)
		}
	} else {
		handler.OnSuccess(results)
	}

	return results, nil
}

func hasError(results []Result) bool {
	for _, r := range results {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}
