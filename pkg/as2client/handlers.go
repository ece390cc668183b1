package as2client

import (
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/phax/as2-peppol-client/pkg/security"
)

// MessageHandler centralizes warnings/errors raised during verification:
// spec.md §4.8.
type MessageHandler interface {
	Warn(msg string, cause error)
	Error(msg string, cause error)
	ErrorCount() int
}

// issue is one recorded warning or error.
type issue struct {
	Message string
	Cause   error
}

// DefaultMessageHandler accumulates warnings and errors without raising.
type DefaultMessageHandler struct {
	mu       sync.Mutex
	warnings []issue
	errors   []issue
}

// NewDefaultMessageHandler builds an empty accumulating handler.
func NewDefaultMessageHandler() *DefaultMessageHandler {
	return &DefaultMessageHandler{}
}

func (h *DefaultMessageHandler) Warn(msg string, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings = append(h.warnings, issue{Message: msg, Cause: cause})
}

func (h *DefaultMessageHandler) Error(msg string, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, issue{Message: msg, Cause: cause})
}

func (h *DefaultMessageHandler) ErrorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errors)
}

// Warnings returns a snapshot of the recorded warnings.
func (h *DefaultMessageHandler) Warnings() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.warnings))
	for i, w := range h.warnings {
		out[i] = w.Message
	}
	return out
}

// Errors returns a snapshot of the recorded errors.
func (h *DefaultMessageHandler) Errors() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.errors))
	for i, e := range h.errors {
		out[i] = e.Message
	}
	return out
}

// RaisingMessageHandler records errors exactly as DefaultMessageHandler does;
// it does not interrupt verification at the first error. SendSynchronous
// fails once verification ends with a non-zero ErrorCount.
type RaisingMessageHandler struct {
	DefaultMessageHandler
}

func (h *RaisingMessageHandler) Error(msg string, cause error) {
	h.DefaultMessageHandler.Error(msg, cause)
}

// CertificateCheckResultHandler is notified with the outcome of the
// receiver AP certificate check: spec.md §4.8.
type CertificateCheckResultHandler interface {
	OnResult(cert *x509.Certificate, checkedAt time.Time, outcome security.CheckResult) error
}

// StrictRejectHandler is the default: any non-Valid outcome fails the send.
type StrictRejectHandler struct{}

func (StrictRejectHandler) OnResult(cert *x509.Certificate, checkedAt time.Time, outcome security.CheckResult) error {
	if outcome.Outcome != security.Valid {
		return fmt.Errorf("%w: %s (%s)", ErrCertificateInvalid, outcome.Outcome, outcome.Reason)
	}
	return nil
}

// PermissiveWarnHandler logs a warning on a non-Valid outcome but lets the
// send proceed.
type PermissiveWarnHandler struct {
	Handler MessageHandler
}

func (h PermissiveWarnHandler) OnResult(cert *x509.Certificate, checkedAt time.Time, outcome security.CheckResult) error {
	if outcome.Outcome != security.Valid && h.Handler != nil {
		h.Handler.Warn(fmt.Sprintf("certificate check: %s (%s)", outcome.Outcome, outcome.Reason), nil)
	}
	return nil
}
