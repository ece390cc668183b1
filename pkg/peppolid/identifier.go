// Package peppolid provides the Peppol identifier value types shared by the
// SMP resolver, the SBD builder, and the AS2 client.
package peppolid

import "strings"

// Default identifier schemes, as used throughout Peppol service metadata.
const (
	DefaultParticipantScheme = "iso6523-actorid-upis"
	DefaultDocumentTypeScheme = "busdox-docid-qns"
	DefaultProcessScheme      = "cenbii-procid-ubl"
)

// Identifier is the common shape of a scheme-qualified Peppol identifier.
type Identifier interface {
	URIEncoded() string
	HasScheme(expected string) bool
}

// ParticipantID identifies a Peppol participant (sender or receiver).
type ParticipantID struct {
	Scheme string
	Value  string
}

// NewParticipantID builds a ParticipantID, defaulting the scheme when empty.
func NewParticipantID(scheme, value string) ParticipantID {
	if scheme == "" {
		scheme = DefaultParticipantScheme
	}
	return ParticipantID{Scheme: scheme, Value: value}
}

func (p ParticipantID) URIEncoded() string        { return p.Scheme + "::" + p.Value }
func (p ParticipantID) HasScheme(s string) bool    { return p.Scheme == s }
func (p ParticipantID) IsDefaultScheme() bool       { return p.Scheme == DefaultParticipantScheme }

// DocumentTypeID identifies the business document type being exchanged.
type DocumentTypeID struct {
	Scheme string
	Value  string
}

func NewDocumentTypeID(scheme, value string) DocumentTypeID {
	if scheme == "" {
		scheme = DefaultDocumentTypeScheme
	}
	return DocumentTypeID{Scheme: scheme, Value: value}
}

func (d DocumentTypeID) URIEncoded() string     { return d.Scheme + "::" + d.Value }
func (d DocumentTypeID) HasScheme(s string) bool { return d.Scheme == s }
func (d DocumentTypeID) IsDefaultScheme() bool    { return d.Scheme == DefaultDocumentTypeScheme }

// ProcessID identifies the business process the document participates in.
type ProcessID struct {
	Scheme string
	Value  string
}

func NewProcessID(scheme, value string) ProcessID {
	if scheme == "" {
		scheme = DefaultProcessScheme
	}
	return ProcessID{Scheme: scheme, Value: value}
}

func (p ProcessID) URIEncoded() string     { return p.Scheme + "::" + p.Value }
func (p ProcessID) HasScheme(s string) bool { return p.Scheme == s }
func (p ProcessID) IsDefaultScheme() bool    { return p.Scheme == DefaultProcessScheme }

// ParseURIEncoded splits a "scheme::value" string into its parts. Returns
// false if the separator is absent.
func ParseURIEncoded(s string) (scheme, value string, ok bool) {
	idx := strings.Index(s, "::")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+2:], true
}
