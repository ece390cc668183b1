package peppolid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParticipantID_DefaultsScheme(t *testing.T) {
	p := NewParticipantID("", "9915:test")
	assert.Equal(t, DefaultParticipantScheme, p.Scheme)
	assert.True(t, p.IsDefaultScheme())
	assert.Equal(t, "iso6523-actorid-upis::9915:test", p.URIEncoded())
}

func TestNewParticipantID_KeepsExplicitScheme(t *testing.T) {
	p := NewParticipantID("custom-scheme", "9915:test")
	assert.Equal(t, "custom-scheme", p.Scheme)
	assert.False(t, p.IsDefaultScheme())
	assert.True(t, p.HasScheme("custom-scheme"))
}

func TestNewDocumentTypeID_DefaultsScheme(t *testing.T) {
	d := NewDocumentTypeID("", "Invoice")
	assert.Equal(t, DefaultDocumentTypeScheme, d.Scheme)
	assert.Equal(t, "busdox-docid-qns::Invoice", d.URIEncoded())
}

func TestNewProcessID_DefaultsScheme(t *testing.T) {
	p := NewProcessID("", "urn:process1")
	assert.Equal(t, DefaultProcessScheme, p.Scheme)
	assert.Equal(t, "cenbii-procid-ubl::urn:process1", p.URIEncoded())
}

func TestParseURIEncoded(t *testing.T) {
	scheme, value, ok := ParseURIEncoded("iso6523-actorid-upis::9915:test")
	assert.True(t, ok)
	assert.Equal(t, "iso6523-actorid-upis", scheme)
	assert.Equal(t, "9915:test", value)
}

func TestParseURIEncoded_MissingSeparator(t *testing.T) {
	_, _, ok := ParseURIEncoded("no-separator-here")
	assert.False(t, ok)
}

func TestParticipantID_ImplementsIdentifier(t *testing.T) {
	var _ Identifier = NewParticipantID("", "9915:test")
	var _ Identifier = NewDocumentTypeID("", "Invoice")
	var _ Identifier = NewProcessID("", "urn:process1")
}
