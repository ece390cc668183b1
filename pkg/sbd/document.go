// Package sbd builds and serializes Standard Business Documents: the
// UN/CEFACT envelope that carries Peppol routing metadata around a business
// payload element.
package sbd

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/phax/as2-peppol-client/pkg/peppolid"
)

// SBDHNamespaceURI is the Standard Business Document Header namespace.
const SBDHNamespaceURI = "http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader"

// DefaultUBLVersion is applied when the caller does not specify one.
const DefaultUBLVersion = "2.1"

// Document is the in-memory SBD: header metadata plus the untouched business
// payload element.
type Document struct {
	Sender             peppolid.ParticipantID
	Receiver           peppolid.ParticipantID
	DocumentType       peppolid.DocumentTypeID
	Process            peppolid.ProcessID
	InstanceIdentifier string
	UBLVersion         string
	CreationDateTime   time.Time
	BusinessMessage    *etree.Element
}

// Build assembles an SBD around payload per spec.md §4.3. instanceID and
// ublVersion default to a fresh UUID and "2.1" respectively when empty.
func Build(sender, receiver peppolid.ParticipantID, docType peppolid.DocumentTypeID, process peppolid.ProcessID, instanceID, ublVersion string, payload *etree.Element) (*Document, error) {
	if payload == nil {
		return nil, fmt.Errorf("business payload element is required")
	}
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	if ublVersion == "" {
		ublVersion = DefaultUBLVersion
	}
	return &Document{
		Sender:             sender,
		Receiver:           receiver,
		DocumentType:       docType,
		Process:            process,
		InstanceIdentifier: instanceID,
		UBLVersion:         ublVersion,
		CreationDateTime:   time.Now().UTC(),
		BusinessMessage:    payload,
	}, nil
}
