package sbd

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/phax/as2-peppol-client/pkg/peppolid"
)

// Parse reads a serialized SBD back into a Document: Testable Property 4
// requires Parse(Serialize(doc)) to reproduce doc field-by-field, with the
// business payload preserved byte-for-byte.
func Parse(data []byte) (*Document, error) {
	in := etree.NewDocument()
	if err := in.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing SBD: %w", err)
	}

	root := in.Root()
	if root == nil || root.Tag != "StandardBusinessDocument" {
		return nil, fmt.Errorf("missing StandardBusinessDocument root element")
	}

	header := root.SelectElement("StandardBusinessDocumentHeader")
	if header == nil {
		return nil, fmt.Errorf("missing StandardBusinessDocumentHeader element")
	}

	sender, err := parseParty(header, "Sender")
	if err != nil {
		return nil, err
	}
	receiver, err := parseParty(header, "Receiver")
	if err != nil {
		return nil, err
	}

	docIdent := header.SelectElement("DocumentIdentification")
	if docIdent == nil {
		return nil, fmt.Errorf("missing DocumentIdentification element")
	}
	instanceID := textOf(docIdent, "InstanceIdentifier")
	ublVersion := textOf(docIdent, "TypeVersion")
	creation, err := time.Parse(time.RFC3339, textOf(docIdent, "CreationDateAndTime"))
	if err != nil {
		return nil, fmt.Errorf("parsing CreationDateAndTime: %w", err)
	}

	scope := header.SelectElement("BusinessScope")
	if scope == nil {
		return nil, fmt.Errorf("missing BusinessScope element")
	}
	docType, err := parseDocumentTypeScope(scope)
	if err != nil {
		return nil, err
	}
	process, err := parseProcessScope(scope)
	if err != nil {
		return nil, err
	}

	var payload *etree.Element
	for _, child := range root.ChildElements() {
		if child == header {
			continue
		}
		payload = child
		break
	}
	if payload == nil {
		return nil, fmt.Errorf("missing business payload element")
	}

	return &Document{
		Sender:             sender,
		Receiver:           receiver,
		DocumentType:       docType,
		Process:            process,
		InstanceIdentifier: instanceID,
		UBLVersion:         ublVersion,
		CreationDateTime:   creation,
		BusinessMessage:    payload.Copy(),
	}, nil
}

func parseParty(header *etree.Element, tag string) (peppolid.ParticipantID, error) {
	party := header.SelectElement(tag)
	if party == nil {
		return peppolid.ParticipantID{}, fmt.Errorf("missing %s element", tag)
	}
	id := party.SelectElement("Identifier")
	if id == nil {
		return peppolid.ParticipantID{}, fmt.Errorf("missing %s/Identifier element", tag)
	}
	return peppolid.NewParticipantID(id.SelectAttrValue("Authority", ""), id.Text()), nil
}

func parseDocumentTypeScope(scope *etree.Element) (peppolid.DocumentTypeID, error) {
	raw, err := findScopeInstanceIdentifier(scope, "DOCUMENTID")
	if err != nil {
		return peppolid.DocumentTypeID{}, err
	}
	scheme, value, ok := peppolid.ParseURIEncoded(raw)
	if !ok {
		return peppolid.DocumentTypeID{}, fmt.Errorf("malformed DOCUMENTID scope value %q", raw)
	}
	return peppolid.NewDocumentTypeID(scheme, value), nil
}

func parseProcessScope(scope *etree.Element) (peppolid.ProcessID, error) {
	raw, err := findScopeInstanceIdentifier(scope, "PROCESSID")
	if err != nil {
		return peppolid.ProcessID{}, err
	}
	scheme, value, ok := peppolid.ParseURIEncoded(raw)
	if !ok {
		return peppolid.ProcessID{}, fmt.Errorf("malformed PROCESSID scope value %q", raw)
	}
	return peppolid.NewProcessID(scheme, value), nil
}

func findScopeInstanceIdentifier(scope *etree.Element, scopeType string) (string, error) {
	for _, s := range scope.SelectElements("Scope") {
		if textOf(s, "Type") == scopeType {
			return textOf(s, "InstanceIdentifier"), nil
		}
	}
	return "", fmt.Errorf("missing %s scope entry", scopeType)
}

func textOf(parent *etree.Element, tag string) string {
	el := parent.SelectElement(tag)
	if el == nil {
		return ""
	}
	return el.Text()
}
