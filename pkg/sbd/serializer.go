package sbd

import (
	"time"

	"github.com/beevik/etree"
)

// Serialize renders doc to its wire XML form. When namespaceContext is nil
// or empty, the SBDH namespace is mapped to the default (empty) prefix —
// spec.md's compatibility requirement, since some receivers reject a
// prefixed envelope.
func Serialize(doc *Document, namespaceContext map[string]string) ([]byte, error) {
	out := etree.NewDocument()

	root := out.CreateElement("StandardBusinessDocument")
	applyNamespace(root, namespaceContext)

	header := root.CreateElement("StandardBusinessDocumentHeader")
	header.CreateElement("HeaderVersion").SetText("1.0")

	writeParty(header.CreateElement("Sender"), doc.Sender.Scheme, doc.Sender.Value)
	writeParty(header.CreateElement("Receiver"), doc.Receiver.Scheme, doc.Receiver.Value)

	docIdent := header.CreateElement("DocumentIdentification")
	docIdent.CreateElement("Standard").SetText(doc.BusinessMessage.NamespaceURI())
	docIdent.CreateElement("TypeVersion").SetText(doc.UBLVersion)
	docIdent.CreateElement("InstanceIdentifier").SetText(doc.InstanceIdentifier)
	docIdent.CreateElement("Type").SetText(doc.BusinessMessage.Tag)
	docIdent.CreateElement("CreationDateAndTime").SetText(doc.CreationDateTime.Format(time.RFC3339))

	scope := header.CreateElement("BusinessScope")
	addScope(scope, "DOCUMENTID", doc.DocumentType.URIEncoded())
	addScope(scope, "PROCESSID", doc.Process.URIEncoded())

	root.AddChild(doc.BusinessMessage.Copy())

	return out.WriteToBytes()
}

func writeParty(party *etree.Element, scheme, value string) {
	id := party.CreateElement("Identifier")
	id.CreateAttr("Authority", scheme)
	id.SetText(value)
}

func addScope(parent *etree.Element, scopeType, instanceIdentifier string) {
	scope := parent.CreateElement("Scope")
	scope.CreateElement("Type").SetText(scopeType)
	scope.CreateElement("InstanceIdentifier").SetText(instanceIdentifier)
}

func applyNamespace(root *etree.Element, namespaceContext map[string]string) {
	if len(namespaceContext) == 0 {
		root.CreateAttr("xmlns", SBDHNamespaceURI)
		return
	}
	for prefix, uri := range namespaceContext {
		if prefix == "" {
			root.CreateAttr("xmlns", uri)
			continue
		}
		root.CreateAttr("xmlns:"+prefix, uri)
	}
}
