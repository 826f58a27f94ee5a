package export

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"relentless-jobs/internal/models"
)

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textElement(a atom.Atom, text string) *html.Node {
	n := element(a)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// writeHTML renders a complete document with one table row per record.
// The header row is always present so an empty run still yields a table.
func writeHTML(w io.Writer, records []models.JobRecord) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, html.Attribute{Key: "lang", Val: "en"})
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	head.AppendChild(textElement(atom.Title, "Job listings"))
	root.AppendChild(head)

	body := element(atom.Body)
	root.AppendChild(body)
	table := element(atom.Table, html.Attribute{Key: "border", Val: "1"})
	body.AppendChild(table)

	thead := element(atom.Thead)
	headRow := element(atom.Tr)
	for _, name := range models.FieldNames {
		headRow.AppendChild(textElement(atom.Th, name))
	}
	thead.AppendChild(headRow)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, r := range records {
		tr := element(atom.Tr)
		for i, v := range r.Values() {
			td := textElement(atom.Td, v)
			if models.FieldNames[i] == "jobLink" && v != "" {
				td = element(atom.Td)
				a := textElement(atom.A, v)
				a.Attr = []html.Attribute{{Key: "href", Val: v}}
				td.AppendChild(a)
			}
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("export: html: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("export: html: %w", err)
	}
	return nil
}
