package entrez

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// DefaultItemTextLimit is the per-Item text cap applied to documents before
// they are handed to the sub-agent as context.
const DefaultItemTextLimit = 1000

// truncationMarker is appended to values cut by TruncateItemValues.
const truncationMarker = "...[truncated]"

// TruncateItemValues caps the text of every <Item> element in an E-utilities
// XML document at maxLen runes, appending a marker to anything cut.
// SRA esummary documents embed the full experiment XML inside Item elements,
// which can dwarf the rest of the document. A document that fails to parse is
// returned unchanged, as is any document when maxLen is not positive.
func TruncateItemValues(doc string, maxLen int) string {
	if maxLen <= 0 || doc == "" {
		return doc
	}

	decoder := xml.NewDecoder(strings.NewReader(doc))
	decoder.Strict = false

	var buf bytes.Buffer
	encoder := xml.NewEncoder(&buf)

	// Tracks nesting inside Item elements so only their text is cut.
	itemDepth := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return doc
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Item" {
				itemDepth++
			}
		case xml.EndElement:
			if t.Name.Local == "Item" && itemDepth > 0 {
				itemDepth--
			}
		case xml.CharData:
			if itemDepth > 0 {
				if r := []rune(string(t)); len(r) > maxLen {
					tok = xml.CharData(string(r[:maxLen]) + truncationMarker)
				}
			}
		}

		if err := encoder.EncodeToken(tok); err != nil {
			return doc
		}
	}

	if err := encoder.Flush(); err != nil {
		return doc
	}
	return buf.String()
}
