package inputlog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"textreplay/internal/event"
)

type xmlEvent struct {
	Attrs  []xml.Attr `xml:",any,attr"`
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// ReadXML decodes every <event> element in the document, at any depth.
// Attributes and direct child elements become fields; child elements win
// over attributes of the same name. Values are trimmed of surrounding
// whitespace and empty elements become empty strings.
func ReadXML(r io.Reader) ([]event.Record, error) {
	dec := xml.NewDecoder(r)
	var recs []event.Record

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "event" {
			continue
		}

		var e xmlEvent
		if err := dec.DecodeElement(&e, &start); err != nil {
			return nil, fmt.Errorf("decode XML event %d: %w", len(recs), err)
		}
		recs = append(recs, e.record())
	}

	return recs, nil
}

func (e xmlEvent) record() event.Record {
	rec := make(event.Record, len(e.Attrs)+len(e.Fields))
	for _, a := range e.Attrs {
		rec[a.Name.Local] = strings.TrimSpace(a.Value)
	}
	for _, f := range e.Fields {
		rec[f.XMLName.Local] = strings.TrimSpace(f.Text)
	}
	return rec
}
