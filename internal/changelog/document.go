// Package changelog defines the typed change model and its XML document
// form: a change log of ordered change sets, each an ordered list of
// actions.
package changelog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CurrentVersion is written into every document this package produces.
const CurrentVersion = "1.0"

// ChangeLog is an ordered sequence of change sets.
type ChangeLog struct {
	XMLName    xml.Name    `xml:"changelog"`
	Version    string      `xml:"version,attr"`
	ChangeSets []ChangeSet `xml:"changeset"`
}

// ChangeSet is a named, ordered unit of actions applied at most once.
type ChangeSet struct {
	ID      string
	Actions []Action
}

// New returns an empty change log at the current document version.
func New() *ChangeLog {
	return &ChangeLog{Version: CurrentVersion}
}

// ChangeSet returns the change set with the given id, or nil.
func (l *ChangeLog) ChangeSet(id string) *ChangeSet {
	for i := range l.ChangeSets {
		if l.ChangeSets[i].ID == id {
			return &l.ChangeSets[i]
		}
	}
	return nil
}

// Read decodes and validates a change-log document.
func Read(r io.Reader) (*ChangeLog, error) {
	var l ChangeLog
	if err := xml.NewDecoder(r).Decode(&l); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &ValidationError{Msg: "malformed document", Err: err}
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Write encodes the change log as an indented document.
func Write(w io.Writer, l *ChangeLog) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode change log: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// MarshalXML writes the change set with one child element per action,
// named by the action's Kind.
func (cs ChangeSet) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = []xml.Attr{{Name: xml.Name{Local: "id"}, Value: cs.ID}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeActions(e, cs.Actions); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML reads the id attribute and dispatches each child element to
// the decoder registered for its name.
func (cs *ChangeSet) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			cs.ID = attr.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			decode, ok := decoders[t.Name.Local]
			if !ok {
				return &ValidationError{ChangeSet: cs.ID, Index: len(cs.Actions),
					Msg: fmt.Sprintf("unknown action <%s>", t.Name.Local)}
			}
			a, err := decode(d, &t)
			if err != nil {
				return fmt.Errorf("change set %q: decode <%s>: %w", cs.ID, t.Name.Local, err)
			}
			cs.Actions = append(cs.Actions, a)
		case xml.EndElement:
			return nil
		}
	}
}

func encodeActions(e *xml.Encoder, actions []Action) error {
	for _, a := range actions {
		if err := e.EncodeElement(a, xml.StartElement{Name: xml.Name{Local: a.Kind()}}); err != nil {
			return fmt.Errorf("encode %s: %w", a.Kind(), err)
		}
	}
	return nil
}

type decodeFunc func(d *xml.Decoder, start *xml.StartElement) (Action, error)

func decodeAs[T Action](d *xml.Decoder, start *xml.StartElement) (Action, error) {
	var a T
	if err := d.DecodeElement(&a, start); err != nil {
		return nil, err
	}
	return a, nil
}

// Surrounding whitespace of raw SQL is not significant; value text is.
func decodeRunSQL(d *xml.Decoder, start *xml.StartElement) (Action, error) {
	var a RunSQL
	if err := d.DecodeElement(&a, start); err != nil {
		return nil, err
	}
	a.SQL = strings.TrimSpace(a.SQL)
	return a, nil
}

var decoders = map[string]decodeFunc{
	"createTable":    decodeAs[CreateTable],
	"dropTable":      decodeAs[DropTable],
	"addColumn":      decodeAs[AddColumn],
	"dropColumn":     decodeAs[DropColumn],
	"renameTable":    decodeAs[RenameTable],
	"renameColumn":   decodeAs[RenameColumn],
	"addPrimaryKey":  decodeAs[AddPrimaryKey],
	"dropPrimaryKey": decodeAs[DropPrimaryKey],
	"addForeignKey":  decodeAs[AddForeignKey],
	"dropForeignKey": decodeAs[DropForeignKey],
	"createIndex":    decodeAs[CreateIndex],
	"dropIndex":      decodeAs[DropIndex],
	"insert":         decodeAs[Insert],
	"truncateTable":  decodeAs[TruncateTable],
	"sql":            decodeRunSQL,
}
