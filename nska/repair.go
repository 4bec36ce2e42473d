package nska

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"howett.net/plist"
)

var binaryMagic = []byte("bplist")

// Repaired is an archive ready for LoadRecordTable.
type Repaired struct {
	// Stream is a binary plist positioned at offset 0.
	Stream io.ReadSeeker
	// Meta is the structural metadata read before any re-encoding.
	Meta Metadata
	// Format names the encoding the archive was found in ("XML", "Binary", ...).
	Format string
	// Unwrapped is set when the archive was embedded as a data blob.
	Unwrapped bool
	// Converted is set when Stream was re-encoded rather than passed through.
	Converted bool
}

// Metadata is the part of the archive the root locator needs.
type Metadata struct {
	// Top is the decoded $top index, or nil when the document has none.
	Top *Value
	// Order lists $top keys in the order the document declares them. It may
	// be empty when the order could not be recovered.
	Order []string
}

// Repair normalizes raw archive bytes into a binary plist stream:
//
//  1. hex <integer> literals are rewritten to decimal (non-binary input only)
//  2. the document is parsed; on failure, leading whitespace and control
//     characters are stripped and parsing is retried exactly once
//  3. a document that is a single data blob is unwrapped one level
//  4. $top metadata is captured
//  5. non-binary documents, and documents with {"CF$UID": n} fields, are
//     rewritten with typed UIDs and re-encoded as binary
func Repair(data []byte) (*Repaired, error) {
	return repair(data, true)
}

func repair(data []byte, unwrap bool) (*Repaired, error) {
	if !bytes.HasPrefix(data, binaryMagic) {
		fixed, err := RewriteHexIntegers(data)
		if err != nil {
			return nil, err
		}
		data = fixed
	}

	raw, format, data, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	doc, err := fromPlist(raw)
	if err != nil {
		return nil, err
	}

	if doc.Kind() == KindBytes {
		if !unwrap {
			return nil, formatErrf("unwrap", fmt.Errorf("embedded archive is itself a data blob"))
		}
		inner, err := repair(doc.bytesVal, false)
		if err != nil {
			return nil, err
		}
		inner.Unwrapped = true
		return inner, nil
	}

	r := &Repaired{
		Meta:   extractMetadata(doc, data, format),
		Format: plist.FormatNames[format],
	}
	if format == plist.BinaryFormat && !hasStringUIDs(doc) {
		r.Stream = bytes.NewReader(data)
		return r, nil
	}

	tree, err := toPlist(RewriteStringUIDs(doc), true, 0)
	if err != nil {
		return nil, err
	}
	out, err := plist.Marshal(tree, plist.BinaryFormat)
	if err != nil {
		return nil, formatErrf("encode", err)
	}
	r.Stream = bytes.NewReader(out)
	r.Converted = true
	return r, nil
}

// parseDocument decodes data, retrying once with leading junk stripped. It
// returns the bytes that actually parsed.
func parseDocument(data []byte) (interface{}, int, []byte, error) {
	var doc interface{}
	format, err := plist.Unmarshal(data, &doc)
	if err == nil {
		return doc, format, data, nil
	}

	stripped := StripLeadingJunk(data)
	if len(stripped) == len(data) {
		return nil, plist.InvalidFormat, nil, formatErrf("parse", err)
	}
	doc = nil
	format, err = plist.Unmarshal(stripped, &doc)
	if err != nil {
		return nil, plist.InvalidFormat, nil, formatErrf("reparse", err)
	}
	return doc, format, stripped, nil
}

func extractMetadata(doc *Value, data []byte, format int) Metadata {
	meta := Metadata{Top: doc.Get(keyTop)}
	if meta.Top == nil {
		return meta
	}
	switch format {
	case plist.XMLFormat:
		meta.Order, _ = xmlTopOrder(data)
	case plist.BinaryFormat:
		meta.Order, _ = binaryTopOrder(data)
	}
	return meta
}

// StripLeadingJunk drops whitespace and control characters in front of the
// first '<'. Input that does not start that way is returned unchanged.
func StripLeadingJunk(data []byte) []byte {
	i := 0
	for i < len(data) && (data[i] <= ' ' || data[i] == 0x7f) {
		i++
	}
	if i == 0 || i == len(data) || data[i] != '<' {
		return data
	}
	return data[i:]
}

var hexIntegerRe = regexp.MustCompile(`<integer>(\s*)(-?)0[xX]([0-9A-Fa-f]+)(\s*)</integer>`)

// RewriteHexIntegers rewrites <integer>0x1F</integer> as <integer>31</integer>.
// Decimal literals are left alone, so the rewrite is idempotent.
func RewriteHexIntegers(data []byte) ([]byte, error) {
	if !hexIntegerRe.Match(data) {
		return data, nil
	}
	var convErr error
	out := hexIntegerRe.ReplaceAllFunc(data, func(m []byte) []byte {
		if convErr != nil {
			return m
		}
		sub := hexIntegerRe.FindSubmatch(m)
		n, err := strconv.ParseUint(string(sub[3]), 16, 64)
		if err != nil {
			convErr = &LiteralError{Literal: string(m), Err: err}
			return m
		}
		var buf bytes.Buffer
		buf.WriteString("<integer>")
		buf.Write(sub[1])
		buf.Write(sub[2])
		buf.WriteString(strconv.FormatUint(n, 10))
		buf.Write(sub[4])
		buf.WriteString("</integer>")
		return buf.Bytes()
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// RewriteStringUIDs returns a copy of v in which every map or list member of
// the form {"CF$UID": <integer>} is replaced by a typed UID.
func RewriteStringUIDs(v *Value) *Value {
	switch v.Kind() {
	case KindList:
		items := make([]*Value, 0, len(v.listVal))
		for _, elem := range v.listVal {
			if uid, ok := stringUID(elem); ok {
				items = append(items, UID(uid))
				continue
			}
			items = append(items, RewriteStringUIDs(elem))
		}
		return List(items...)
	case KindMap:
		entries := make([]MapEntry, 0, len(v.mapVal))
		for _, e := range v.mapVal {
			if uid, ok := stringUID(e.Value); ok {
				entries = append(entries, MapEntry{Key: e.Key, Value: UID(uid)})
				continue
			}
			entries = append(entries, MapEntry{Key: e.Key, Value: RewriteStringUIDs(e.Value)})
		}
		return Map(entries...)
	default:
		return v
	}
}

// stringUID reports whether v is a map holding an integer CF$UID field.
func stringUID(v *Value) (uint64, bool) {
	if v.Kind() != KindMap {
		return 0, false
	}
	n, err := v.Get(keyCFUID).AsUint()
	if err != nil {
		return 0, false
	}
	return n, true
}

func hasStringUIDs(v *Value) bool {
	switch v.Kind() {
	case KindList:
		for _, elem := range v.listVal {
			if _, ok := stringUID(elem); ok || hasStringUIDs(elem) {
				return true
			}
		}
	case KindMap:
		for _, e := range v.mapVal {
			if _, ok := stringUID(e.Value); ok || hasStringUIDs(e.Value) {
				return true
			}
		}
	}
	return false
}
