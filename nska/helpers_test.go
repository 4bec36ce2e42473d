package nska

import (
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

// ============================================================
// Record-table fixtures (no codec involved)
// ============================================================

func newTable(t *testing.T, top *Value, records ...*Value) *RecordTable {
	t.Helper()
	doc := Map(
		Entry(keyArchiver, Str("NSKeyedArchiver")),
		Entry(keyObjects, List(records...)),
		Entry(keyTop, top),
	)
	table, err := NewRecordTable(doc)
	require.NoError(t, err)
	return table
}

func classDesc(name string) *Value {
	return Map(
		Entry(keyClassName, Str(name)),
		Entry("$classes", List(Str(name), Str("NSObject"))),
	)
}

func requireValue(t *testing.T, want, got *Value) {
	t.Helper()
	if !want.Equal(got) {
		t.Fatalf("value mismatch\nwant: %s\ngot:  %s", spew.Sdump(ToJSONValue(want)), spew.Sdump(ToJSONValue(got)))
	}
}

// ============================================================
// Encoded archive fixtures
// ============================================================

// archive builds an NSKeyedArchiver document with howett.net/plist types.
type archive struct {
	objects []interface{}
	top     map[string]interface{}
}

func newArchive() *archive {
	return &archive{
		objects: []interface{}{nullRecord},
		top:     map[string]interface{}{},
	}
}

// add appends a record and returns its UID.
func (a *archive) add(v interface{}) plist.UID {
	a.objects = append(a.objects, v)
	return plist.UID(len(a.objects) - 1)
}

func (a *archive) class(name string) plist.UID {
	return a.add(map[string]interface{}{
		keyClassName: name,
		"$classes":   []interface{}{name, "NSObject"},
	})
}

func (a *archive) root(name string, uid plist.UID) *archive {
	a.top[name] = uid
	return a
}

func (a *archive) doc() map[string]interface{} {
	return map[string]interface{}{
		keyArchiver: "NSKeyedArchiver",
		"$version":  100000,
		keyObjects:  a.objects,
		keyTop:      a.top,
	}
}

func (a *archive) encode(t *testing.T, format int) []byte {
	t.Helper()
	data, err := plist.Marshal(a.doc(), format)
	require.NoError(t, err)
	return data
}

// xmlArchive writes an XML archive by hand so that $top order and literal
// spelling are under the test's control. objects are raw XML elements for
// records 1..n; record 0 is $null.
func xmlArchive(roots []string, uids []int, objects ...string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>$archiver</key>
	<string>NSKeyedArchiver</string>
	<key>$objects</key>
	<array>
		<string>$null</string>
`)
	for _, o := range objects {
		b.WriteString("\t\t")
		b.WriteString(o)
		b.WriteString("\n")
	}
	b.WriteString("\t</array>\n\t<key>$top</key>\n\t<dict>\n")
	for i, name := range roots {
		fmt.Fprintf(&b, "\t\t<key>%s</key>\n\t\t%s\n", name, uidXML(uids[i]))
	}
	b.WriteString("\t</dict>\n\t<key>$version</key>\n\t<integer>100000</integer>\n</dict>\n</plist>\n")
	return []byte(b.String())
}

func uidXML(n int) string {
	return fmt.Sprintf("<dict><key>CF$UID</key><integer>%d</integer></dict>", n)
}
