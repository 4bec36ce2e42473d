package nska

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

// sessionArchive mimics a typical app archive: an NSDictionary root holding
// an NSArray, an NSString, NSData and a back-reference to itself.
func sessionArchive(rootName string) *archive {
	a := newArchive()
	dictClass := a.class("NSMutableDictionary")
	arrayClass := a.class("NSArray")
	stringClass := a.class("NSString")
	dataClass := a.class("NSData")

	root := a.add(nil) // placeholder, filled below
	kTitle, kTabs, kBlob, kSelf := a.add("title"), a.add("tabs"), a.add("blob"), a.add("self")
	title := a.add(map[string]interface{}{"$class": stringClass, "NS.string": "Home"})
	tab1, tab2 := a.add("https://a.example"), a.add("https://b.example")
	tabs := a.add(map[string]interface{}{"$class": arrayClass, "NS.objects": []interface{}{tab1, tab2, plist.UID(0)}})
	blob := a.add(map[string]interface{}{"$class": dataClass, "NS.data": []byte{0xde, 0xad, 0xbe, 0xef}})
	a.objects[root] = map[string]interface{}{
		"$class":     dictClass,
		"NS.keys":    []interface{}{kTitle, kTabs, kBlob, kSelf},
		"NS.objects": []interface{}{title, tabs, blob, root},
	}
	return a.root(rootName, root)
}

func sessionWant() *Value {
	return Map(
		Entry("title", Str("Home")),
		Entry("tabs", List(Str("https://a.example"), Str("https://b.example"), Str(""))),
		Entry("blob", Bytes([]byte{0xde, 0xad, 0xbe, 0xef})),
	)
}

func TestDeserialize_SingleCanonicalRoot(t *testing.T) {
	for _, format := range []int{plist.BinaryFormat, plist.XMLFormat} {
		t.Run(plist.FormatNames[format], func(t *testing.T) {
			got, err := Deserialize(sessionArchive("root").encode(t, format), DefaultOptions())
			require.NoError(t, err)
			requireValue(t, sessionWant(), got)
			assertNoReferences(t, got)
		})
	}
}

func TestDeserialize_RootWrapping(t *testing.T) {
	got, err := Deserialize(sessionArchive("TopObject").encode(t, plist.BinaryFormat), DefaultOptions())
	require.NoError(t, err)
	requireValue(t, Map(Entry("TopObject", sessionWant())), got)

	data := xmlArchive([]string{"root", "Extra"}, []int{1, 2},
		"<dict><key>a</key><integer>1</integer></dict>",
		"<array><string>b</string></array>",
	)
	got, err = Deserialize(data, DefaultOptions())
	require.NoError(t, err)
	requireValue(t, List(
		Map(Entry("root", Map(Entry("a", Int(1))))),
		Map(Entry("Extra", List(Str("b")))),
	), got)

	data = xmlArchive([]string{"zeta", "alpha"}, []int{1, 2}, "<string>z</string>", "<string>a</string>")
	got, err = Deserialize(data, DefaultOptions())
	require.NoError(t, err)
	requireValue(t, List(
		Map(Entry("zeta", Str("z"))),
		Map(Entry("alpha", Str("a"))),
	), got)
}

func TestDeserialize_NoRoots(t *testing.T) {
	got, err := Deserialize(xmlArchive(nil, nil), DefaultOptions())
	require.NoError(t, err)
	requireValue(t, List(), got)
}

func TestDeserialize_NonTextKeys(t *testing.T) {
	a := newArchive()
	dictClass := a.class("NSDictionary")
	k1, k2, k3 := a.add(1), a.add(2.5), a.add(true)
	v := a.add("value")
	root := a.add(map[string]interface{}{
		"$class":     dictClass,
		"NS.keys":    []interface{}{k1, k2, k3},
		"NS.objects": []interface{}{v, v, v},
	})
	a.root("root", root)

	got, err := Deserialize(a.encode(t, plist.BinaryFormat), DefaultOptions())
	require.NoError(t, err)
	requireValue(t, Map(
		Entry("1", Str("value")),
		Entry("2.5", Str("value")),
		Entry("true", Str("value")),
	), got)
}

func TestDeserialize_HexIntegerArchive(t *testing.T) {
	data := xmlArchive([]string{"root"}, []int{1},
		"<dict><key>flags</key><integer>0x37</integer></dict>",
	)
	got, err := Deserialize(data, DefaultOptions())
	require.NoError(t, err)
	requireValue(t, Map(Entry("flags", Int(55))), got)
}

func TestDeserialize_Errors(t *testing.T) {
	notArchive, err := plist.Marshal(map[string]interface{}{"hello": "world"}, plist.BinaryFormat)
	require.NoError(t, err)
	_, err = Deserialize(notArchive, DefaultOptions())
	require.ErrorIs(t, err, ErrNotArchive)
	assert.False(t, errors.Is(err, ErrFormat))

	_, err = Deserialize([]byte("bplist00junk"), DefaultOptions())
	require.ErrorIs(t, err, ErrFormat)

	a := newArchive()
	a.root("root", a.add(map[string]interface{}{"x": plist.UID(42)}))
	_, err = Deserialize(a.encode(t, plist.BinaryFormat), DefaultOptions())
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
}

func TestDeserializeFileAndReader(t *testing.T) {
	data := sessionArchive("root").encode(t, plist.BinaryFormat)
	path := filepath.Join(t.TempDir(), "session.plist")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := DeserializeFile(path, DefaultOptions())
	require.NoError(t, err)
	requireValue(t, sessionWant(), got)

	got, err = DeserializeReader(bytes.NewReader(data), DefaultOptions())
	require.NoError(t, err)
	requireValue(t, sessionWant(), got)

	_, err = DeserializeFile(filepath.Join(t.TempDir(), "missing.plist"), DefaultOptions())
	require.ErrorIs(t, err, os.ErrNotExist)
}
