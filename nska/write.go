package nska

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"howett.net/plist"
)

// MaxPlistDepth is the deepest container nesting the plist and msgpack
// writers accept.
const MaxPlistDepth = 1024

// ============================================================
// JSON
// ============================================================

// EncodeJSON writes the normalized form of v as UTF-8 JSON.
func EncodeJSON(w io.Writer, v *Value, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(ToJSONValue(Normalize(v))); err != nil {
		return fmt.Errorf("nska: encode json: %w", err)
	}
	return nil
}

// WriteJSON writes the normalized form of v to path as JSON.
func WriteJSON(v *Value, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeJSON(w, v, false)
	})
}

// ============================================================
// Property list
// ============================================================

// EncodePlist writes v as a binary property list. Scalars keep their types.
func EncodePlist(w io.Writer, v *Value) error {
	tree, err := toPlist(v, false, 0)
	if err != nil {
		return err
	}
	enc := plist.NewEncoderForFormat(w, plist.BinaryFormat)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("nska: encode plist: %w", err)
	}
	return nil
}

// WritePlist writes v to path as a binary property list.
func WritePlist(v *Value, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodePlist(w, v)
	})
}

// ============================================================
// MessagePack
// ============================================================

// EncodeMsgpack writes v as MessagePack. Scalars keep their types; dates use
// the msgpack timestamp extension.
func EncodeMsgpack(w io.Writer, v *Value) error {
	tree, err := toPlist(v, false, 0)
	if err != nil {
		return err
	}
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("nska: encode msgpack: %w", err)
	}
	return nil
}

// WriteMsgpack writes v to path as MessagePack.
func WriteMsgpack(v *Value, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeMsgpack(w, v)
	})
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
