package nska

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"unicode/utf16"
)

// The plist decoder returns dictionaries as Go maps, which loses the order
// of $top entries. The helpers below recover that order from the raw bytes.

// xmlTopOrder returns the keys of the top-level $top dictionary of an XML
// plist in document order.
func xmlTopOrder(data []byte) ([]string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	// <plist> is depth 1, the archive dict 2, its keys and values 3 and the
	// $top entries 4.
	depth := 0
	wantTop, inTop := false, false
	var order []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 3 && t.Name.Local == "key":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, false
				}
				depth--
				wantTop = text == keyTop
			case depth == 3:
				inTop = wantTop && t.Name.Local == "dict"
				wantTop = false
			case depth == 4 && inTop && t.Name.Local == "key":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, false
				}
				depth--
				order = append(order, text)
			}
		case xml.EndElement:
			if depth == 3 && inTop {
				return order, true
			}
			depth--
		}
	}
}

// bplist is a minimal view of a binary plist object table, enough to walk
// dictionaries and read their string keys.
type bplist struct {
	data    []byte
	offsets []uint64
	refSize int
	top     uint64
}

const bplistTrailerSize = 32

func openBplist(data []byte) (*bplist, bool) {
	if len(data) < len(binaryMagic)+2+bplistTrailerSize || !bytes.HasPrefix(data, binaryMagic) {
		return nil, false
	}
	trailer := data[len(data)-bplistTrailerSize:]
	offSize := int(trailer[6])
	refSize := int(trailer[7])
	numObjects := binary.BigEndian.Uint64(trailer[8:16])
	top := binary.BigEndian.Uint64(trailer[16:24])
	tableOff := binary.BigEndian.Uint64(trailer[24:32])
	if offSize < 1 || offSize > 8 || refSize < 1 || refSize > 8 {
		return nil, false
	}
	end := uint64(len(data) - bplistTrailerSize)
	if tableOff >= end || numObjects > (end-tableOff)/uint64(offSize) || top >= numObjects {
		return nil, false
	}
	p := &bplist{data: data, refSize: refSize, top: top, offsets: make([]uint64, numObjects)}
	for i := range p.offsets {
		at := tableOff + uint64(i*offSize)
		p.offsets[i] = readUint(data[at : at+uint64(offSize)])
	}
	return p, true
}

func readUint(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}

// object returns the marker type nibble, element count and body offset of
// object ref.
func (p *bplist) object(ref uint64) (byte, uint64, uint64, bool) {
	if ref >= uint64(len(p.offsets)) {
		return 0, 0, 0, false
	}
	at := p.offsets[ref]
	if at >= uint64(len(p.data)) {
		return 0, 0, 0, false
	}
	marker := p.data[at]
	kind, count := marker>>4, uint64(marker&0x0f)
	at++
	if count == 0x0f {
		if at >= uint64(len(p.data)) || p.data[at]>>4 != 0x1 {
			return 0, 0, 0, false
		}
		width := uint64(1) << (p.data[at] & 0x0f)
		at++
		if width > 8 || at+width > uint64(len(p.data)) {
			return 0, 0, 0, false
		}
		count = readUint(p.data[at : at+width])
		at += width
	}
	return kind, count, at, true
}

// dict returns the key and value refs of dictionary object ref.
func (p *bplist) dict(ref uint64) ([]uint64, []uint64, bool) {
	kind, count, at, ok := p.object(ref)
	if !ok || kind != 0xd {
		return nil, nil, false
	}
	size := uint64(p.refSize)
	if count > uint64(len(p.data))/(2*size) || at+2*count*size > uint64(len(p.data)) {
		return nil, nil, false
	}
	keys := make([]uint64, count)
	vals := make([]uint64, count)
	for i := uint64(0); i < count; i++ {
		keys[i] = readUint(p.data[at+i*size : at+(i+1)*size])
		vals[i] = readUint(p.data[at+(count+i)*size : at+(count+i+1)*size])
	}
	return keys, vals, true
}

// str decodes an ASCII, UTF-16 or UTF-8 string object.
func (p *bplist) str(ref uint64) (string, bool) {
	kind, count, at, ok := p.object(ref)
	if !ok {
		return "", false
	}
	switch kind {
	case 0x5, 0x7:
		if at+count > uint64(len(p.data)) {
			return "", false
		}
		return string(p.data[at : at+count]), true
	case 0x6:
		if count > uint64(len(p.data))/2 || at+2*count > uint64(len(p.data)) {
			return "", false
		}
		units := make([]uint16, count)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(p.data[at+uint64(2*i):])
		}
		return string(utf16.Decode(units)), true
	}
	return "", false
}

// binaryTopOrder returns the keys of the $top dictionary of a binary plist
// in object-table order.
func binaryTopOrder(data []byte) ([]string, bool) {
	p, ok := openBplist(data)
	if !ok {
		return nil, false
	}
	keys, vals, ok := p.dict(p.top)
	if !ok {
		return nil, false
	}
	for i, k := range keys {
		name, ok := p.str(k)
		if !ok || name != keyTop {
			continue
		}
		topKeys, _, ok := p.dict(vals[i])
		if !ok {
			return nil, false
		}
		order := make([]string, 0, len(topKeys))
		for _, tk := range topKeys {
			s, ok := p.str(tk)
			if !ok {
				return nil, false
			}
			order = append(order, s)
		}
		return order, true
	}
	return nil, false
}
