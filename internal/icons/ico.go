package icons

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// icoEntry is one PNG-compressed image destined for an ICO container.
type icoEntry struct {
	size int
	png  []byte
}

// encodeICO packs PNG payloads into a Windows icon file. Vista and later
// accept PNG-compressed entries, which every current browser reads.
func encodeICO(entries []icoEntry) ([]byte, error) {
	const (
		headerLen = 6
		entryLen  = 16
	)
	if len(entries) == 0 || len(entries) > 0xffff {
		return nil, fmt.Errorf("ico: %d entries", len(entries))
	}

	var buf bytes.Buffer
	hdr := [headerLen]byte{}
	binary.LittleEndian.PutUint16(hdr[2:], 1) // type: icon
	binary.LittleEndian.PutUint16(hdr[4:], uint16(len(entries)))
	buf.Write(hdr[:])

	offset := headerLen + entryLen*len(entries)
	for _, e := range entries {
		if e.size < 1 || e.size > 256 {
			return nil, fmt.Errorf("ico: size %d out of range", e.size)
		}
		var d [entryLen]byte
		d[0] = byte(e.size % 256) // 0 means 256
		d[1] = byte(e.size % 256)
		binary.LittleEndian.PutUint16(d[4:], 1)  // colour planes
		binary.LittleEndian.PutUint16(d[6:], 32) // bits per pixel
		binary.LittleEndian.PutUint32(d[8:], uint32(len(e.png)))
		binary.LittleEndian.PutUint32(d[12:], uint32(offset))
		buf.Write(d[:])
		offset += len(e.png)
	}
	for _, e := range entries {
		buf.Write(e.png)
	}
	return buf.Bytes(), nil
}
