package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerCOM  = 0xFE
	markerAPP1 = 0xE1
)

// scanJPEG collects COM segments and notes whether an Exif APP1 segment
// is present. Scanning stops at the start of scan data.
func scanJPEG(raw []byte) ([]TextEntry, bool, []string) {
	if len(raw) < 2 || raw[0] != 0xFF || raw[1] != markerSOI {
		return nil, false, []string{"missing JPEG SOI marker"}
	}

	var (
		entries  []TextEntry
		warnings []string
		hasEXIF  bool
	)
	pos := 2
	for pos+4 <= len(raw) {
		if raw[pos] != 0xFF {
			warnings = append(warnings, fmt.Sprintf("expected marker at offset %d", pos))
			break
		}
		marker := raw[pos+1]
		if marker == 0xFF {
			// fill byte
			pos++
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			break
		}
		length := int(binary.BigEndian.Uint16(raw[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(raw) {
			warnings = append(warnings, fmt.Sprintf("segment 0x%02X truncated", marker))
			break
		}
		body := raw[pos+4 : pos+2+length]
		switch marker {
		case markerCOM:
			entries = append(entries, TextEntry{Chunk: "COM", Keyword: "Comment", Value: comment(body)})
		case markerAPP1:
			if bytes.HasPrefix(body, []byte("Exif\x00\x00")) {
				hasEXIF = true
			}
		}
		pos += 2 + length
	}
	return entries, hasEXIF, warnings
}

func comment(b []byte) string {
	s := strings.TrimRight(string(b), "\x00")
	if utf8.ValidString(s) {
		return s
	}
	if v, err := latin1([]byte(s)); err == nil {
		return v
	}
	return s
}
