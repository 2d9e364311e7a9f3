package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

const (
	pngSignature   = "\x89PNG\r\n\x1a\n"
	maxInflateSize = 1 << 20
)

// scanPNG walks the chunk list and decodes tEXt, zTXt and iTXt chunks.
func scanPNG(raw []byte) ([]TextEntry, []string) {
	if !bytes.HasPrefix(raw, []byte(pngSignature)) {
		return nil, []string{"missing PNG signature"}
	}

	var (
		entries  []TextEntry
		warnings []string
	)
	data := raw[len(pngSignature):]
	for len(data) >= 12 {
		length := binary.BigEndian.Uint32(data[:4])
		kind := string(data[4:8])
		if uint64(length)+12 > uint64(len(data)) {
			warnings = append(warnings, fmt.Sprintf("chunk %q truncated", kind))
			break
		}
		body := data[8 : 8+length]
		crc := binary.BigEndian.Uint32(data[8+length : 12+length])
		data = data[12+length:]

		if crc32.ChecksumIEEE(append([]byte(kind), body...)) != crc {
			warnings = append(warnings, fmt.Sprintf("chunk %q has a bad CRC", kind))
		}

		var (
			entry TextEntry
			err   error
		)
		switch kind {
		case "tEXt":
			entry, err = parseText(body)
		case "zTXt":
			entry, err = parseCompressedText(body)
		case "iTXt":
			entry, err = parseInternationalText(body)
		case "IEND":
			return entries, warnings
		default:
			continue
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", kind, err))
			continue
		}
		entry.Chunk = kind
		entries = append(entries, entry)
	}
	return entries, warnings
}

func parseText(body []byte) (TextEntry, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return TextEntry{}, fmt.Errorf("missing keyword separator")
	}
	value, err := latin1(rest)
	if err != nil {
		return TextEntry{}, err
	}
	return TextEntry{Keyword: string(keyword), Value: value}, nil
}

func parseCompressedText(body []byte) (TextEntry, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 1 {
		return TextEntry{}, fmt.Errorf("missing keyword separator")
	}
	if rest[0] != 0 {
		return TextEntry{}, fmt.Errorf("unknown compression method %d", rest[0])
	}
	plain, err := inflate(rest[1:])
	if err != nil {
		return TextEntry{}, err
	}
	value, err := latin1(plain)
	if err != nil {
		return TextEntry{}, err
	}
	return TextEntry{Keyword: string(keyword), Value: value, Compressed: true}, nil
}

func parseInternationalText(body []byte) (TextEntry, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 {
		return TextEntry{}, fmt.Errorf("missing keyword separator")
	}
	compressed, method := rest[0] == 1, rest[1]
	lang, rest, ok := bytes.Cut(rest[2:], []byte{0})
	if !ok {
		return TextEntry{}, fmt.Errorf("missing language tag")
	}
	_, text, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return TextEntry{}, fmt.Errorf("missing translated keyword")
	}
	if compressed {
		if method != 0 {
			return TextEntry{}, fmt.Errorf("unknown compression method %d", method)
		}
		var err error
		if text, err = inflate(text); err != nil {
			return TextEntry{}, err
		}
	}
	return TextEntry{
		Keyword:    string(keyword),
		Value:      string(text),
		Language:   string(lang),
		Compressed: compressed,
	}, nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflateSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if len(out) > maxInflateSize {
		return nil, fmt.Errorf("inflated text exceeds %d bytes", maxInflateSize)
	}
	return out, nil
}

func latin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("latin-1: %w", err)
	}
	return string(out), nil
}
