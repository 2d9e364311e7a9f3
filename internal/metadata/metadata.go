// Package metadata scans image containers for textual clues: file and
// image properties, PNG text chunks and JPEG comments.
package metadata

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/RowanDark/wraith/internal/imageio"
)

// FileProperties describes the input file.
type FileProperties struct {
	Name         string `json:"name"`
	Path         string `json:"path,omitempty"`
	SizeBytes    int    `json:"size_bytes"`
	SizeReadable string `json:"size_readable"`
}

// ImageProperties describes the decoded image header.
type ImageProperties struct {
	Format     string `json:"format"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Dimensions string `json:"dimensions"`
}

// TextEntry is one textual value found in the container.
type TextEntry struct {
	// Chunk is the PNG chunk type or JPEG segment it came from.
	Chunk      string `json:"chunk"`
	Keyword    string `json:"keyword"`
	Value      string `json:"value"`
	Language   string `json:"language,omitempty"`
	Compressed bool   `json:"compressed,omitempty"`
}

// Report is the result of Scan.
type Report struct {
	File  FileProperties  `json:"file_properties"`
	Image ImageProperties `json:"image_properties"`
	Text  []TextEntry     `json:"text,omitempty"`
	// HasEXIF is set when a JPEG carries an APP1 Exif segment.
	HasEXIF             bool     `json:"has_exif,omitempty"`
	PotentialHiddenText []string `json:"potential_hidden_text,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Scan inspects raw image bytes. path only labels the report. Container
// damage after the header is reported as warnings; only an unreadable
// header is an error.
func Scan(path string, raw []byte) (*Report, error) {
	cfg, err := imageio.DecodeConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}

	r := &Report{
		File: FileProperties{
			Name:         filepath.Base(path),
			Path:         path,
			SizeBytes:    len(raw),
			SizeReadable: humanize.Bytes(uint64(len(raw))),
		},
		Image: ImageProperties{
			Format:     cfg.Format,
			Width:      cfg.Width,
			Height:     cfg.Height,
			Dimensions: fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		},
	}

	switch cfg.Format {
	case "png":
		r.Text, r.Warnings = scanPNG(raw)
	case "jpeg":
		r.Text, r.HasEXIF, r.Warnings = scanJPEG(raw)
	}

	for _, e := range r.Text {
		if e.Value != "" {
			r.PotentialHiddenText = append(r.PotentialHiddenText, e.Keyword+": "+e.Value)
		}
	}
	return r, nil
}

// Values returns the non-empty text values keyed by keyword. Repeated
// keywords get a numeric suffix.
func (r *Report) Values() map[string]string {
	out := make(map[string]string, len(r.Text))
	for _, e := range r.Text {
		if e.Value == "" {
			continue
		}
		key := e.Keyword
		for n := 2; ; n++ {
			if _, exists := out[key]; !exists {
				break
			}
			key = fmt.Sprintf("%s_%d", e.Keyword, n)
		}
		out[key] = e.Value
	}
	return out
}

// Keywords lists the distinct keywords in sorted order.
func (r *Report) Keywords() []string {
	seen := make(map[string]bool, len(r.Text))
	var out []string
	for _, e := range r.Text {
		if !seen[e.Keyword] {
			seen[e.Keyword] = true
			out = append(out, e.Keyword)
		}
	}
	sort.Strings(out)
	return out
}
