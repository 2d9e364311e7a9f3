package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists a report in the output directory layout:
//
//	report.json
//	metadata.json
//	lsb_<channel>.txt
//	spiral_<direction>_<channel>.txt
//	fragments/fragment_<id>.txt
//	fragments/decoded_<id>.txt
//	final_flag.txt
type Writer struct {
	Dir string
}

// Write stores r and returns the paths written.
func (w Writer) Write(r *Report) ([]string, error) {
	if r == nil {
		return nil, errors.New("report is nil")
	}
	if w.Dir == "" {
		return nil, errors.New("output directory is required")
	}
	fragDir := filepath.Join(w.Dir, "fragments")
	if err := os.MkdirAll(fragDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	put := func(path string, data []byte) error {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}
	putJSON := func(path string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return put(path, append(data, '\n'))
	}

	if err := putJSON(filepath.Join(w.Dir, "report.json"), r); err != nil {
		return written, err
	}
	if r.Metadata != nil {
		if err := putJSON(filepath.Join(w.Dir, "metadata.json"), r.Metadata); err != nil {
			return written, err
		}
	}
	for _, t := range r.Tasks {
		if t.Err != nil || t.Error != "" {
			continue
		}
		if err := put(filepath.Join(w.Dir, fileSafe(t.Name)+".txt"), []byte(t.Text)); err != nil {
			return written, err
		}
	}
	for _, f := range r.Fragments {
		if err := put(filepath.Join(fragDir, "fragment_"+fileSafe(f.ID)+".txt"), []byte(f.Text)); err != nil {
			return written, err
		}
	}
	for _, d := range r.Decoded {
		if err := put(filepath.Join(fragDir, fileSafe(d.ID)+".txt"), []byte(d.Text)); err != nil {
			return written, err
		}
	}
	if r.FinalFlag != "" {
		if err := put(filepath.Join(w.Dir, "final_flag.txt"), []byte(r.FinalFlag)); err != nil {
			return written, err
		}
	}
	return written, nil
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}
