package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/fragments"
	"github.com/RowanDark/wraith/internal/redact"
)

func (a *app) runAssemble(args []string) int {
	fs := a.flagSet("assemble")
	dir := fs.String("dir", "", "directory whose files are fragments, named by file")
	pattern := fs.String("pattern", "*", "glob selecting fragment files in -dir")
	var frags stringList
	fs.Var(&frags, "frag", "fragment as id=text (repeatable)")
	order := fs.String("order", "", "comma-separated assembly order (defaults to natural ID order)")
	sep := fs.String("sep", "", "separator inserted between fragments")
	key := fs.String("key", "", "decrypt the assembled payload with this key")
	method := fs.String("method", "auto", "auto, xor or aes-cbc")
	armored := fs.Bool("base64", false, "base64-decode the assembled payload before decrypting")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}

	ctx, stop := signalContext()
	defer stop()
	set, err := collectFragments(ctx, *dir, *pattern, frags, positional)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	if len(set) == 0 {
		fmt.Fprintln(a.stderr, "no fragments given; use -dir, -frag or positional text")
		return 2
	}

	assembled, err := fragments.Assemble(set, fragments.ParseOrder(*order), fragments.WithSeparator([]byte(*sep)))
	if err != nil {
		var oerr *fragments.OrderError
		if errors.As(err, &oerr) {
			fmt.Fprintf(a.stderr, "%v (fragments: %s)\n", err, strings.Join(set.IDs(), ","))
			return 2
		}
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	fmt.Fprintf(a.stderr, "assembled %s\n", fragments.Describe(set))

	if *key == "" {
		if err := a.writeOutput("", assembled); err != nil {
			return 1
		}
		return 0
	}

	m, err := cipher.ParseMethod(*method)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	data := assembled
	if *armored {
		if data, err = unarmor(assembled); err != nil {
			fmt.Fprintln(a.stderr, err)
			return 1
		}
	}
	res, err := cipher.Decrypt(data, []byte(*key), m)
	if err != nil {
		fmt.Fprintf(a.stderr, "decrypt with key %s: %v\n", redact.Secret(*key), err)
		return 1
	}
	fmt.Fprintf(a.stderr, "method %s (score %.2f)\n", res.Method, res.Score)
	if err := a.writeOutput("", res.Output); err != nil {
		return 1
	}
	return 0
}

// collectFragments merges fragments from a directory, id=text flags and
// positional literals. IDs must be unique across all of them.
func collectFragments(ctx context.Context, dir, pattern string, named, literals []string) (fragments.Set, error) {
	var sources []fragments.Source
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		sources = append(sources, fragments.FSSource{FS: os.DirFS(dir), Pattern: pattern})
	}
	if len(named) > 0 {
		m := make(fragments.MapSource, len(named))
		for _, kv := range named {
			id, text, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(id) == "" {
				return nil, fmt.Errorf("-frag %q must be id=text", kv)
			}
			if _, dup := m[id]; dup {
				return nil, fmt.Errorf("fragment %q given twice", id)
			}
			m[id] = text
		}
		sources = append(sources, m)
	}
	if len(literals) > 0 {
		sources = append(sources, fragments.Literals(literals))
	}

	set := make(fragments.Set)
	for _, src := range sources {
		part, err := fragments.Collect(ctx, src, fragments.ProvenanceFile)
		if err != nil {
			return nil, err
		}
		for _, id := range part.IDs() {
			if err := set.Add(part[id]); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}
