package main

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/config"
	"github.com/RowanDark/wraith/internal/redact"
)

// layerFlags resolves -layers or -recipe into a layer chain. An empty
// chain means neither was given.
func (a *app) layerFlags(layersFlag, recipeFlag string) ([]cipher.Layer, error) {
	if layersFlag != "" && recipeFlag != "" {
		return nil, errors.New("-layers and -recipe are mutually exclusive")
	}
	if recipeFlag != "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		r, err := a.lookupRecipe(cfg, recipeFlag)
		if err != nil {
			return nil, err
		}
		return r.Layers, nil
	}
	return cipher.ParseLayers(splitList(layersFlag))
}

func (a *app) runDecode(args []string) int {
	fs := a.flagSet("decode")
	layersFlag := fs.String("layers", "", "comma-separated layers in the order they were applied")
	recipeFlag := fs.String("recipe", "", "named recipe supplying the layers")
	auto := fs.Bool("auto", false, "detect the layers (default when no layers are given)")
	fromFile := fs.Bool("file", false, "treat the argument as a file path")
	verbose := fs.Bool("v", false, "print every scored candidate")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "decode requires exactly one input (text, file with -file, or -)")
		return 2
	}
	layers, err := a.layerFlags(*layersFlag, *recipeFlag)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	input, err := a.readInput(positional[0], *fromFile)
	if err != nil {
		fmt.Fprintf(a.stderr, "read input: %v\n", err)
		return 1
	}

	var res cipher.DecodeResult
	if *auto || len(layers) == 0 {
		res = cipher.AutoDecode(input)
	} else {
		res = cipher.Decode(input, layers)
		for _, step := range res.Steps {
			if !step.OK {
				fmt.Fprintf(a.stderr, "warning: %s layer not removed: %v\n", step.Layer, step.Err)
			}
		}
	}
	fmt.Fprintf(a.stderr, "chain %s (score %.2f)\n", res.Label, res.Score)
	if *verbose {
		for _, c := range res.Candidates {
			state := ""
			if c.Rejected {
				state = " rejected"
			}
			fmt.Fprintf(a.stderr, "  %-20s %.2f%s\n", c.Label, c.Score, state)
		}
	}
	if err := a.writeOutput("", res.Output); err != nil {
		return 1
	}
	return 0
}

func (a *app) runEncode(args []string) int {
	fs := a.flagSet("encode")
	layersFlag := fs.String("layers", "", "comma-separated layers to apply in order")
	recipeFlag := fs.String("recipe", "", "named recipe supplying the layers")
	fromFile := fs.Bool("file", false, "treat the argument as a file path")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "encode requires exactly one input (text, file with -file, or -)")
		return 2
	}
	layers, err := a.layerFlags(*layersFlag, *recipeFlag)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	if len(layers) == 0 {
		fmt.Fprintln(a.stderr, "encode requires -layers or -recipe")
		return 2
	}
	input, err := a.readInput(positional[0], *fromFile)
	if err != nil {
		fmt.Fprintf(a.stderr, "read input: %v\n", err)
		return 1
	}
	out, err := cipher.Encode(input, layers)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	if err := a.writeOutput("", out); err != nil {
		return 1
	}
	return 0
}

func (a *app) runDecrypt(args []string) int {
	fs := a.flagSet("decrypt")
	key := fs.String("key", "", "decryption key")
	method := fs.String("method", "auto", "auto, xor or aes-cbc")
	armored := fs.Bool("base64", false, "base64-decode the input first")
	out := fs.String("out", "", "write plaintext to this file instead of stdout")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "decrypt requires exactly one input file (or -)")
		return 2
	}
	if *key == "" {
		fmt.Fprintln(a.stderr, "-key is required")
		return 2
	}
	m, err := cipher.ParseMethod(*method)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	data, err := a.readInput(positional[0], true)
	if err != nil {
		fmt.Fprintf(a.stderr, "read input: %v\n", err)
		return 1
	}
	if *armored {
		if data, err = unarmor(data); err != nil {
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
	if err := a.writeOutput(*out, res.Output); err != nil {
		fmt.Fprintf(a.stderr, "write plaintext: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runEncrypt(args []string) int {
	fs := a.flagSet("encrypt")
	key := fs.String("key", "", "encryption key")
	method := fs.String("method", "xor", "xor or aes-cbc")
	armor := fs.Bool("base64", false, "base64-encode the ciphertext")
	out := fs.String("out", "", "write ciphertext to this file instead of stdout")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "encrypt requires exactly one input file (or -)")
		return 2
	}
	if *key == "" {
		fmt.Fprintln(a.stderr, "-key is required")
		return 2
	}
	m, err := cipher.ParseMethod(*method)
	if err != nil || m == cipher.Auto {
		fmt.Fprintln(a.stderr, "-method must be xor or aes-cbc")
		return 2
	}
	plain, err := a.readInput(positional[0], true)
	if err != nil {
		fmt.Fprintf(a.stderr, "read input: %v\n", err)
		return 1
	}
	ciphertext, err := cipher.Encrypt(plain, []byte(*key), m, rand.Reader)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 1
	}
	if *armor {
		ciphertext, _ = cipher.Encode(ciphertext, []cipher.Layer{cipher.Base64})
	}
	if *out == "" && !*armor {
		fmt.Fprintln(a.stderr, "refusing to write binary ciphertext to stdout; use -out or -base64")
		return 2
	}
	if err := a.writeOutput(*out, ciphertext); err != nil {
		fmt.Fprintf(a.stderr, "write ciphertext: %v\n", err)
		return 1
	}
	return 0
}

func unarmor(data []byte) ([]byte, error) {
	codec, ok := cipher.GetCodec(cipher.Base64)
	if !ok {
		return nil, errors.New("base64 codec not registered")
	}
	out, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("base64 input: %w", err)
	}
	return out, nil
}
