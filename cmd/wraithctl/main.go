package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const cliBanner = "wraith steganography toolkit (wraithctl)"

const usageCommands = `commands:
  analyze <image>          run the full extraction, decode and decryption pipeline
  extract <image>          read the LSB stream of one channel
  spiral                   print spiral traversal coordinates
  metadata <image>         scan text chunks, comments and image properties
  decode <text|->          remove encoding layers, or auto-detect them
  encode <text|->          apply encoding layers
  decrypt <file|->         decrypt with a key
  encrypt <file|->         encrypt with a key
  assemble [fragments...]  join fragments and optionally decrypt the result
  history list|show|delete stored analysis runs
  recipe save|list|show|delete
                           named layer chains
  version                  print the version
  self-update              install the newest release
`

// app carries the standard streams so commands can be exercised in tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wraithctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print wraithctl version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, cliBanner)
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "usage: wraithctl [flags] <command> [args]")
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, usageCommands)
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	switch rest[0] {
	case "analyze":
		return a.runAnalyze(rest[1:])
	case "extract":
		return a.runExtract(rest[1:])
	case "spiral":
		return a.runSpiral(rest[1:])
	case "metadata":
		return a.runMetadata(rest[1:])
	case "decode":
		return a.runDecode(rest[1:])
	case "encode":
		return a.runEncode(rest[1:])
	case "decrypt":
		return a.runDecrypt(rest[1:])
	case "encrypt":
		return a.runEncrypt(rest[1:])
	case "assemble":
		return a.runAssemble(rest[1:])
	case "history":
		if len(rest) < 2 {
			fmt.Fprintln(stderr, "history subcommand required")
			return 2
		}
		switch rest[1] {
		case "list":
			return a.runHistoryList(rest[2:])
		case "show":
			return a.runHistoryShow(rest[2:])
		case "delete":
			return a.runHistoryDelete(rest[2:])
		default:
			fmt.Fprintf(stderr, "unknown history subcommand: %s\n", rest[1])
			return 2
		}
	case "recipe":
		if len(rest) < 2 {
			fmt.Fprintln(stderr, "recipe subcommand required")
			return 2
		}
		switch rest[1] {
		case "save":
			return a.runRecipeSave(rest[2:])
		case "list":
			return a.runRecipeList(rest[2:])
		case "show":
			return a.runRecipeShow(rest[2:])
		case "delete":
			return a.runRecipeDelete(rest[2:])
		default:
			fmt.Fprintf(stderr, "unknown recipe subcommand: %s\n", rest[1])
			return 2
		}
	case "version":
		return a.runVersion(rest[1:])
	case "self-update":
		return a.runSelfUpdate(rest[1:])
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", rest[0])
		fs.Usage()
		return 2
	}
}
