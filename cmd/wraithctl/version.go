package main

import "fmt"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func (a *app) runVersion(args []string) int {
	fs := a.flagSet("version")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(a.stderr, "version takes no arguments")
		return 2
	}
	fmt.Fprintln(a.stdout, version)
	return 0
}
