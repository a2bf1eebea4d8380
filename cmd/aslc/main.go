// Command aslc compiles a restricted-JavaScript function into an AWS
// States Language document, in the spectool tradition of a small
// multi-subcommand CLI dispatching on os.Args[1].
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/aslcompile/aslc/cache"
	"github.com/aslcompile/aslc/core"
	"github.com/aslcompile/aslc/integration"
	"github.com/aslcompile/aslc/report"
	"github.com/aslcompile/aslc/surfaceast"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: aslc <command> [args]

commands:
  compile [-manifests DIR] [-role ROLE] FILE   compile FILE to ASL JSON on stdout
  dot [-manifests DIR] [-role ROLE] FILE       compile FILE and render a dot graph on stdout
  html [-manifests DIR] [-role ROLE] FILE      compile FILE and render an HTML report on stdout
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "compile":
		err = runCompile(os.Args[2:])
	case "dot":
		err = runDot(os.Args[2:])
	case "html":
		err = runHTML(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "aslc: %v\n", err)
		os.Exit(1)
	}
}

type cliArgs struct {
	manifests string
	role      string
	file      string
}

func parseArgs(args []string) (*cliArgs, error) {
	c := &cliArgs{}
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-manifests":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-manifests requires a directory")
			}
			c.manifests = args[i]
		case "-role":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-role requires a value")
			}
			c.role = args[i]
		default:
			if c.file != "" {
				return nil, fmt.Errorf("unexpected argument %q", args[i])
			}
			c.file = args[i]
		}
		i++
	}
	if c.file == "" {
		return nil, fmt.Errorf("missing input file")
	}
	return c, nil
}

func compileFile(c *cliArgs) (*core.ASLDoc, error) {
	src, err := ioutil.ReadFile(c.file)
	if err != nil {
		return nil, err
	}
	fn, err := surfaceast.ParseFunction(string(src))
	if err != nil {
		return nil, err
	}

	opts := &core.CompileOptions{Role: c.role}
	if c.manifests != "" {
		m, err := integration.LoadDir(c.manifests)
		if err != nil {
			return nil, err
		}
		opts.Lookup = m
	}

	mem := cache.NewMemCache()
	return cache.CompileCached(mem, fn, opts)
}

func runCompile(args []string) error {
	c, err := parseArgs(args)
	if err != nil {
		return err
	}
	doc, err := compileFile(c)
	if err != nil {
		return err
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", js)
	return nil
}

func runDot(args []string) error {
	c, err := parseArgs(args)
	if err != nil {
		return err
	}
	doc, err := compileFile(c)
	if err != nil {
		return err
	}
	return report.Dot(doc, os.Stdout, "")
}

func runHTML(args []string) error {
	c, err := parseArgs(args)
	if err != nil {
		return err
	}
	doc, err := compileFile(c)
	if err != nil {
		return err
	}
	return report.HTML(doc, nil, os.Stdout)
}
