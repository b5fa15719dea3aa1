package main

import (
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go.bask.dev/pkg"
)

// sourceFile is the fixed compilation input, looked up in the working
// directory.
const sourceFile = "test.bs"

var (
	redColor    = color.New(color.FgRed)
	yellowColor = color.New(color.FgYellow)
	cyanColor   = color.New(color.FgCyan)
)

func main() {
	var (
		dumpTokens bool
		dumpTree   bool
		dumpIR     bool
	)

	root := &cobra.Command{
		Use:           "bask",
		Short:         "Compile " + sourceFile + " in the working directory to " + bask.ObjectFile,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Unrecognized arguments are ignored, not rejected.
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bask.NewCompiler(bask.HostTarget(), bask.Options{
				DumpTokens: dumpTokens,
				DumpTree:   dumpTree,
				DumpIR:     dumpIR,
			})

			return c.Compile(sourceFile)
		},
	}

	root.Flags().BoolVar(&dumpTokens, "dl", false, "print the token stream")
	root.Flags().BoolVar(&dumpTree, "dp", false, "print the parsed tree")
	root.Flags().BoolVar(&dumpIR, "dc", false, "write the IR to "+bask.IRFile+" and stderr")

	root.AddCommand(replCommand())

	if err := root.Execute(); err != nil {
		redColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively lower source lines to LLVM IR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(os.Stdout)
		},
	}
}

func runRepl(out io.Writer) error {
	rl, err := readline.New("bask >>> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	cyanColor.Fprintln(out, "Type a line to see its IR, '.exit' to quit")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}

			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			return nil
		}

		llvm, err := lowerLine(line)
		if err != nil {
			redColor.Fprintln(out, err)
			continue
		}

		yellowColor.Fprint(out, llvm)
	}
}

// lowerLine runs one source line through the whole frontend and renders the
// resulting module.
func lowerLine(line string) (string, error) {
	toks, err := bask.NewLexer().Tokenize(line)
	if err != nil {
		return "", err
	}

	tree, err := bask.NewParser().Parse(toks)
	if err != nil {
		return "", err
	}

	gen := bask.NewGenerator()
	if err := gen.Generate(tree); err != nil {
		return "", err
	}

	return gen.Module().String(), nil
}
