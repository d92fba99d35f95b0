// This file contains the implementation of the CLI builder.

package tool

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/cli"
	"go.dedis.ch/dcxml/cli/ucli"
	"golang.org/x/xerrors"
)

// CLIBuilder is an application builder that will build a CLI made of the
// commands of the initializers.
//
// - implements tool.Builder
// - implements cli.Builder
type CLIBuilder struct {
	*ucli.Builder

	inits  []Initializer
	in     io.Reader
	writer io.Writer
}

// NewBuilder returns a new builder writing to the standard output.
func NewBuilder(name string, inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(name, nil, nil, inits...)
}

// NewBuilderWithCfg returns a new builder with specific input and output.
func NewBuilderWithCfg(name string, in io.Reader, out io.Writer, inits ...Initializer) *CLIBuilder {
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	builder := ucli.NewBuilder(name, nil,
		cli.PathFlag{
			Name:  "config",
			Usage: "path to the settings file",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "print the debug messages",
		},
	)

	builder.SetUsage("data-contract XML serialization tool")
	builder.SetWriter(out)

	return &CLIBuilder{
		Builder: builder,
		inits:   inits,
		in:      in,
		writer:  out,
	}
}

// MakeAction implements tool.Builder. It creates a CLI action from the
// template. The initializers are started before the template is executed, and
// stopped in the reverse order afterwards.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	return func(flags cli.Flags) error {
		if flags.Bool("verbose") {
			dcxml.Logger = dcxml.Logger.Level(zerolog.DebugLevel)
		}

		injector := NewInjector()

		started := 0

		defer func() {
			for i := started - 1; i >= 0; i-- {
				err := b.inits[i].OnStop(injector)
				if err != nil {
					dcxml.Logger.Warn().Err(err).Msg("initializer failed to stop")
				}
			}
		}()

		for _, initializer := range b.inits {
			err := initializer.OnStart(flags, injector)
			if err != nil {
				return xerrors.Errorf("couldn't start the initializer: %v", err)
			}

			started++
		}

		ctx := Context{
			Injector: injector,
			Flags:    flags,
			In:       b.in,
			Out:      b.writer,
		}

		return tmpl.Execute(ctx)
	}
}

// Build implements cli.Builder. It returns the application.
func (b *CLIBuilder) Build() cli.Application {
	for _, initializer := range b.inits {
		initializer.SetCommands(b)
	}

	return b.Builder.Build()
}
