// Package cli defines the builder of the dcxml command line. Each package
// declares its commands through the builder, independently of the library
// that parses the arguments:
//
//	cmd := builder.SetCommand("check")
//	cmd.SetDescription("verify the identifiers and references of a document")
//	cmd.SetFlags(
//		cli.PathFlag{Name: "file", Usage: "path to the document"},
//		cli.IntFlag{Name: "max-items", Value: 65536},
//	)
//	cmd.SetAction(func(flags cli.Flags) error {
//		return check(flags.Path("file"), flags.Int("max-items"))
//	})
//
// The archive commands use subcommands, e.g. "dcxml archive put --file doc.xml".
package cli

// Builder declares the commands of an application and builds it.
type Builder interface {
	// SetCommand creates a new command with the given name and returns its
	// builder.
	SetCommand(name string) CommandBuilder

	// Build returns the application.
	Build() Application
}

// Application runs a command line.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder declares the description, the flags and the action of a
// command.
type CommandBuilder interface {
	SetDescription(value string)

	SetFlags(...Flag)

	SetAction(Action)

	// SetSubCommand creates a subcommand, which sees the flags of its parent.
	SetSubCommand(name string) CommandBuilder
}

// Action is the function run by a command.
type Action func(Flags) error

// Flag is the definition of a flag, one of the types of this package.
type Flag interface {
	Flag()
}

// Flags provides the values of the flags to an action. The flags of the parent
// commands and the global flags are visible as well.
type Flags interface {
	String(name string) string

	// Path returns the value of a path flag.
	Path(name string) string

	Int(name string) int

	Bool(name string) bool
}
