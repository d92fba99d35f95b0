// Package controller implements the initializer of the serializer commands.
//
// Documentation Last Review: 17.10.2026
package controller

import (
	"go.dedis.ch/dcxml/cli"
	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/serializer"
	"golang.org/x/xerrors"
)

// Settings are the options of the serializer read from the settings file.
type Settings struct {
	MaxItems            int  `yaml:"max_items"`
	PreserveReferences  bool `yaml:"preserve_references"`
	TypeHints           bool `yaml:"type_hints"`
	IgnoreExtensionData bool `yaml:"ignore_extension_data"`
}

// DefaultSettings returns the settings used when no file is provided.
func DefaultSettings() Settings {
	return Settings{
		MaxItems: serializer.DefaultMaxItems,
	}
}

// Options returns the serializer options matching the settings.
func (s Settings) Options() []serializer.Option {
	opts := []serializer.Option{serializer.WithMaxItems(s.MaxItems)}

	if s.PreserveReferences {
		opts = append(opts, serializer.WithPreserveReferences())
	}

	if s.TypeHints {
		opts = append(opts, serializer.WithTypeHints())
	}

	if s.IgnoreExtensionData {
		opts = append(opts, serializer.WithIgnoreExtensionData())
	}

	return opts
}

type fileSettings struct {
	Serializer Settings `yaml:"serializer"`
}

// NewController returns a new initializer for the serializer commands.
func NewController() tool.Initializer {
	return controller{}
}

// controller is an initializer with the commands to inspect documents.
//
// - implements tool.Initializer
type controller struct{}

// SetCommands implements tool.Initializer. It sets the commands to list the
// primitive contracts, check a document and print the metrics.
func (controller) SetCommands(builder tool.Builder) {
	cmd := builder.SetCommand("names")
	cmd.SetDescription("print the names of the primitive contracts")
	cmd.SetAction(builder.MakeAction(namesAction{}))

	cmd = builder.SetCommand("check")
	cmd.SetDescription("verify the identifiers and references of a document")
	cmd.SetFlags(
		cli.PathFlag{
			Name:  "file",
			Usage: "path to the document, or the standard input if empty",
		},
		cli.IntFlag{
			Name:  "max-items",
			Usage: "maximum number of elements, overrides the settings",
		},
	)
	cmd.SetAction(builder.MakeAction(checkAction{}))

	cmd = builder.SetCommand("metrics")
	cmd.SetDescription("print the metrics in the text exposition format")
	cmd.SetAction(builder.MakeAction(metricsAction{}))
}

// OnStart implements tool.Initializer. It loads the settings and injects them.
func (controller) OnStart(flags cli.Flags, inj tool.Injector) error {
	file := fileSettings{Serializer: DefaultSettings()}

	err := tool.LoadSettings(flags.Path("config"), &file)
	if err != nil {
		return xerrors.Errorf("couldn't load settings: %v", err)
	}

	if file.Serializer.MaxItems <= 0 {
		return xerrors.Errorf("invalid maximum number of items: %d", file.Serializer.MaxItems)
	}

	inj.Inject(file.Serializer)

	return nil
}

// OnStop implements tool.Initializer.
func (controller) OnStop(tool.Injector) error {
	return nil
}
