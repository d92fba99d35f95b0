// Package controller implements the initializer of the archive commands. It
// opens the database when a path is provided and injects the archive.
//
// Documentation Last Review: 17.10.2026
package controller

import (
	"time"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/cli"
	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/store"
	"go.dedis.ch/dcxml/store/kv"
	"golang.org/x/xerrors"
)

// Settings are the options of the archive read from the settings file.
type Settings struct {
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`

	// LockTimeout is the time to wait for another process using the
	// database, e.g. "5s".
	LockTimeout string `yaml:"lock_timeout"`
}

type fileSettings struct {
	Archive Settings `yaml:"archive"`
}

var openDB = kv.New

// NewController returns a new initializer for the archive commands.
func NewController() tool.Initializer {
	return controller{}
}

// controller is an initializer with the commands to manage an archive of
// documents.
//
// - implements tool.Initializer
type controller struct{}

// SetCommands implements tool.Initializer.
func (controller) SetCommands(builder tool.Builder) {
	cmd := builder.SetCommand("archive")
	cmd.SetDescription("manage an archive of documents")
	cmd.SetFlags(cli.PathFlag{
		Name:  "db",
		Usage: "path to the database, overrides the settings",
	})

	sub := cmd.SetSubCommand("put")
	sub.SetDescription("check a document and store it")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "key",
			Usage: "key of the document, or a generated one if empty",
		},
		cli.PathFlag{
			Name:  "file",
			Usage: "path to the document, or the standard input if empty",
		},
	)
	sub.SetAction(builder.MakeAction(putAction{}))

	sub = cmd.SetSubCommand("get")
	sub.SetDescription("print a document")
	sub.SetFlags(cli.StringFlag{
		Name:     "key",
		Usage:    "key of the document",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(getAction{}))

	sub = cmd.SetSubCommand("list")
	sub.SetDescription("print the keys of the documents")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "prefix",
			Usage: "only print the keys with this prefix",
		},
		cli.StringFlag{
			Name:  "root",
			Usage: "only print the keys of the documents with this root element",
		},
	)
	sub.SetAction(builder.MakeAction(listAction{}))

	sub = cmd.SetSubCommand("delete")
	sub.SetDescription("remove a document")
	sub.SetFlags(cli.StringFlag{
		Name:     "key",
		Usage:    "key of the document",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(deleteAction{}))
}

// OnStart implements tool.Initializer. It opens the database and injects it
// alongside the archive when a path is either given by the flag or the
// settings. Nothing is injected otherwise.
func (controller) OnStart(flags cli.Flags, inj tool.Injector) error {
	file := fileSettings{Archive: Settings{Bucket: store.DefaultBucket}}

	err := tool.LoadSettings(flags.Path("config"), &file)
	if err != nil {
		return xerrors.Errorf("couldn't load settings: %v", err)
	}

	path := flags.Path("db")
	if path == "" {
		path = file.Archive.Path
	}

	if path == "" {
		return nil
	}

	var opts []kv.Option

	if file.Archive.LockTimeout != "" {
		timeout, err := time.ParseDuration(file.Archive.LockTimeout)
		if err != nil {
			return xerrors.Errorf("invalid lock timeout: %v", err)
		}

		opts = append(opts, kv.WithLockTimeout(timeout))
	}

	db, err := openDB(path, opts...)
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	inj.Inject(db)
	inj.Inject(store.NewArchive(db, store.WithBucket(file.Archive.Bucket)))

	dcxml.Logger.Debug().Str("path", path).Msg("archive opened")

	return nil
}

// OnStop implements tool.Initializer. It closes the database if it was opened.
func (controller) OnStop(inj tool.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return nil
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	return nil
}
