// Package main implements the dcxml command line tool.
//
//	dcxml names
//	dcxml check --file document.xml
//	dcxml --config settings.yaml archive --db archive.db put --file document.xml
//	dcxml archive --db archive.db list --root Person
//	dcxml metrics
//
// The settings file is a yaml document with one section per module:
//
//	serializer:
//	  max_items: 65536
//	archive:
//	  path: archive.db
//	  bucket: documents
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/dcxml/cli/tool"
	serializer "go.dedis.ch/dcxml/serializer/controller"
	store "go.dedis.ch/dcxml/store/controller"
)

type config struct {
	In     io.Reader
	Writer io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{In: os.Stdin, Writer: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	builder := tool.NewBuilderWithCfg("dcxml", cfg.In, cfg.Writer,
		serializer.NewController(),
		store.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
