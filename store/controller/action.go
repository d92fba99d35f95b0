package controller

import (
	"bytes"
	"fmt"
	"io/ioutil"

	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/serializer"
	sercontroller "go.dedis.ch/dcxml/serializer/controller"
	"go.dedis.ch/dcxml/store"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

func resolveArchive(ctx tool.Context) (*store.Archive, error) {
	var archive *store.Archive
	err := ctx.Injector.Resolve(&archive)
	if err != nil {
		return nil, xerrors.Errorf("couldn't resolve the archive, did you set --db?: %v", err)
	}

	return archive, nil
}

// putAction is an action to check a document and store it in the archive.
//
// - implements tool.ActionTemplate
type putAction struct{}

// Execute implements tool.ActionTemplate. It prints the key of the document.
func (putAction) Execute(ctx tool.Context) error {
	archive, err := resolveArchive(ctx)
	if err != nil {
		return err
	}

	var settings sercontroller.Settings
	err = ctx.Injector.Resolve(&settings)
	if err != nil {
		return xerrors.Errorf("couldn't resolve the settings: %v", err)
	}

	var doc []byte

	path := ctx.Flags.Path("file")
	if path != "" {
		doc, err = ioutil.ReadFile(path)
	} else {
		doc, err = ioutil.ReadAll(ctx.In)
	}

	if err != nil {
		return xerrors.Errorf("couldn't read document: %v", err)
	}

	_, err = serializer.Check(xmlio.NewReader(bytes.NewReader(doc)), settings.MaxItems)
	if err != nil {
		return xerrors.Errorf("invalid document: %w", err)
	}

	key := ctx.Flags.String("key")
	if key == "" {
		key, err = archive.Append(doc)
	} else {
		err = archive.Store(key, doc)
	}

	if err != nil {
		return xerrors.Errorf("couldn't put: %v", err)
	}

	fmt.Fprintln(ctx.Out, key)

	return nil
}

// getAction is an action to print a document of the archive.
//
// - implements tool.ActionTemplate
type getAction struct{}

// Execute implements tool.ActionTemplate.
func (getAction) Execute(ctx tool.Context) error {
	archive, err := resolveArchive(ctx)
	if err != nil {
		return err
	}

	doc, err := archive.Load(ctx.Flags.String("key"))
	if err != nil {
		return xerrors.Errorf("couldn't get: %w", err)
	}

	_, err = ctx.Out.Write(doc)
	if err != nil {
		return xerrors.Errorf("couldn't write: %v", err)
	}

	return nil
}

// listAction is an action to print the keys of the archive.
//
// - implements tool.ActionTemplate
type listAction struct{}

// Execute implements tool.ActionTemplate. The keys are filtered either by
// prefix or by root element.
func (listAction) Execute(ctx tool.Context) error {
	archive, err := resolveArchive(ctx)
	if err != nil {
		return err
	}

	var keys []string

	root := ctx.Flags.String("root")
	if root != "" {
		keys, err = archive.Find(root)
	} else {
		keys, err = archive.Keys(ctx.Flags.String("prefix"))
	}

	if err != nil {
		return xerrors.Errorf("couldn't list: %v", err)
	}

	for _, key := range keys {
		fmt.Fprintln(ctx.Out, key)
	}

	return nil
}

// deleteAction is an action to remove a document from the archive.
//
// - implements tool.ActionTemplate
type deleteAction struct{}

// Execute implements tool.ActionTemplate.
func (deleteAction) Execute(ctx tool.Context) error {
	archive, err := resolveArchive(ctx)
	if err != nil {
		return err
	}

	err = archive.Delete(ctx.Flags.String("key"))
	if err != nil {
		return xerrors.Errorf("couldn't delete: %v", err)
	}

	return nil
}
