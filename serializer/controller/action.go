package controller

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/serializer"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

// namesAction is an action to print the table of the primitive contracts.
//
// - implements tool.ActionTemplate
type namesAction struct{}

// Execute implements tool.ActionTemplate.
func (namesAction) Execute(ctx tool.Context) error {
	for _, c := range contract.Primitives() {
		name := c.Name()

		fmt.Fprintf(ctx.Out, "%-14s %-54s %s\n", name.Local, name.Namespace, c.Type())
	}

	return nil
}

// checkAction is an action to verify a document without its contracts.
//
// - implements tool.ActionTemplate
type checkAction struct{}

// Execute implements tool.ActionTemplate. It reads the document from the file
// or the standard input and prints the report.
func (checkAction) Execute(ctx tool.Context) error {
	var settings Settings
	err := ctx.Injector.Resolve(&settings)
	if err != nil {
		return xerrors.Errorf("couldn't resolve the settings: %v", err)
	}

	maxItems := settings.MaxItems
	if ctx.Flags.Int("max-items") > 0 {
		maxItems = ctx.Flags.Int("max-items")
	}

	in := ctx.In

	path := ctx.Flags.Path("file")
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return xerrors.Errorf("couldn't open document: %v", err)
		}

		defer file.Close()

		in = file
	}

	report, err := serializer.Check(xmlio.NewReader(bufio.NewReader(in)), maxItems)
	if err != nil {
		return xerrors.Errorf("invalid document: %w", err)
	}

	PrintReport(ctx.Out, report)

	return nil
}

// PrintReport writes the report in a human readable form.
func PrintReport(out io.Writer, report serializer.Report) {
	fmt.Fprintf(out, "root: %s\n", report.Root)
	fmt.Fprintf(out, "elements: %d\n", report.Elements)
	fmt.Fprintf(out, "ids: %d\n", report.IDs)
	fmt.Fprintf(out, "refs: %d\n", report.Refs)
	fmt.Fprintf(out, "nils: %d\n", report.Nils)

	for _, name := range report.Types {
		fmt.Fprintf(out, "type: %s\n", name)
	}
}

// metricsAction is an action to print the collectors of the module.
//
// - implements tool.ActionTemplate
type metricsAction struct{}

// Execute implements tool.ActionTemplate. The collectors are registered in a
// dedicated registry so that the action can run more than once.
func (metricsAction) Execute(ctx tool.Context) error {
	registry := prometheus.NewRegistry()

	for _, c := range dcxml.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			return xerrors.Errorf("failed to register: %v", err)
		}
	}

	families, err := registry.Gather()
	if err != nil {
		return xerrors.Errorf("failed to gather: %v", err)
	}

	for _, family := range families {
		_, err = expfmt.MetricFamilyToText(ctx.Out, family)
		if err != nil {
			return xerrors.Errorf("failed to write: %v", err)
		}
	}

	return nil
}
