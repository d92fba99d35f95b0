package controller

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/serializer"
)

const document = `<Root xmlns="urn:a" xmlns:z="` + qname.SerializationNamespace + `" z:Id="i1">
	<Next z:Ref="i1"/>
</Root>`

func TestNamesAction_Execute(t *testing.T) {
	out := new(bytes.Buffer)

	err := namesAction{}.Execute(tool.Context{Out: out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 21)
	require.Regexp(t, `^boolean +http://www.w3.org/2001/XMLSchema +bool$`, lines[0])
	require.Regexp(t, `^long +http://www.w3.org/2001/XMLSchema +int64$`, lines[7])
}

func TestCheckAction_Execute(t *testing.T) {
	inj := tool.NewInjector()
	inj.Inject(DefaultSettings())

	out := new(bytes.Buffer)

	ctx := tool.Context{
		Injector: inj,
		Flags:    tool.FlagSet{},
		In:       strings.NewReader(document),
		Out:      out,
	}

	err := checkAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "root: {urn:a}Root\nelements: 2\nids: 1\nrefs: 1\nnils: 0\n", out.String())

	path := filepath.Join(t.TempDir(), "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0644))

	out.Reset()
	ctx.In = nil
	ctx.Flags = tool.FlagSet{"file": path}

	err = checkAction{}.Execute(ctx)
	require.NoError(t, err)
	require.Contains(t, out.String(), "elements: 2\n")

	ctx.Flags = tool.FlagSet{"file": path, "max-items": 1}

	err = checkAction{}.Execute(ctx)
	require.ErrorIs(t, err, dcxml.ErrQuota)
	require.Contains(t, err.Error(), "invalid document: ")

	ctx.Flags = tool.FlagSet{"file": path + ".missing"}

	err = checkAction{}.Execute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't open document: ")
}

func TestCheckAction_NoSettings(t *testing.T) {
	ctx := tool.Context{
		Injector: tool.NewInjector(),
	}

	err := checkAction{}.Execute(ctx)
	require.EqualError(t, err, "couldn't resolve the settings: "+
		"couldn't find dependency for 'controller.Settings'")
}

func TestPrintReport(t *testing.T) {
	out := new(bytes.Buffer)

	PrintReport(out, serializer.Report{
		Root:     qname.New("Root", ""),
		Elements: 3,
		Types:    []qname.Name{qname.New("Shape", "urn:p")},
	})

	require.Equal(t, "root: Root\nelements: 3\nids: 0\nrefs: 0\nnils: 0\ntype: {urn:p}Shape\n", out.String())
}

func TestMetricsAction_Execute(t *testing.T) {
	s, err := serializer.New(nodeType)
	require.NoError(t, err)

	_, err = s.Marshal(&testNode{Name: "a"})
	require.NoError(t, err)

	out := new(bytes.Buffer)

	err = metricsAction{}.Execute(tool.Context{Out: out})
	require.NoError(t, err)
	require.Contains(t, out.String(), "# TYPE dcxml_operations_total counter")
	require.Contains(t, out.String(), `dcxml_operations_total{direction="write"}`)

	// The action can run again in the same process.
	err = metricsAction{}.Execute(tool.Context{Out: out})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

var nodeType = reflect.TypeOf(&testNode{})

type testNode struct {
	Name string
	Next *testNode
}
