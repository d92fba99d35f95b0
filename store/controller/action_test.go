package controller

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/cli/tool"
	"go.dedis.ch/dcxml/qname"
	sercontroller "go.dedis.ch/dcxml/serializer/controller"
	"go.dedis.ch/dcxml/store"
)

const document = `<Root xmlns="urn:a" xmlns:z="` + qname.SerializationNamespace + `" z:Id="i1">
	<Next z:Ref="i1"/>
</Root>`

const dangling = `<Root xmlns="urn:a" xmlns:z="` + qname.SerializationNamespace + `">
	<Next z:Ref="i1"/>
</Root>`

func TestArchive_Commands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "test.db")

	out := run(t, document, "archive", "--db", db, "put", "--key", "zz-doc1")
	require.Equal(t, "zz-doc1\n", out)

	out = run(t, `<Other xmlns="urn:b"/>`, "archive", "--db", db, "put")
	generated := strings.TrimSpace(out)
	require.Len(t, generated, 20)

	out = run(t, "", "archive", "--db", db, "get", "--key", "zz-doc1")
	require.Equal(t, document, out)

	out = run(t, "", "archive", "--db", db, "list")
	require.Equal(t, generated+"\nzz-doc1\n", out)

	out = run(t, "", "archive", "--db", db, "list", "--prefix", "zz")
	require.Equal(t, "zz-doc1\n", out)

	out = run(t, "", "archive", "--db", db, "list", "--root", "Other")
	require.Equal(t, generated+"\n", out)

	out = run(t, "", "archive", "--db", db, "delete", "--key", "zz-doc1")
	require.Empty(t, out)

	_, err := runErr(t, "", "archive", "--db", db, "get", "--key", "zz-doc1")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Contains(t, err.Error(), "couldn't get: ")
}

func TestPutAction_Invalid(t *testing.T) {
	db := filepath.Join(t.TempDir(), "test.db")

	_, err := runErr(t, dangling, "archive", "--db", db, "put", "--key", "doc")
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "invalid document: ")

	_, err = runErr(t, "", "archive", "--db", db, "put", "--file", filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't read document: ")

	out := run(t, "", "archive", "--db", db, "list")
	require.Empty(t, out)
}

func TestActions_NoArchive(t *testing.T) {
	ctx := tool.Context{
		Injector: tool.NewInjector(),
		Flags:    tool.FlagSet{},
	}

	templates := []tool.ActionTemplate{putAction{}, getAction{}, listAction{}, deleteAction{}}

	for _, tmpl := range templates {
		err := tmpl.Execute(ctx)
		require.Error(t, err)
		require.Contains(t, err.Error(), "couldn't resolve the archive, did you set --db?: ")
	}
}

func TestPutAction_NoSettings(t *testing.T) {
	archive, clean := makeArchive(t)
	defer clean()

	inj := tool.NewInjector()
	inj.Inject(archive)

	err := putAction{}.Execute(tool.Context{Injector: inj, Flags: tool.FlagSet{}})
	require.EqualError(t, err, "couldn't resolve the settings: "+
		"couldn't find dependency for 'controller.Settings'")
}

// -----------------------------------------------------------------------------
// Utility functions

func run(t *testing.T, in string, args ...string) string {
	out, err := runErr(t, in, args...)
	require.NoError(t, err)

	return out
}

func runErr(t *testing.T, in string, args ...string) (string, error) {
	out := new(bytes.Buffer)

	builder := tool.NewBuilderWithCfg("dcxml", strings.NewReader(in), out,
		sercontroller.NewController(), NewController())

	err := builder.Build().Run(append([]string{"dcxml"}, args...))

	return out.String(), err
}

func makeArchive(t *testing.T) (*store.Archive, func()) {
	inj := tool.NewInjector()

	err := NewController().OnStart(tool.FlagSet{"db": filepath.Join(t.TempDir(), "test.db")}, inj)
	require.NoError(t, err)

	var archive *store.Archive
	require.NoError(t, inj.Resolve(&archive))

	return archive, func() {
		NewController().OnStop(inj)
	}
}
