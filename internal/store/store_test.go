// # internal/store/store_test.go
package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyspect/internal/model"
)

func testTree(t *testing.T) *model.TreeRoot {
	t.Helper()
	root := model.NewTreeRoot()

	m := model.NewModule("mod", model.Location{Filename: "mod.py", Line: 1})
	m.SourcePath = "mod.py"
	require.NoError(t, root.RegisterModule(m, nil))

	cls := model.NewClass("Widget", model.Location{Filename: "mod.py", Line: 3})
	cls.Docstring = "A widget."
	root.AddObject(cls, m)

	fn := model.NewFunction("build", model.Location{Filename: "mod.py", Line: 9})
	root.AddObject(fn, m)

	v := model.NewVariable("_internal", model.Location{Filename: "mod.py", Line: 12})
	root.AddObject(v, m)

	return root
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "symbols.db"), "testproj")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenValidation(t *testing.T) {
	_, err := Open("", "p")
	assert.Error(t, err)

	_, err = Open(t.TempDir(), "p")
	assert.Error(t, err, "directory path must be rejected")
}

func TestSyncAndLookup(t *testing.T) {
	s := openTestStore(t)
	root := testTree(t)
	require.NoError(t, s.SyncTree(root))

	recs, err := s.Lookup("mod.Widget")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Widget", recs[0].Name)
	assert.Equal(t, "mod", recs[0].ModuleName)
	assert.Equal(t, "class", recs[0].Kind)
	assert.Equal(t, 3, recs[0].Line)
	assert.Equal(t, "A widget.", recs[0].Docstring)
	assert.True(t, recs[0].Exported)

	recs, err = s.Lookup("mod._internal")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Exported)

	recs, err = s.Lookup("mod.missing")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSyncReplacesPreviousRows(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SyncTree(testTree(t)))

	// A second sync with a different tree removes stale rows.
	root := model.NewTreeRoot()
	m := model.NewModule("mod", model.Location{Filename: "mod.py", Line: 1})
	require.NoError(t, root.RegisterModule(m, nil))
	root.AddObject(model.NewFunction("other", model.Location{Filename: "mod.py", Line: 2}), m)
	require.NoError(t, s.SyncTree(root))

	recs, err := s.Lookup("mod.Widget")
	require.NoError(t, err)
	assert.Empty(t, recs, "rows from the previous sync must be gone")

	recs, err = s.Lookup("mod.other")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLoadTreeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	empty, err := s.LoadTree()
	require.NoError(t, err)
	assert.Nil(t, empty, "no stored tree yet")

	root := testTree(t)
	require.NoError(t, s.SyncTree(root))

	restored, err := s.LoadTree()
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, root.LoadID, restored.LoadID)
	assert.Equal(t, root.ObjectCount(), restored.ObjectCount())

	cls, ok := restored.Lookup("mod.Widget").(*model.Class)
	require.True(t, ok)
	assert.Equal(t, "A widget.", cls.Docstring)
}

func TestProjectsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.db")

	a, err := Open(path, "a")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.SyncTree(testTree(t)))

	b, err := Open(path, "b")
	require.NoError(t, err)
	defer b.Close()

	recs, err := b.Lookup("mod.Widget")
	require.NoError(t, err)
	assert.Empty(t, recs, "project b must not see project a's rows")

	tree, err := b.LoadTree()
	require.NoError(t, err)
	assert.Nil(t, tree)
}
