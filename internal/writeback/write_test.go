package writeback

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_CreatesFile(t *testing.T) {
	fs := memfs.New()

	require.NoError(t, WriteAtomic(fs, "pkg/x_dirtest_test.go", []byte("package pkg\n")))

	got, err := util.ReadFile(fs, "pkg/x_dirtest_test.go")
	require.NoError(t, err)
	assert.Equal(t, "package pkg\n", string(got))
}

func TestWriteAtomic_Overwrites(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out.go", []byte("old content that is longer"), 0o644))

	require.NoError(t, WriteAtomic(fs, "out.go", []byte("new")))

	got, err := util.ReadFile(fs, "out.go")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, WriteAtomic(fs, "dir/a.go", []byte("a")))

	entries, err := fs.ReadDir("dir")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.go", entries[0].Name())
}

func TestWriteAtomic_Permissions(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, WriteAtomic(fs, "a.go", []byte("a")))

	fi, err := fs.Stat("a.go")
	require.NoError(t, err)
	assert.Equal(t, "-rw-r--r--", fi.Mode().Perm().String())
}

func TestRemove_MissingIsNotAnError(t *testing.T) {
	fs := memfs.New()
	assert.NoError(t, Remove(fs, "nope.go"))

	require.NoError(t, util.WriteFile(fs, "yes.go", []byte("x"), 0o644))
	require.NoError(t, Remove(fs, "yes.go"))
	_, err := fs.Stat("yes.go")
	assert.Error(t, err)
}
