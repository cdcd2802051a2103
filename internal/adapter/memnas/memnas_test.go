package memnas

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

func TestNAS_ListAndCreate(t *testing.T) {
	ctx := context.Background()
	nas := New("/volume1")

	require.NoError(t, nas.CreateDirectory(ctx, "/volume1", "annex"))
	require.NoError(t, nas.CreateDirectory(ctx, "/volume1/annex", "KEY"))

	entries, err := nas.ListDirectory(ctx, "/volume1")
	require.NoError(t, err)
	assert.Equal(t, []port.FileEntry{{Path: "/volume1/annex", Name: "annex", IsDir: true}}, entries)

	shares, err := nas.ListShares(ctx)
	require.NoError(t, err)
	assert.Equal(t, []port.FileEntry{{Path: "/volume1", Name: "volume1", IsDir: true}}, shares)

	_, err = nas.ListDirectory(ctx, "/volume1/missing")
	var nf port.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.True(t, nf.NotFound())

	err = nas.CreateDirectory(ctx, "/missing", "x")
	assert.True(t, errors.As(err, &nf))

	assert.Equal(t, []string{"/volume1/annex", "/volume1/annex/KEY", "/missing/x"}, nas.CallsFor(OpCreate))
}

func TestNAS_UploadRenameDownload(t *testing.T) {
	ctx := context.Background()
	nas := New("/volume1")
	dir := t.TempDir()

	local := filepath.Join(dir, "object")
	require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))

	require.NoError(t, nas.UploadFile(ctx, "/volume1/KEY.uploading", local, "KEY", nil))
	require.NoError(t, nas.Rename(ctx, "/volume1/KEY.uploading", "KEY"))

	assert.False(t, nas.Has("/volume1/KEY.uploading"))
	content, ok := nas.Content("/volume1/KEY/KEY")
	require.True(t, ok)
	assert.Equal(t, "payload", string(content))

	out := t.TempDir()
	got, err := nas.DownloadFile(ctx, "/volume1/KEY/KEY", out, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "KEY"), got)
}

func TestNAS_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	nas := New("/volume1")
	nas.PutFile("/volume1/KEY/KEY", []byte("payload"))

	nas.Fail(OpList, "*", ErrUnreachable)
	_, err := nas.ListDirectory(ctx, "/volume1")
	assert.ErrorIs(t, err, ErrUnreachable)

	nas.ClearFailures()
	nas.Fail(OpDownload, "/volume1/KEY/KEY", errors.New("connection reset"))
	out := t.TempDir()
	_, err = nas.DownloadFile(ctx, "/volume1/KEY/KEY", out, nil)
	require.Error(t, err)

	partial, readErr := os.ReadFile(filepath.Join(out, "KEY"))
	require.NoError(t, readErr)
	assert.Equal(t, "pay", string(partial))
}

func TestNAS_DeleteSubtree(t *testing.T) {
	ctx := context.Background()
	nas := New("/volume1")
	nas.PutFile("/volume1/annex/KEY/KEY", []byte("x"))
	nas.PutFile("/volume1/annex/OTHER/OTHER", []byte("y"))

	require.NoError(t, nas.DeleteFiles(ctx, []string{"/volume1/annex/KEY"}))

	assert.Equal(t, []string{
		"/volume1",
		"/volume1/annex",
		"/volume1/annex/OTHER",
		"/volume1/annex/OTHER/OTHER",
	}, nas.Paths())
}
