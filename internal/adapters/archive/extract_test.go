package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name    string
	body    string
	mode    int64
	dir     bool
	symlink string
}

func writeTarGz(t *testing.T, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		case e.symlink != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.symlink
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "a.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeZip(t *testing.T, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtract_TarGzStripComponents(t *testing.T) {
	t.Parallel()
	src := writeTarGz(t, []entry{
		{name: "nvim-linux64/", dir: true, mode: 0o755},
		{name: "nvim-linux64/bin/nvim", body: "elf", mode: 0o755},
		{name: "nvim-linux64/share/nvim/runtime.vim", body: "vim", mode: 0o644},
		{name: "nvim-linux64/bin/vi", symlink: "nvim"},
	})
	dest := t.TempDir()

	err := NewExtractor().Extract(context.Background(), src, dest, ports.ExtractOptions{Format: ports.FormatTarGz, StripComponents: 1})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "bin", "nvim"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.FileExists(t, filepath.Join(dest, "share", "nvim", "runtime.vim"))
	link, err := os.Readlink(filepath.Join(dest, "bin", "vi"))
	require.NoError(t, err)
	assert.Equal(t, "nvim", link)
}

func TestExtract_Zip(t *testing.T) {
	t.Parallel()
	src := writeZip(t, []entry{
		{name: "Meslo LG M Regular.ttf", body: "font"},
		{name: "LICENSE.txt", body: "ofl"},
	})
	dest := t.TempDir()

	err := NewExtractor().Extract(context.Background(), src, dest, ports.ExtractOptions{Format: ports.FormatZip})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "Meslo LG M Regular.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "font", string(content))
}

func TestExtract_RejectsTraversal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entries []entry
	}{
		{name: "dotdot", entries: []entry{{name: "../evil", body: "x", mode: 0o644}}},
		{name: "nested dotdot", entries: []entry{{name: "a/../../evil", body: "x", mode: 0o644}}},
		{name: "absolute symlink", entries: []entry{{name: "link", symlink: "/etc/passwd"}}},
		{name: "escaping symlink", entries: []entry{{name: "a/link", symlink: "../../etc"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := writeTarGz(t, tt.entries)
			dest := filepath.Join(t.TempDir(), "out")

			err := NewExtractor().Extract(context.Background(), src, dest, ports.ExtractOptions{Format: ports.FormatTarGz})

			assert.ErrorIs(t, err, ErrUnsafePath)
			assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil"))
		})
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	err := NewExtractor().Extract(context.Background(), "x", t.TempDir(), ports.ExtractOptions{Format: "rar"})

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtract_CorruptArchive(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("<html>404</html>"), 0o644))

	err := NewExtractor().Extract(context.Background(), src, t.TempDir(), ports.ExtractOptions{Format: ports.FormatTarGz})

	assert.Error(t, err)
}
