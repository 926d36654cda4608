// Package testutil builds fixtures shared by the package tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

type Entry struct {
	Name string
	Body string
	// Link makes the entry a symlink pointing at Link.
	Link string
	Dir  bool
}

// File is shorthand for a regular file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Body: body}
}

// Tarball builds a gzip-compressed tar archive the way GitHub serves branch
// snapshots, global pax header included.
func Tarball(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		Name:       "pax_global_header",
		PAXRecords: map[string]string{"comment": "0123456789abcdef"},
	}))

	for _, e := range entries {
		switch {
		case e.Dir:
			require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeDir, Name: e.Name, Mode: 0755}))
		case e.Link != "":
			require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeSymlink, Name: e.Name, Linkname: e.Link}))
		default:
			require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: e.Name, Mode: 0644, Size: int64(len(e.Body))}))
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}
