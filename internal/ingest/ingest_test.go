package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := map[string]DocType{
		"corpus.txt":      TypeText,
		"notes.MD":        TypeText,
		"readme.markdown": TypeText,
		"report.pdf":      TypePDF,
		"thesis.docx":     TypeDOCX,
		"archive.zip":     TypeUnknown,
		"noextension":     TypeUnknown,
	}

	for name, want := range cases {
		require.Equal(t, want, Detect(name), name)
	}
}

func TestReadDocument_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	content := "Une première phrase. Une deuxième phrase."
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadDocument(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestReadDocument_MissingFile(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestReadDocument_UnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0644))

	_, err := ReadDocument(path)
	require.ErrorContains(t, err, "unsupported file type")
}
