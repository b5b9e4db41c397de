package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceYieldsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"instances":{}}`), 0644))

	src, err := NewSource(path)
	require.NoError(t, err)

	data, err := src.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"instances":{}}`, string(data))

	_, err = src.Pop(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestSourceErrors(t *testing.T) {
	_, err := NewSource("")
	assert.Error(t, err)
	_, err = NewSource(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("{}"))
	data, err := src.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
