//go:build cgo

package sitegraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKuzuStore(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStore(t, s)
}

func TestOpen_KuzuFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "sites.kuzu")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &KuzuStore{}, s)
	require.NoError(t, SaveArtifact(context.Background(), s, artifact()))
	sites, err := s.Sites(context.Background())
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}
