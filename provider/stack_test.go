package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/generate"
	"github.com/Paranoid-AF/ghostline/index"
)

func stackConfig(t *testing.T) *ghostline.Config {
	t.Helper()
	t.Setenv("GHOSTLINE_CONFIG_DIR", t.TempDir())
	t.Setenv("GHOSTLINE_GENERATION_API_KEY", "")
	t.Setenv("GHOSTLINE_EMBEDDING_API_KEY", "")
	return ghostline.DefaultConfig()
}

func TestBuildStackOrderAndWrapping(t *testing.T) {
	cfg := stackConfig(t)
	s := BuildStack(cfg, nil)
	defer s.Close()

	require.Len(t, s.Providers, 3)
	assert.Equal(t, index.HistoryID, s.Providers[0].ID())
	assert.Equal(t, WordsID, s.Providers[1].ID())
	assert.Equal(t, generate.GenerationID, s.Providers[2].ID())

	c, ok := s.Providers[0].(*Cached)
	require.True(t, ok)
	assert.IsType(t, &index.History{}, c.Unwrap())
	assert.IsType(t, &Words{}, s.Providers[1])
}

func TestBuildStackSkipsUnknownAndDuplicates(t *testing.T) {
	cfg := stackConfig(t)
	cfg.Engine.Providers = []string{"words", "telepathy", "words"}
	s := BuildStack(cfg, nil)
	defer s.Close()

	require.Len(t, s.Providers, 1)
	assert.Equal(t, WordsID, s.Providers[0].ID())
}

func TestBuildStackWithoutCache(t *testing.T) {
	cfg := stackConfig(t)
	cfg.Engine.Providers = []string{"history"}
	cfg.Cache.Capacity = -1
	s := BuildStack(cfg, nil)
	defer s.Close()

	require.Len(t, s.Providers, 1)
	assert.IsType(t, &index.History{}, s.Providers[0])
}

func TestStackLearnAndPersist(t *testing.T) {
	cfg := stackConfig(t)
	cfg.Engine.Providers = []string{"history", "words"}
	cfg.Words.Path = filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(cfg.Words.Path, []byte("kubernetes 10\n"), 0o644))

	s := BuildStack(cfg, nil)
	s.Learn("deploy.sh", "kubectl apply -f manifests\n")
	assert.Equal(t, 1, s.history.Len())
	assert.Equal(t, 4, s.words.Len())
	s.Close()

	_, err := os.Stat(filepath.Join(ghostline.DataDir(), historyCacheFile))
	require.NoError(t, err)

	again := BuildStack(cfg, nil)
	defer again.Close()
	line, ok := again.history.MatchRecent("kubectl ap")
	require.True(t, ok)
	assert.Equal(t, "kubectl apply -f manifests", line)
}
