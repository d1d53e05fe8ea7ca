package docqa

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()

	assert.Equal(t, ":8083", opts.Server.Addr)
	assert.Equal(t, "release", opts.Server.Mode)
	assert.Equal(t, "ollama", opts.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", opts.Embedding.Model)
	assert.Equal(t, "llama3:8b", opts.Chat.Model)
	assert.Equal(t, 7500, opts.DocQA.ChunkMaxSize)
	assert.Equal(t, 100, opts.DocQA.ChunkOverlap)
	assert.Equal(t, 3, opts.DocQA.Expansions)
	assert.Equal(t, 5, opts.DocQA.KPerQuery)
	assert.Equal(t, float64(0), opts.DocQA.SynthesisTemperature)
	assert.Equal(t, "milvus", opts.DocQA.StoreBackend)
	assert.True(t, opts.Cache.Enabled)
}

func TestOptionsValidateDefaults(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidateChunkOverlap(t *testing.T) {
	opts := NewOptions()
	opts.DocQA.ChunkMaxSize = 100
	opts.DocQA.ChunkOverlap = 100
	require.Error(t, opts.Validate())

	opts.DocQA.ChunkOverlap = -1
	require.Error(t, opts.Validate())

	opts.DocQA.ChunkOverlap = 99
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidateStoreBackend(t *testing.T) {
	opts := NewOptions()
	opts.DocQA.StoreBackend = "etcd"
	assert.Error(t, opts.Validate())

	opts.DocQA.StoreBackend = "memory"
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidateOpenAIRequiresKey(t *testing.T) {
	opts := NewOptions()
	opts.Chat.Provider = "openai"
	opts.Chat.APIKey = ""
	require.Error(t, opts.Validate())

	opts.Chat.APIKey = "sk-test"
	assert.NoError(t, opts.Validate())
}

func TestOptionsAddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--server.addr=:9090",
		"--docqa.store-backend=memory",
		"--docqa.expansions=5",
		"--cache.enabled=false",
	}))

	assert.Equal(t, ":9090", opts.Server.Addr)
	assert.Equal(t, "memory", opts.DocQA.StoreBackend)
	assert.Equal(t, 5, opts.DocQA.Expansions)
	assert.False(t, opts.Cache.Enabled)
}

func TestOptionsComplete(t *testing.T) {
	opts := NewOptions()
	opts.DocQA.IngestWorkers = 0
	opts.DocQA.SystemPrompt = ""

	require.NoError(t, opts.Complete())
	assert.Equal(t, 4, opts.DocQA.IngestWorkers)
	assert.NotEmpty(t, opts.DocQA.SystemPrompt)
}
