package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsChatTemplate(t *testing.T) {
	fams := DefaultTemplateFamilies
	assert.True(t, needsChatTemplate("facebook/opt-125m", fams))
	assert.True(t, needsChatTemplate("EleutherAI/Pythia-160m", fams))
	assert.True(t, needsChatTemplate("gpt2", fams))
	assert.False(t, needsChatTemplate("meta-llama/Llama-3.2-1B-Instruct", fams))
	assert.False(t, needsChatTemplate("gpt2", []string{""}))
}

func TestWriteBundledTemplate_RewritesStaleFile(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, chatTemplateFile)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	path, err := writeBundledTemplate(dir)
	require.NoError(t, err)
	assert.Equal(t, stale, path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bundledChatTemplate, got)

	again, err := writeBundledTemplate(dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestBuildCommand_GPUFraction(t *testing.T) {
	f := newFixture(t, nil, func(c *Config) { c.GPUMemoryUtilization = 0.9 })
	argv, err := f.sup.buildCommand("m", 8010)
	require.NoError(t, err)
	assert.Contains(t, argv, "0.9")
	assert.Contains(t, argv, "8010")
}
