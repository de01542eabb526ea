package prerequisites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_ToolNotFound(t *testing.T) {
	t.Parallel()
	tools := []Tool{
		{Name: "definitely-not-a-real-binary-xyz", Required: true, InstallURL: "https://example.com"},
	}

	results := Check(tools)

	require.Len(t, results.Results, 1)
	assert.False(t, results.Results[0].Found)
	assert.Len(t, results.Missing, 1)
	assert.True(t, results.HasErrors())

	err := results.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-real-binary-xyz")
	assert.Contains(t, err.Error(), "https://example.com")
}

func TestCheck_OptionalToolMissingIsNotError(t *testing.T) {
	t.Parallel()
	tools := []Tool{
		{Name: "definitely-not-a-real-binary-xyz", Required: false},
	}

	results := Check(tools)

	assert.Len(t, results.Missing, 1)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestCheck_FoundTool(t *testing.T) {
	t.Parallel()
	// sh exists on any platform these tests run on
	tools := []Tool{
		{Name: "sh", Required: true},
	}

	results := Check(tools)

	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Found)
	assert.NotEmpty(t, results.Results[0].Path)
	assert.Empty(t, results.Missing)
	assert.False(t, results.HasErrors())
}

func TestDefaultTools_CoverPipelineToolchain(t *testing.T) {
	t.Parallel()
	names := map[string]bool{}
	for _, tool := range DefaultTools() {
		names[tool.Name] = tool.Required
	}

	assert.True(t, names["terraform"])
	assert.True(t, names["kubectl"])
}

func TestRemoteTools_AllRequired(t *testing.T) {
	t.Parallel()
	for _, tool := range RemoteTools() {
		assert.True(t, tool.Required, "remote tool %s should be required", tool.Name)
		assert.NotEmpty(t, tool.InstallURL)
	}
}

func TestCheckAll_IncludesOptional(t *testing.T) {
	t.Parallel()
	results := CheckAll()
	assert.Len(t, results.Results, len(DefaultTools())+len(OptionalTools()))
}
