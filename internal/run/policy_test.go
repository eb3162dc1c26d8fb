package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPolicies(t *testing.T) {
	path := writePolicy(t, `
policies:
  - plan: ^/plans/smoke$
    step: prepare
    insert: true
    name: extra
    update:
      script: echo extra
  - plan: .
    step: execute
    how: tmt
`)
	policies, err := LoadPolicies(path)
	require.NoError(t, err)
	require.Len(t, policies, 2)

	assert.Equal(t, "prepare", policies[0].Step)
	assert.True(t, policies[0].Insert)
	assert.Equal(t, "extra", policies[0].Name)
	assert.Equal(t, map[string]interface{}{"script": "echo extra"}, policies[0].Update)
	assert.True(t, policies[0].Matches("/plans/smoke"))
	assert.False(t, policies[0].Matches("/plans/smoke/extended"))
	assert.Equal(t, "tmt", policies[1].How)
}

func TestLoadPolicies_Invalid(t *testing.T) {
	_, err := LoadPolicies(writePolicy(t, `
policies:
  - plan: "["
    step: prepare
  - plan: .
    step: deploy
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy 0")
	assert.Contains(t, err.Error(), "unknown step 'deploy'")

	_, err = LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
