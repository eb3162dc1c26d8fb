package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	env, err := Parse([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, Environment{"A": "1", "B": "x=y", "C": ""}, env)

	_, err = Parse([]string{"=oops"})
	assert.Error(t, err)
	_, err = Parse([]string{"NOVALUE"})
	assert.Error(t, err)
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := Environment{"A": "1", "B": "2"}
	merged := base.Merge(Environment{"B": "3"}, Environment{"C": "4"})

	assert.Equal(t, Environment{"A": "1", "B": "3", "C": "4"}, merged)
	assert.Equal(t, Environment{"A": "1", "B": "2"}, base)
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, merged.Pairs())
}

func TestFromData(t *testing.T) {
	env, err := FromData(map[string]interface{}{"N": 3, "B": true, "S": "s", "E": nil})
	require.NoError(t, err)
	assert.Equal(t, Environment{"N": "3", "B": "true", "S": "s", "E": ""}, env)

	_, err = FromData([]interface{}{"A=B"})
	assert.Error(t, err)
	_, err = FromData(map[string]interface{}{"X": []interface{}{1}})
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, "vars.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("# comment\nFOO=bar\nQUOTED=\"a b\"\n"), 0644))
	yamlFile := filepath.Join(dir, "vars.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("FOO: baz\nCOUNT: 2\n"), 0644))

	env, err := FromFile(dotenv, false)
	require.NoError(t, err)
	assert.Equal(t, Environment{"FOO": "bar", "QUOTED": "a b"}, env)

	env, err = FromFile(yamlFile, false)
	require.NoError(t, err)
	assert.Equal(t, Environment{"FOO": "baz", "COUNT": "2"}, env)

	env, err = FromFile(filepath.Join(dir, "missing.env"), true)
	require.NoError(t, err)
	assert.Empty(t, env)

	_, err = FromFile(filepath.Join(dir, "missing.env"), false)
	assert.Error(t, err)

	env, err = FromFiles(dir, []string{"vars.env", "vars.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "baz", env["FOO"])
	assert.Equal(t, "a b", env["QUOTED"])

	_, err = FromFiles(dir, []string{"../escape.env"})
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	layers := []Layer{
		{Name: "plan-file", Values: Environment{"A": "file", "B": "file"}, Inheritable: false},
		{Name: "fmf", Values: Environment{"B": "fmf", "C": "fmf"}, Inheritable: true},
		{Name: "cli", Values: Environment{"C": "cli", "D": "cli"}},
	}

	assert.Equal(t, Environment{"A": "file", "B": "fmf", "C": "cli", "D": "cli"}, Compose(layers...))
	assert.Equal(t, Environment{"B": "fmf", "C": "fmf"}, ComposeInheritable(layers...))
	assert.Equal(t, "cli", Source("C", layers...))
	assert.Equal(t, "", Source("Z", layers...))
}
