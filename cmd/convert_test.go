package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markuskont/go-sigma-datadog"
	"github.com/markuskont/go-sigma-datadog/pkg/datadog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRule = `
title: Possible DNS Rebinding
id: ec5b8711-b550-4879-9660-568aaae2c3ea
logsource:
  service: cloudtrail
detection:
  filter:
    ttl: '<10'
  condition: filter
`

func TestWriteResults(t *testing.T) {
	rule, err := sigma.ParseRule([]byte(testRule), nil)
	require.NoError(t, err)
	backend, err := datadog.New(datadog.Config{})
	require.NoError(t, err)
	rules := []*sigma.Rule{rule, {Root: sigma.NodeAnd{}}}

	var buf bytes.Buffer
	results := backend.ConvertCollection(rules, datadog.ModeQuery)
	require.NoError(t, writeResults(&buf, results, datadog.ModeQuery))
	assert.Equal(t, "@ttl:\\<10\n", buf.String())

	buf.Reset()
	results = backend.ConvertCollection(rules, datadog.ModeSiemRule)
	require.NoError(t, writeResults(&buf, results, datadog.ModeSiemRule))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	// html characters are written as is
	assert.Contains(t, lines[0], `"query":"@ttl:\\<10"`)
	assert.True(t, strings.HasPrefix(lines[0], `{"product":["security_monitoring"]`))
}

func TestCounts(t *testing.T) {
	c := &counts{}
	c.add(nil)
	c.add(sigma.ErrUnsupportedFeature{Feature: "cidr"})
	c.add(sigma.ErrUnsupportedToken{Msg: "pipe"})
	c.add(sigma.ErrMissingCondition{})
	assert.Equal(t, counts{ok: 1, fail: 1, unsupported: 2}, *c)
}

func TestCollectRuleFiles(t *testing.T) {
	files, err := collectRuleFiles([]string{"a.yml", "b.yml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yml", "b.yml"}, files)
}

func TestCreateStdout(t *testing.T) {
	for _, path := range []string{"", "-"} {
		w, err := create(path)
		require.NoError(t, err)
		_, isFile := w.(*os.File)
		assert.False(t, isFile, path)
		require.NoError(t, w.Close())
		// stdout stays open
		_, err = os.Stdout.Stat()
		assert.NoError(t, err, path)
	}
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	w, err := create(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("@a:b\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@a:b\n", string(data))
}
