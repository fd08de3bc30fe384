package sigma

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"cloud/aws/ok.yml":          ruleFull,
		"cloud/aws/keywords.yaml":   "id: k\ndetection:\n  keywords:\n  - evil\n  condition: keywords\n",
		"cloud/aws/unsupported.yml": "id: u\ndetection:\n  sel:\n    a: b\n  condition: sel | count() > 4\n",
		"cloud/gcp/broken.yml":      "id: b\ndetection:\n  sel:\n    a: b\n  condition: sel and missing\n",
		"cloud/gcp/invalid.yml":     "id: [\n",
		"cloud/gcp/readme.md":       "# not a rule",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func TestNewRuleFileList(t *testing.T) {
	root := writeRuleTree(t)

	files, err := NewRuleFileList([]string{root}, nil)
	require.NoError(t, err)
	assert.Len(t, files, 5)

	files, err = NewRuleFileList([]string{root}, []string{"*/aws/*"})
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.Contains(t, f, filepath.Join("cloud", "aws"))
	}

	_, err = NewRuleFileList([]string{filepath.Join(root, "nope")}, nil)
	assert.Error(t, err)
}

func TestNewRuleList(t *testing.T) {
	root := writeRuleTree(t)
	files, err := NewRuleFileList([]string{root}, nil)
	require.NoError(t, err)

	rules, err := NewRuleList(files, true)
	require.Error(t, err)
	bulk, ok := err.(ErrBulkParseYaml)
	require.True(t, ok)
	assert.Len(t, bulk.Errs, 1)
	assert.Len(t, rules, 4)

	_, err = NewRuleList(files, false)
	require.Error(t, err)
	assert.IsType(t, &ErrParseYaml{}, err)

	_, err = NewRuleList(nil, true)
	assert.Error(t, err)
}

func TestNewRuleset(t *testing.T) {
	root := writeRuleTree(t)

	rs, err := NewRuleset(Config{Directory: []string{root}})
	require.NoError(t, err)
	assert.Equal(t, 5, rs.Total)
	assert.Equal(t, 2, rs.Ok)
	assert.Equal(t, 2, rs.Failed)
	assert.Equal(t, 1, rs.Unsupported)
	require.Len(t, rs.Rules, 2)
	for _, r := range rs.Rules {
		assert.NotEmpty(t, r.Path)
		assert.NotNil(t, r.Root)
	}

	_, err = NewRuleset(Config{Directory: []string{root}, FailOnRuleParse: true})
	assert.Error(t, err)

	_, err = NewRuleset(Config{})
	assert.Error(t, err)

	_, err = NewRuleset(Config{Directory: []string{filepath.Join(root, "cloud", "aws", "ok.yml")}})
	assert.Error(t, err)
}

func TestIsMultipart(t *testing.T) {
	assert.False(t, isMultipart([]byte("---\nid: a\n")))
	assert.False(t, isMultipart([]byte("# comment\n---\nid: a\n")))
	assert.False(t, isMultipart([]byte("id: a\ndescription: '---'\n")))
	assert.True(t, isMultipart([]byte("id: a\n---\nid: b\n")))
}
