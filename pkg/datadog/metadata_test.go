package datadog

import (
	"testing"

	"github.com/markuskont/go-sigma-datadog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapTags(t *testing.T) {
	assert.Equal(t,
		[]string{"attack-t1548", "attack-t1550.001", "attack-privilege_escalation", "cve.2021.44228", "car.2016-04-005"},
		MapTags([]string{"attack.t1548", "attack.t1550.001", "attack.privilege_escalation", "cve.2021.44228", "car.2016-04-005"}),
	)
	out := MapTags(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMapLevel(t *testing.T) {
	assert.Equal(t, "low", MapLevel(""))
	assert.Equal(t, "informational", MapLevel(sigma.LevelInformational))
	assert.Equal(t, "critical", MapLevel(sigma.LevelCritical))
}

func TestMapMessage(t *testing.T) {
	assert.Equal(t,
		"SIGMA Rule ID: abc \n False Positives: []) \n Description: None",
		MapMessage("abc", nil, ""),
	)
	assert.Equal(t,
		"SIGMA Rule ID: abc \n False Positives: ['a', \"it's\", 'say \"hi\"', 'both \\' \"']) \n Description: desc",
		MapMessage("abc", []string{"a", "it's", `say "hi"`, `both ' "`}, "desc"),
	)
}

func TestListRepr(t *testing.T) {
	cases := map[string][]string{
		`[]`:              {},
		`['x']`:           {"x"},
		`['a\\b']`:        {`a\b`},
		`['line\nbreak']`: {"line\nbreak"},
		`['tab\there']`:   {"tab\there"},
		`['bell\x07']`:    {"bell\a"},
		`['ünïcode']`:     {"ünïcode"},
	}
	for expected, in := range cases {
		assert.Equal(t, expected, listRepr(in))
	}
}

func TestMapName(t *testing.T) {
	assert.Equal(t, "SIGMA Threshold Detection - Test", MapName("Test"))
}

func TestAssemble(t *testing.T) {
	doc := Assemble(sigma.RuleMetadata{
		ID:               "c277adc0-f0c4-42e1-af9d-fab062992156",
		Title:            "Test",
		Tags:             []string{"attack.t1548"},
		Level:            sigma.LevelHigh,
		LogsourceService: "cloudtrail",
	}, "@a:b")
	assert.Equal(t, []string{ProductSecurityMonitoring}, doc.Product)
	assert.Equal(t, []string{"attack-t1548"}, doc.Tags)
	require.Len(t, doc.Queries, 1)
	assert.Equal(t, "@a:b", doc.Queries[0].Query)
	require.Len(t, doc.Cases, 1)
	assert.Equal(t, "high", doc.Cases[0].Status)
	assert.NoError(t, ValidateDocument("c277adc0-f0c4-42e1-af9d-fab062992156", doc))

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	// key order follows the import format
	assert.Regexp(t, `^\{"product":.*"name":.*"message":.*"tags":.*"source":.*"queries":.*"options":.*"cases":`, string(data))
}

func TestValidateDocument(t *testing.T) {
	doc := Assemble(sigma.RuleMetadata{ID: "x", Title: "t"}, "@a:b")
	require.NoError(t, ValidateDocument("x", doc))

	doc.Options.KeepAlive = 10
	doc.Queries[0].Query = ""
	err := ValidateDocument("x", doc)
	require.Error(t, err)
	e, ok := err.(ErrInvalidDocument)
	require.True(t, ok)
	assert.Equal(t, "x", e.RuleID)
	assert.Len(t, e.Reasons, 2)

	assert.Error(t, ValidateDocument("x", nil))
}
