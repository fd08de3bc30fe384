/*
Copyright © 2020 Markus Kont alias013@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"github.com/markuskont/go-sigma-datadog"
	"github.com/markuskont/go-sigma-datadog/pkg/datadog"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type counts struct {
	ok, fail, unsupported int
}

func (c *counts) add(err error) {
	switch {
	case err == nil:
		c.ok++
	case sigma.IsUnsupported(err):
		c.unsupported++
	default:
		c.fail++
	}
}

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a ruleset for testing",
	Long: `Recursively parses a sigma ruleset from filesystem and provides detailed feedback to the user about rule support.
Every parsed rule is also compiled into a query, so unsupported modifiers are reported as well.`,
	Run: parse,
}

func parse(cmd *cobra.Command, args []string) {
	files, err := sigma.NewRuleFileList(
		viper.GetStringSlice("rules.dir"),
		viper.GetStringSlice("rules.include"),
	)
	if err != nil {
		logrus.Fatal(err)
	}
	for _, f := range files {
		logrus.Trace(f)
	}
	ph, err := loadPlaceholders()
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("Parsing rule yaml files")
	rules, err := sigma.NewRuleList(files, true)
	c := &counts{}
	if err != nil {
		switch e := err.(type) {
		case sigma.ErrBulkParseYaml:
			logrus.Error(err)
			for _, ye := range e.Errs {
				logrus.Warn(ye)
				c.fail++
			}
		default:
			logrus.Fatal(err)
		}
	}
	logrus.Infof("Got %d rules from yaml", len(rules))
	logrus.Info("Parsing rules into AST")

	backend, err := datadog.New(datadog.Config{})
	if err != nil {
		logrus.Fatal(err)
	}
	for _, raw := range rules {
		logrus.Trace(raw.Path)
		rule, err := sigma.NewRule(raw, ph)
		if err == nil {
			_, err = backend.Compile(rule.Root)
		}
		c.add(err)
		switch {
		case err == nil:
			logrus.Infof("%s: ok", raw.Path)
		case sigma.IsUnsupported(err):
			logrus.Warnf("%s: %s", err, raw.Path)
		default:
			logrus.Errorf("%s: %s", err, raw.Path)
		}
	}
	logrus.Infof("OK: %d; FAIL: %d; UNSUPPORTED: %d", c.ok, c.fail, c.unsupported)
}

func loadPlaceholders() (*sigma.Placeholders, error) {
	path := viper.GetString("sigma.placeholders")
	if path == "" {
		return nil, nil
	}
	return sigma.NewPlaceholders(path)
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
