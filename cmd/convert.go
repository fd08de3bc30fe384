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
	"bufio"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/markuskont/go-sigma-datadog"
	"github.com/markuskont/go-sigma-datadog/pkg/datadog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert [rule files...]",
	Short: "Convert sigma rules into Datadog queries or rule documents",
	Long: `Convert reads sigma rules from files given as arguments, or recursively from --rules-dir,
and writes one query per line, or one JSON rule document per line when output mode is siem_rule.
	For example:

	sigma-datadog convert --rules-dir ./rules/cloud/aws --output-mode siem_rule --validate
	`,
	Run: convert,
}

func collectRuleFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return sigma.NewRuleFileList(
		viper.GetStringSlice("rules.dir"),
		viper.GetStringSlice("rules.include"),
	)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// create opens the output file, empty path or - writes to stdout
// stdout is not closed along with the returned writer
func create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{Writer: os.Stdout}, nil
	}
	return os.Create(path)
}

func writeResults(w io.Writer, results datadog.Results, mode datadog.OutputMode) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		switch mode {
		case datadog.ModeSiemRule:
			if err := enc.Encode(res.Output.Document); err != nil {
				return err
			}
		default:
			if _, err := fmt.Fprintln(w, res.Output.Query); err != nil {
				return err
			}
		}
	}
	return nil
}

func convert(cmd *cobra.Command, args []string) {
	failFast := viper.GetBool("convert.fail")

	mode, err := datadog.ParseOutputMode(viper.GetString("output.mode"))
	if err != nil {
		logrus.Fatal(err)
	}
	files, err := collectRuleFiles(args)
	if err != nil {
		logrus.Fatal(err)
	}
	ph, err := loadPlaceholders()
	if err != nil {
		logrus.Fatal(err)
	}
	handles, err := sigma.NewRuleList(files, !failFast)
	c := &counts{}
	if err != nil {
		switch e := err.(type) {
		case sigma.ErrBulkParseYaml:
			for _, ye := range e.Errs {
				logrus.Error(ye)
				c.fail++
			}
		default:
			logrus.Fatal(err)
		}
	}
	logrus.Debugf("Got %d rules from %d files", len(handles), len(files))

	rules := make([]*sigma.Rule, 0, len(handles))
	for _, raw := range handles {
		rule, err := sigma.NewRule(raw, ph)
		if err != nil {
			c.add(err)
			if failFast {
				logrus.Fatalf("%s: %s", raw.Path, err)
			}
			logrus.WithField("path", raw.Path).Warn(err)
			continue
		}
		rules = append(rules, rule)
	}

	backend, err := datadog.New(datadog.Config{
		Workers:      viper.GetInt("convert.workers"),
		FieldMapping: viper.GetStringMapString("datadog.fieldmap"),
		Validate:     viper.GetBool("output.validate"),
		Logger:       logrus.StandardLogger(),
	})
	if err != nil {
		logrus.Fatal(err)
	}
	results := backend.ConvertCollection(rules, mode)
	for _, res := range results {
		c.add(res.Err)
	}
	if err := results.Err(); err != nil && failFast {
		logrus.Fatal(err)
	}

	output, err := create(viper.GetString("output.file"))
	if err != nil {
		logrus.Fatal(err)
	}
	defer output.Close()
	w := bufio.NewWriter(output)
	if err := writeResults(w, results, mode); err != nil {
		logrus.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("OK: %d; FAIL: %d; UNSUPPORTED: %d", c.ok, c.fail, c.unsupported)
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.PersistentFlags().String("output-mode", "query",
		`Output format. Supported values are:
		query - one Datadog log search query per line
		siem_rule - one security monitoring rule JSON document per line`)
	viper.BindPFlag("output.mode",
		convertCmd.PersistentFlags().Lookup("output-mode"))

	convertCmd.PersistentFlags().String("output-file", "",
		`Output file. Stdout is used if empty.`)
	viper.BindPFlag("output.file",
		convertCmd.PersistentFlags().Lookup("output-file"))

	convertCmd.PersistentFlags().Bool("validate", false,
		`Validate rule documents against the import schema.`)
	viper.BindPFlag("output.validate",
		convertCmd.PersistentFlags().Lookup("validate"))

	convertCmd.PersistentFlags().Int("workers", 4,
		`Number of workers for rule conversion.`)
	viper.BindPFlag("convert.workers",
		convertCmd.PersistentFlags().Lookup("workers"))

	convertCmd.PersistentFlags().Bool("fail", false,
		`Exit on first rule that cannot be parsed or converted.`)
	viper.BindPFlag("convert.fail",
		convertCmd.PersistentFlags().Lookup("fail"))
}
