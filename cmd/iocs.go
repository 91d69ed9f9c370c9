// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/viberextract/indicators"
)

// Iocs is the viberextract iocs commandline subcommand
func Iocs() *cobra.Command {
	iocsCommand := &cobra.Command{
		Use:   "iocs",
		Short: "Handle STIX2 indicator files",
	}
	iocsCommand.AddCommand(validateCommand(afero.NewOsFs()), listCommand(afero.NewOsFs()))
	return iocsCommand
}

func validateCommand(fs afero.Fs) *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate STIX2 indicator files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flaws []string
			for _, arg := range args {
				b, err := afero.ReadFile(fs, arg)
				if err != nil {
					return err
				}
				fileFlaws, err := indicators.Validate(b)
				if err != nil {
					return errors.Wrap(err, arg)
				}
				for _, flaw := range fileFlaws {
					flaws = append(flaws, arg+": "+flaw)
				}
			}
			if len(flaws) == 0 {
				return nil
			}
			b, err := json.Marshal(flaws)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			if noFail {
				return nil
			}
			return errors.Errorf("%d flaws found", len(flaws))
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func listCommand(fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>...",
		Short: "List the domain indicators of STIX2 files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := indicators.New(nil)
			collection.Fs = fs
			for _, arg := range args {
				if err := collection.ParseSTIX2(arg); err != nil {
					return err
				}
			}
			for _, c := range collection.Collections() {
				for _, domain := range c.Domains {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Name, c.STIX2File, domain)
				}
			}
			return nil
		},
	}
}
