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

// Package viberextract implements the viberextract command line tool that
// extracts Viber messages from iOS backups and checks their links against
// STIX2 indicators.
//     run       Extract messages and print the timeline
//     iocs      Validate and list STIX2 indicator files
//     tables    List the tables of a database
//     store     Read the results of a previous run
//
// Usage
//
// Extract messages
//     viberextract run --iocs predator.stix2 --output viber.forensicstore backup/
// Print only detections
//     viberextract run --iocs predator.stix2 --detected backup/
// Read stored detections
//     viberextract store select viber-detection viber.forensicstore
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/viberextract/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "viberextract",
		Short:         "Extract Viber messages from iOS backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(cmd.Run(), cmd.Iocs(), cmd.Tables(), cmd.Store())
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
