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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forensicanalysis/viberextract"
	"github.com/forensicanalysis/viberextract/backup"
	"github.com/forensicanalysis/viberextract/indicators"
	"github.com/forensicanalysis/viberextract/resultstore"
	"github.com/forensicanalysis/viberextract/rowreader"
)

// Run is the viberextract run commandline subcommand
func Run() *cobra.Command {
	var iocFiles []string
	var nonUnique, detected bool
	var output, logLevel string
	runCommand := &cobra.Command{
		Use:   "run <backup>",
		Short: "Extract Viber messages from an iOS backup or file system dump",
		Args:  requireOneDirectory,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() // nolint:errcheck

			path, err := backup.NewLocator().Find(args[0], viberextract.BackupIDs, viberextract.RootPaths)
			if err != nil {
				return err
			}

			var iocs viberextract.Indicators
			if len(iocFiles) > 0 {
				collection := indicators.New(logger)
				for _, iocFile := range iocFiles {
					if err := collection.ParseSTIX2(iocFile); err != nil {
						return err
					}
				}
				iocs = collection
			}

			options := viberextract.DefaultOptions()
			options.UniqueLinks = !nonUnique
			result, err := viberextract.New(options, logger).Run(path, iocs)
			if err != nil {
				return err
			}

			timeline := result.Timeline
			if detected {
				timeline = result.TimelineDetected
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			for _, event := range timeline {
				if err := encoder.Encode(event); err != nil {
					return err
				}
			}

			if output == "" {
				return nil
			}
			name, err := filepath.Rel(args[0], path)
			if err != nil {
				name = filepath.Base(path)
			}
			return writeStore(output, result, path, filepath.ToSlash(name))
		},
	}
	runCommand.Flags().StringArrayVar(&iocFiles, "iocs", nil, "STIX2 indicator file, can be repeated")
	runCommand.Flags().BoolVar(&nonUnique, "non-unique", false, "keep duplicate links of a message")
	runCommand.Flags().BoolVar(&detected, "detected", false, "print only messages with known suspicious links")
	runCommand.Flags().StringVarP(&output, "output", "o", "", "write all results into a new forensicstore")
	runCommand.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return runCommand
}

// Tables is the viberextract tables commandline subcommand
func Tables() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <database>",
		Short: "List the tables of a SQLite database",
		Args:  requireOneFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := rowreader.Tables(args[0])
			if err != nil {
				return err
			}
			for _, table := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), table)
			}
			return nil
		},
	}
}

// writeStore saves the results together with a copy of the source database.
func writeStore(url string, result *viberextract.Result, source, name string) error {
	store, err := resultstore.New(url)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", url)
	}
	if err := store.StoreFile(afero.NewOsFs(), source, name); err != nil {
		store.Close() // nolint:errcheck
		return err
	}
	if err := store.InsertResult(result); err != nil {
		store.Close() // nolint:errcheck
		return err
	}
	return store.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	return config.Build()
}

func requireOneDirectory(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one backup directory")
	}
	info, err := os.Stat(args[0])
	if os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", args[0])
	}
	return nil
}

func requireOneFile(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one file")
	}
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	return nil
}
