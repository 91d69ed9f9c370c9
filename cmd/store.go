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

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/viberextract/resultstore"
)

// Store is the viberextract store commandline subcommand
func Store() *cobra.Command {
	storeCommand := &cobra.Command{
		Use:   "store",
		Short: "Read the results of a previous run",
	}
	storeCommand.AddCommand(getCommand(), selectCommand(), allCommand(), searchCommand())
	return storeCommand
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <forensicstore>",
		Short: "Retrieve a single element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *resultstore.Store) (interface{}, error) {
				return store.Get(args[0])
			}, cmd)
		},
	}
}

func selectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <type> <forensicstore>",
		Short: "Retrieve all elements of a type, e.g. " + resultstore.TypeDetection,
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *resultstore.Store) (interface{}, error) {
				return store.Select(args[0])
			}, cmd)
		},
	}
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all <forensicstore>",
		Short: "Retrieve all elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[0], func(store *resultstore.Store) (interface{}, error) {
				return store.All()
			}, cmd)
		},
	}
}

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query> <forensicstore>",
		Short: "Full text search over all elements",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(args[1], func(store *resultstore.Store) (interface{}, error) {
				return store.Search(args[0])
			}, cmd)
		},
	}
}

func withStore(url string, fn func(store *resultstore.Store) (interface{}, error), cmd *cobra.Command) error {
	store, err := resultstore.Open(url)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := fn(store)
	if err != nil {
		return err
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	return nil
}
