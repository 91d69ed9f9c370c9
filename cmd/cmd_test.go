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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/viberextract/resultstore"
)

const viberDatabase = `
CREATE TABLE ZVIBERMESSAGE (
	Z_PK INTEGER PRIMARY KEY,
	ZDATE TIMESTAMP,
	ZTEXT VARCHAR,
	ZCLIENTMETADATA VARCHAR
);
INSERT INTO ZVIBERMESSAGE VALUES (1, 647000000, 'Hi there', NULL);
INSERT INTO ZVIBERMESSAGE VALUES (2, 647000100, 'Offer https://tinyurl.com/2p8nd4mj',
	'{"URLMessage": {"receivedUrl": "https://www.kingdom-deals.com/offer?id=1"}}');
`

const predatorBundle = `{
	"type": "bundle",
	"id": "bundle--5d0092c5-5f74-4287-9642-33f4c354e56d",
	"objects": [
		{"type": "malware", "id": "malware--2daf9dfc-c8ea-4ec4-bd38-a3b68f1a2ea1", "name": "Predator"},
		{"type": "indicator", "id": "indicator--a8fe2b76-6b5c-4ee4-a9c6-7f4b9cf2b0d8",
			"pattern": "[domain-name:value = 'kingdom-deals.com']", "pattern_type": "stix"}
	]
}`

// setup creates an iOS backup with a Viber database and an indicator file.
func setup(t *testing.T) (backupDir, iocFile string) {
	t.Helper()
	dir := t.TempDir()

	backupDir = filepath.Join(dir, "backup")
	dbDir := filepath.Join(backupDir, "83")
	require.NoError(t, os.MkdirAll(dbDir, 0750))
	conn, err := sqlite.OpenConn(
		filepath.Join(dbDir, "83b9310399a905c7781f95580174f321cd18fd97"),
		sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE,
	)
	require.NoError(t, err)
	require.NoError(t, sqlitex.ExecScript(conn, viberDatabase))
	require.NoError(t, conn.Close())

	iocFile = filepath.Join(dir, "predator.stix2")
	require.NoError(t, os.WriteFile(iocFile, []byte(predatorBundle), 0600))
	return backupDir, iocFile
}

func execute(command *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(args)
	command.SilenceUsage = true
	command.SilenceErrors = true
	err := command.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func Test_runCommand(t *testing.T) {
	backupDir, iocFile := setup(t)

	tests := []struct {
		name      string
		args      []string
		wantLines int
		wantErr   bool
	}{
		{"Run", []string{"--log-level", "error", backupDir}, 2, false},
		{"Detected", []string{"--log-level", "error", "--iocs", iocFile, "--detected", backupDir}, 1, false},
		{"Missing Backup", []string{filepath.Join(backupDir, "missing")}, 0, true},
		{"Empty Backup", []string{"--log-level", "error", t.TempDir()}, 0, true},
		{"Wrong Level", []string{"--log-level", "loud", backupDir}, 0, true},
		{"Missing IOCs", []string{"--log-level", "error", "--iocs", iocFile + ".missing", backupDir}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(Run(), tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			assert.Len(t, lines(out), tt.wantLines)
		})
	}
}

func Test_runCommand_Output(t *testing.T) {
	backupDir, iocFile := setup(t)

	out, err := execute(Run(), "--log-level", "error", "--iocs", iocFile, backupDir)
	require.NoError(t, err)

	events := lines(out)
	require.Len(t, events, 2)
	assert.JSONEq(t, `{
		"timestamp": "2021-07-03 10:13:20.000000",
		"module": "Viber",
		"event": "message",
		"data": "'Hi there' from Unknown"
	}`, events[0])
	assert.Equal(t,
		"'Offer https://tinyurl.com/2p8nd4mj' from Unknown - Embedded links: "+
			"https://tinyurl.com/2p8nd4mj, https://www.kingdom-deals.com/offer?id=1",
		gjson.Get(events[1], "data").String(),
	)

	storePath := filepath.Join(t.TempDir(), "viber.forensicstore")
	_, err = execute(Run(), "--log-level", "error", "--iocs", iocFile, "--output", storePath, backupDir)
	require.NoError(t, err)

	out, err = execute(Store(), "select", resultstore.TypeDetection, storePath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "#").Int())
	assert.Equal(t, "Predator", gjson.Get(out, "0.matched_indicator.name").String())

	out, err = execute(Store(), "all", storePath)
	require.NoError(t, err)
	assert.Equal(t, int64(5), gjson.Get(out, "#").Int())

	id := gjson.Get(out, "0.id").String()
	out, err = execute(Store(), "get", id, storePath)
	require.NoError(t, err)
	assert.Equal(t, resultstore.TypeMessage, gjson.Get(out, "type").String())

	out, err = execute(Store(), "search", "predator", storePath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(out, "#").Int())

	store, err := resultstore.Open(storePath)
	require.NoError(t, err)
	files, err := store.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"83/83b9310399a905c7781f95580174f321cd18fd97"}, files)
	require.NoError(t, store.Close())

	_, err = execute(Run(), "--log-level", "error", "--output", storePath, backupDir)
	assert.Error(t, err)
}

func Test_tablesCommand(t *testing.T) {
	backupDir, _ := setup(t)

	out, err := execute(Tables(), filepath.Join(backupDir, "83", "83b9310399a905c7781f95580174f321cd18fd97"))
	require.NoError(t, err)
	assert.Equal(t, "ZVIBERMESSAGE\n", out)

	_, err = execute(Tables(), filepath.Join(backupDir, "missing"))
	assert.Error(t, err)
}

func Test_validateCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/custom.stix2", []byte(`{"objects": [{"type": "x-custom", "id": "x-custom--1"}]}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "/broken.stix2", []byte(`{"objects": [{"id": "x"}]}`), 0644))

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"Valid", []string{"/custom.stix2"}, "", false},
		{"Flaws", []string{"/custom.stix2", "/broken.stix2"}, "[\"/broken.stix2: object needs to have a type\"]\n", true},
		{"No Fail", []string{"--no-fail", "/broken.stix2"}, "[\"/broken.stix2: object needs to have a type\"]\n", false},
		{"Missing", []string{"/missing.stix2"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(validateCommand(fs), tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, out)
		})
	}
}

func Test_listCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/predator.stix2", []byte(predatorBundle), 0644))

	out, err := execute(listCommand(fs), "/predator.stix2")
	require.NoError(t, err)
	assert.Equal(t, "Predator\tpredator.stix2\tkingdom-deals.com\n", out)
}
