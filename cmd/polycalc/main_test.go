package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/polycalc/internal/scenario"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

// row returns the fields of the first output line starting with prefix.
func row(t *testing.T, output, prefix string) []string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.Fields(line)
		}
	}
	t.Fatalf("no line starting with %q in:\n%s", prefix, output)
	return nil
}

func TestDuel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		args         []string
		wantAttacker string
		wantDefender string
	}{
		{
			name:         "class ids",
			args:         []string{"duel", "-version", "diplomacy", "warrior", "warrior"},
			wantAttacker: "5",
			wantDefender: "5",
		},
		{
			name:         "ranged",
			args:         []string{"duel", "-version", "diplomacy", "archer", "warrior"},
			wantAttacker: "10",
			wantDefender: "5",
		},
		{
			name:         "melee flag",
			args:         []string{"duel", "-version", "diplomacy", "-melee", "archer", "warrior"},
			wantAttacker: "5",
			wantDefender: "5",
		},
		{
			name:         "short notation with tentacles",
			args:         []string{"duel", "je15", "je15"},
			wantAttacker: "10",
			wantDefender: "10",
		},
		{
			name:         "explicit health",
			args:         []string{"duel", "-version", "diplomacy", "warrior:10", "warrior:1"},
			wantAttacker: "10",
			wantDefender: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)

			att := row(t, out, "attacker")
			def := row(t, out, "defender")
			assert.Equal(t, tt.wantAttacker, att[3], out)
			if tt.wantDefender == "-" {
				assert.Contains(t, strings.Join(def, " "), "(dead)", out)
				return
			}
			assert.Equal(t, tt.wantDefender, def[3], out)
		})
	}
}

func TestDuel_Passive(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "duel", "-version", "diplomacy", "-passive", "warrior", "warrior")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped:")
	assert.Equal(t, "10", row(t, out, "defender")[3])
}

func TestBrawl(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "example.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, scenario.Encode(f, scenario.Example(), scenario.FormatYAML))
	require.NoError(t, f.Close())

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		out, err := runCLI(t, "brawl", "-f", path, "-code")
		require.NoError(t, err)

		code, err := scenario.Code(scenario.Example())
		require.NoError(t, err)
		assert.Contains(t, out, "code: "+code)
		assert.Contains(t, out, "version: aquarion-rework")
		assert.Contains(t, out, "skipped: defender dead")

		summary := out[strings.Index(out, "UNIT"):]
		assert.Equal(t, []string{"A1", "Bomber", "7", "7"}, row(t, summary, "A1 Bomber"))
		assert.Equal(t, []string{"A3", "Rammer", "10", "10"}, row(t, summary, "A3 Rammer"))
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		out, err := runCLI(t, "brawl", "-f", path, "-json")
		require.NoError(t, err)

		var state struct {
			VersionID string            `json:"versionId"`
			Attackers []json.RawMessage `json:"attackers"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &state))
		assert.Equal(t, "aquarion-rework", state.VersionID)
		assert.Len(t, state.Attackers, 3)
	})
}

func TestUnits(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "units", "-version", "aquarion-rework", "-tags", "aquarion")
	require.NoError(t, err)
	assert.Contains(t, out, "jelly")
	assert.NotContains(t, out, "\nmooni ")

	out, err = runCLI(t, "units", "-version", "diplomacy")
	require.NoError(t, err)
	assert.Equal(t, "ship", row(t, out, "boat")[3])
}

func TestVersions(t *testing.T) {
	t.Parallel()

	out, err := runCLI(t, "versions")
	require.NoError(t, err)
	for _, id := range []string{"diplomacy", "ocean", "aquarion-rework *"} {
		assert.Contains(t, out, id)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"fly"}},
		{name: "duel without units", args: []string{"duel", "warrior"}},
		{name: "unknown unit", args: []string{"duel", "warrior", "zz"}},
		{name: "unknown version", args: []string{"units", "-version", "nope"}},
		{name: "brawl without file", args: []string{"brawl"}},
		{name: "brawl bad extension", args: []string{"brawl", "-f", "scenario.txt"}},
		{name: "bad flag", args: []string{"duel", "-fly", "warrior", "warrior"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
