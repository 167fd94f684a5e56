// polycalc computes Polytopia fights from the command line.
//
// Usage:
//
//	polycalc duel [-version v] [-indirect] [-melee] [-no-tentacles] [-passive] <attacker> <defender>
//	polycalc brawl -f scenario.yaml [-json] [-code]
//	polycalc units [-version v] [-tags land,naval]
//	polycalc versions
//
// Units are given as a class id with optional health ("warrior", "defender:7")
// or in short notation ("wr10d": short id, health, trailing d for defense bonus).
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/game/brawl"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
	"github.com/udisondev/polycalc/internal/scenario"
)

var errUsage = errors.New("usage: polycalc duel|brawl|units|versions [flags]")

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	catalog, err := data.LoadCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "duel":
		return runDuel(catalog, rest, out)
	case "brawl":
		return runBrawl(catalog, rest, out)
	case "units":
		return runUnits(catalog, rest, out)
	case "versions":
		return runVersions(catalog, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func lookupVersion(catalog *data.Catalog, id string) (*data.Version, error) {
	if id == "" {
		return catalog.Latest(), nil
	}
	v := catalog.Version(id)
	if v == nil {
		return nil, fmt.Errorf("unknown version %q", id)
	}
	return v, nil
}

// parseUnitArg accepts "class[:health]" or the short notation.
func parseUnitArg(version *data.Version, arg string) (model.Unit, error) {
	id, healthStr, hasHealth := strings.Cut(arg, ":")
	if class := version.Class(id); class != nil {
		unit := model.NewFullHealthUnit(class, nil, model.ConditionMap{})
		if hasHealth {
			h, err := strconv.Atoi(healthStr)
			if err != nil {
				return model.Unit{}, fmt.Errorf("bad health in %q: %w", arg, err)
			}
			unit = unit.WithHealth(h)
		}
		return unit, nil
	}

	unit, ok := version.ParseUnit(arg)
	if !ok {
		return model.Unit{}, fmt.Errorf("unknown unit %q in version %s", arg, version.ID)
	}
	return unit, nil
}

func runDuel(catalog *data.Catalog, args []string, out io.Writer) error {
	fs := newFlagSet("duel")
	versionID := fs.String("version", "", "game version (default: latest)")
	indirect := fs.Bool("indirect", false, "indirect attack (explosion)")
	melee := fs.Bool("melee", false, "switch the ranged toggle off")
	noTentacles := fs.Bool("no-tentacles", false, "skip the tentacle strike")
	passive := fs.Bool("passive", false, "start from an inactive cell")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: duel needs <attacker> <defender>", errUsage)
	}

	version, err := lookupVersion(catalog, *versionID)
	if err != nil {
		return err
	}
	attacker, err := parseUnitArg(version, fs.Arg(0))
	if err != nil {
		return err
	}
	defender, err := parseUnitArg(version, fs.Arg(1))
	if err != nil {
		return err
	}

	conditions := combat.CreateFightConditions(attacker, defender, nil, *passive)
	if *indirect && conditions.Indirect.IsPresent() {
		conditions = conditions.With(combat.KeyIndirect, combat.On)
	}
	if *melee && conditions.Ranged.IsPresent() {
		conditions = conditions.With(combat.KeyRanged, combat.Off)
	}
	if *noTentacles && conditions.Tentacles.IsPresent() {
		conditions = conditions.With(combat.KeyTentacles, combat.Off)
	}

	result := combat.Fight(attacker, defender, conditions)

	fmt.Fprintf(out, "version:    %s\n", version.ID)
	fmt.Fprintf(out, "conditions: %s\n", strings.Join(conditions.Keys(), " "))
	if err := combat.ValidateFight(attacker, defender, conditions); err != nil {
		fmt.Fprintf(out, "skipped:    %v\n", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIDE\tUNIT\tBEFORE\tAFTER\tCONDITIONS")
	printDuelRow(tw, "attacker", attacker, result.Attacker)
	printDuelRow(tw, "defender", defender, result.Defender)
	return tw.Flush()
}

func printDuelRow(w io.Writer, side string, before, after model.Unit) {
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
		side, before.Class().Label, before.Health(), healthString(after), strings.Join(after.Conditions().Names(), ","))
}

func healthString(u model.Unit) string {
	if u.IsDead() {
		return fmt.Sprintf("%d (dead)", u.Health())
	}
	return strconv.Itoa(u.Health())
}

func runBrawl(catalog *data.Catalog, args []string, out io.Writer) error {
	fs := newFlagSet("brawl")
	file := fs.String("f", "", "scenario file (.yaml, .yml or .json)")
	asJSON := fs.Bool("json", false, "print the computed brawl as JSON")
	withCode := fs.Bool("code", false, "print the share code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: brawl needs -f <file>", errUsage)
	}

	sc, err := loadScenario(*file)
	if err != nil {
		return err
	}
	state := scenario.Build(catalog, sc)

	if *withCode {
		code, err := scenario.Code(scenario.FromState(state))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "code: %s\n", code)
	}

	if *asJSON {
		return writeStateJSON(out, state)
	}
	return printBrawl(out, state)
}

func loadScenario(path string) (scenario.Scenario, error) {
	format, err := scenario.FormatFromPath(path)
	if err != nil {
		return scenario.Scenario{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()

	sc, err := scenario.Decode(f, format)
	if err != nil {
		return scenario.Scenario{}, err
	}
	if err := sc.Validate(); err != nil {
		return scenario.Scenario{}, err
	}
	return sc, nil
}

func writeStateJSON(out io.Writer, s brawl.State) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func unitLabel(prefix string, i int, u model.Unit) string {
	return fmt.Sprintf("%s%d %s", prefix, i+1, u.Class().Label)
}

func printBrawl(out io.Writer, s brawl.State) error {
	fmt.Fprintf(out, "version: %s\n\n", s.Version.ID)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTACKER\tDEFENDER\tMODE\tATTACKER HP\tDEFENDER HP")
	for i, row := range s.Results.Cells {
		for j, cell := range row {
			if !cell.Fought && cell.WasDead == brawl.NoneDead {
				continue
			}
			mode := strings.Join(cell.Conditions.Keys(), ",")
			if cell.WasDead != brawl.NoneDead {
				mode = "skipped: " + cell.WasDead.String() + " dead"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				unitLabel("A", i, s.Attackers[i].Unit),
				unitLabel("D", j, s.Defenders[j]),
				mode,
				healthString(cell.Attacker),
				healthString(cell.Defender),
			)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tSTART\tEND")
	for i, a := range s.Attackers {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", unitLabel("A", i, a.Unit), a.Unit.Health(), healthString(s.Results.Attackers[i]))
	}
	for j, d := range s.Defenders {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", unitLabel("D", j, d), d.Health(), healthString(s.Results.Defenders[j]))
	}
	return tw.Flush()
}

func runUnits(catalog *data.Catalog, args []string, out io.Writer) error {
	fs := newFlagSet("units")
	versionID := fs.String("version", "", "game version (default: latest)")
	tags := fs.String("tags", "", "comma-separated tag filter, any match")
	if err := fs.Parse(args); err != nil {
		return err
	}

	version, err := lookupVersion(catalog, *versionID)
	if err != nil {
		return err
	}

	classes := version.Classes()
	if *tags != "" {
		var filter []model.UnitTag
		for _, t := range strings.Split(*tags, ",") {
			filter = append(filter, model.UnitTag(strings.TrimSpace(t)))
		}
		classes = version.ClassesWithTags(filter...)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHORT\tLABEL\tHP\tATK\tDEF\tRNG\tSKILLS")
	for _, c := range classes {
		hp := strconv.Itoa(c.Health)
		if !c.HasFixedHealth() {
			hp = "ship"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%g\t%d\t%s\n",
			c.ID, c.ShortID, c.Label, hp, c.Attack, c.Defense, c.Range, strings.Join(c.Skills.Names(), ","))
	}
	return tw.Flush()
}

func runVersions(catalog *data.Catalog, out io.Writer) error {
	latest := catalog.Latest()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGAME\tLABEL\tSTATUS\tUNITS")
	for _, v := range catalog.Versions() {
		id := v.ID
		if v == latest {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", id, v.GameID, v.Label, v.Status, len(v.Classes()))
	}
	return tw.Flush()
}
