// tip-scan runs one-shot crack-tip scans over VTK files without a
// server or database. Useful for checking a simulation series from the
// command line:
//
//	tip-scan -threshold 0.7 results/solution_*.vtk
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/phasefield-data/fracture.report/internal/config"
	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/units"
)

var (
	configPath  = flag.String("config", "", "Tuning config JSON path")
	fieldName   = flag.String("field", "", "Damage field name (overrides config)")
	threshold   = flag.Float64("threshold", -1, "Critical damage threshold in [0,1] (overrides config)")
	reference   = flag.String("ref", "", "Reference point as x,y,z (overrides config)")
	regionMin   = flag.String("region-min", "", "Region lower corner as x,y,z (overrides config)")
	regionMax   = flag.String("region-max", "", "Region upper corner as x,y,z (overrides config)")
	stepPattern = flag.String("step-pattern", "", "Filename pattern extracting the step index (overrides config)")
	outputUnits = flag.String("units", units.Meters, "Length units for output")
	listFields  = flag.Bool("list-fields", false, "List each file's point data fields instead of scanning")
	jsonOutput  = flag.Bool("json", false, "Emit one JSON object per file")
)

type fileResult struct {
	File       string     `json:"file"`
	Step       *int       `json:"step,omitempty"`
	Tip        mesh.Point `json:"tip"`
	Distance   float64    `json:"distance"`
	Found      bool       `json:"found"`
	Candidates int        `json:"candidates"`
	Units      string     `json:"units"`
	Diagnostic string     `json:"diagnostic,omitempty"`
}

func parsePointArg(raw string) (mesh.Point, error) {
	var p mesh.Point
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("%q is not of the form x,y,z", raw)
	}
	for k, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("component %d of %q: %w", k, raw, err)
		}
		p[k] = v
	}
	return p, nil
}

func buildConfig(tuning *config.TuningConfig) (cracktip.ScanConfig, error) {
	cfg := tuning.ScanConfig()

	if *fieldName != "" {
		cfg.FieldName = *fieldName
	}
	if *threshold >= 0 {
		if *threshold > 1 {
			return cfg, fmt.Errorf("threshold %g out of range [0,1]", *threshold)
		}
		cfg.Threshold = *threshold
	}
	if *reference != "" {
		p, err := parsePointArg(*reference)
		if err != nil {
			return cfg, fmt.Errorf("invalid -ref: %w", err)
		}
		cfg.Reference = p
	}
	if *regionMin != "" {
		p, err := parsePointArg(*regionMin)
		if err != nil {
			return cfg, fmt.Errorf("invalid -region-min: %w", err)
		}
		cfg.Region.Min = p
	}
	if *regionMax != "" {
		p, err := parsePointArg(*regionMax)
		if err != nil {
			return cfg, fmt.Errorf("invalid -region-max: %w", err)
		}
		cfg.Region.Max = p
	}
	return cfg, nil
}

// expandArgs globs each argument and returns the union, preserving
// literal paths that match nothing so their errors surface later.
func expandArgs(args []string) []string {
	var paths []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			paths = append(paths, arg)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths
}

func stepOf(re *regexp.Regexp, path string) *int {
	m := re.FindStringSubmatch(filepath.Base(path))
	if m == nil || len(m) < 2 {
		return nil
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &step
}

func readMeshFile(path string) (*mesh.PointSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mesh.ReadVTK(f)
}

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tip-scan [flags] <file.vtk>...")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if !units.IsValid(*outputUnits) {
		log.Fatalf("invalid units %q; valid values: %s", *outputUnits, units.GetValidUnitsString())
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	cfg, err := buildConfig(tuning)
	if err != nil {
		log.Fatal(err)
	}

	pattern := *stepPattern
	if pattern == "" {
		pattern = tuning.GetStepPattern()
	}
	stepRe, err := regexp.Compile(pattern)
	if err != nil {
		log.Fatalf("invalid step pattern: %v", err)
	}

	paths := expandArgs(flag.Args())
	sort.Slice(paths, func(i, j int) bool {
		si, sj := stepOf(stepRe, paths[i]), stepOf(stepRe, paths[j])
		if si != nil && sj != nil {
			return *si < *sj
		}
		return paths[i] < paths[j]
	})

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for _, path := range paths {
		ps, err := readMeshFile(path)
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}

		if *listFields {
			fmt.Printf("%s: %d points, fields: %s\n", path, ps.Len(), strings.Join(ps.FieldNames(), ", "))
			continue
		}

		res, err := cracktip.Locate(ps, cfg)
		out := fileResult{
			File:       path,
			Step:       stepOf(stepRe, path),
			Tip:        convert(res.Tip),
			Distance:   units.ConvertLength(math.Sqrt(res.DistanceSq), *outputUnits),
			Found:      res.Found,
			Candidates: res.Candidates,
			Units:      *outputUnits,
		}
		if err != nil {
			out.Diagnostic = err.Error()
		}

		if *jsonOutput {
			if err := enc.Encode(out); err != nil {
				log.Fatalf("failed to encode result: %v", err)
			}
			continue
		}

		switch {
		case out.Diagnostic != "":
			fmt.Printf("%s: %s (fields: %s)\n", path, out.Diagnostic, strings.Join(ps.FieldNames(), ", "))
		case !out.Found:
			fmt.Printf("%s: no tip found (%d points scanned)\n", path, ps.Len())
		default:
			fmt.Printf("%s: tip=(%g, %g, %g) distance=%g%s candidates=%d\n",
				path, out.Tip[0], out.Tip[1], out.Tip[2], out.Distance, out.Units, out.Candidates)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func convert(p mesh.Point) mesh.Point {
	return mesh.Point{
		units.ConvertLength(p[0], *outputUnits),
		units.ConvertLength(p[1], *outputUnits),
		units.ConvertLength(p[2], *outputUnits),
	}
}
