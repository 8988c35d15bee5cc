package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadVTK parses a legacy VTK ASCII unstructured grid, the format
// phase-field FEM codes write per output step. Coordinates come from
// the POINTS section; every SCALARS and single-component FIELD array
// under POINT_DATA becomes a named scalar field on the returned set.
// Cell connectivity and cell data are skipped.
//
// Datasets other than UNSTRUCTURED_GRID yield ErrNotUnstructuredGrid.
func ReadVTK(r io.Reader) (*PointSet, error) {
	br := bufio.NewReader(r)

	header, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("vtk: reading header: %w", err)
	}
	if !strings.HasPrefix(header, "# vtk DataFile") {
		return nil, fmt.Errorf("vtk: not a VTK legacy file: %q", header)
	}
	// Title line is free text; discard it.
	if _, err := readLine(br); err != nil {
		return nil, fmt.Errorf("vtk: reading title: %w", err)
	}
	format, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("vtk: reading format: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(format), "ASCII") {
		return nil, fmt.Errorf("vtk: unsupported format %q (only ASCII)", strings.TrimSpace(format))
	}

	tz, err := newTokenizer(br)
	if err != nil {
		return nil, fmt.Errorf("vtk: %w", err)
	}

	kw, _, err := tz.next()
	if err != nil {
		return nil, fmt.Errorf("vtk: reading DATASET: %w", err)
	}
	if kw != "DATASET" {
		return nil, fmt.Errorf("vtk: expected DATASET, got %q", kw)
	}
	kind, line, err := tz.next()
	if err != nil {
		return nil, fmt.Errorf("vtk: reading dataset kind: %w", err)
	}
	if kind != "UNSTRUCTURED_GRID" {
		return nil, fmt.Errorf("vtk: line %d: dataset %q: %w", line, kind, ErrNotUnstructuredGrid)
	}

	var ps *PointSet
	// Section: false while in geometry/POINT_DATA, true after CELL_DATA.
	inCellData := false

	for {
		kw, line, err := tz.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vtk: line %d: %w", line, err)
		}

		switch kw {
		case "POINTS":
			n, err := tz.nextInt()
			if err != nil {
				return nil, fmt.Errorf("vtk: line %d: POINTS count: %w", line, err)
			}
			if _, _, err := tz.next(); err != nil { // data type
				return nil, fmt.Errorf("vtk: line %d: POINTS type: %w", line, err)
			}
			points := make([]Point, n)
			for i := 0; i < n; i++ {
				for k := 0; k < 3; k++ {
					v, err := tz.nextFloat()
					if err != nil {
						return nil, fmt.Errorf("vtk: line %d: point %d coordinate: %w", line, i, err)
					}
					points[i][k] = v
				}
			}
			ps = NewPointSet(points)

		case "CELLS":
			if _, err := tz.nextInt(); err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELLS count: %w", line, err)
			}
			size, err := tz.nextInt()
			if err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELLS size: %w", line, err)
			}
			if err := tz.skip(size); err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELLS data: %w", line, err)
			}

		case "CELL_TYPES":
			n, err := tz.nextInt()
			if err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELL_TYPES count: %w", line, err)
			}
			if err := tz.skip(n); err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELL_TYPES data: %w", line, err)
			}

		case "POINT_DATA":
			n, err := tz.nextInt()
			if err != nil {
				return nil, fmt.Errorf("vtk: line %d: POINT_DATA count: %w", line, err)
			}
			if ps == nil {
				return nil, fmt.Errorf("vtk: line %d: POINT_DATA before POINTS", line)
			}
			if n != ps.Len() {
				return nil, fmt.Errorf("vtk: line %d: POINT_DATA %d does not match %d points", line, n, ps.Len())
			}
			inCellData = false

		case "CELL_DATA":
			if _, err := tz.nextInt(); err != nil {
				return nil, fmt.Errorf("vtk: line %d: CELL_DATA count: %w", line, err)
			}
			inCellData = true

		case "SCALARS":
			n := -1
			if !inCellData && ps != nil {
				n = ps.Len()
			}
			name, values, err := readScalars(tz, n)
			if err != nil {
				return nil, fmt.Errorf("vtk: line %d: SCALARS: %w", line, err)
			}
			if !inCellData && ps != nil {
				if err := ps.AddField(name, values); err != nil {
					return nil, fmt.Errorf("vtk: line %d: %w", line, err)
				}
			}

		case "FIELD":
			if err := readField(tz, ps, inCellData); err != nil {
				return nil, fmt.Errorf("vtk: line %d: FIELD: %w", line, err)
			}

		case "VECTORS", "NORMALS":
			if _, _, err := tz.next(); err != nil { // name
				return nil, fmt.Errorf("vtk: line %d: %s name: %w", line, kw, err)
			}
			if _, _, err := tz.next(); err != nil { // type
				return nil, fmt.Errorf("vtk: line %d: %s type: %w", line, kw, err)
			}
			n := 0
			if ps != nil {
				n = ps.Len()
			}
			if err := tz.skip(3 * n); err != nil {
				return nil, fmt.Errorf("vtk: line %d: %s data: %w", line, kw, err)
			}

		default:
			return nil, fmt.Errorf("vtk: line %d: unsupported section %q", line, kw)
		}
	}

	if ps == nil {
		return nil, fmt.Errorf("vtk: no POINTS section found")
	}
	return ps, nil
}

// readScalars parses a SCALARS block: name, data type, an optional
// component count, a LOOKUP_TABLE reference, then the values. For
// multi-component arrays only the first component is kept. n < 0
// marks a cell-data block: the numeric run is consumed and dropped.
func readScalars(tz *tokenizer, n int) (string, []float64, error) {
	name, _, err := tz.next()
	if err != nil {
		return "", nil, fmt.Errorf("name: %w", err)
	}
	if _, _, err := tz.next(); err != nil { // data type
		return "", nil, fmt.Errorf("type: %w", err)
	}

	comps := 1
	tok, _, err := tz.next()
	if err != nil {
		return "", nil, fmt.Errorf("after type: %w", err)
	}
	if tok != "LOOKUP_TABLE" {
		comps, err = strconv.Atoi(tok)
		if err != nil || comps < 1 || comps > 4 {
			return "", nil, fmt.Errorf("component count %q", tok)
		}
		tok, _, err = tz.next()
		if err != nil {
			return "", nil, fmt.Errorf("LOOKUP_TABLE: %w", err)
		}
	}
	if tok != "LOOKUP_TABLE" {
		return "", nil, fmt.Errorf("expected LOOKUP_TABLE, got %q", tok)
	}
	if _, _, err := tz.next(); err != nil { // table name
		return "", nil, fmt.Errorf("table name: %w", err)
	}

	if n < 0 {
		// Cell data at end of file: consume everything that parses as
		// a number.
		for {
			if _, err := tz.nextFloat(); err != nil {
				return name, nil, nil
			}
		}
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := tz.nextFloat()
		if err != nil {
			return "", nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
		for c := 1; c < comps; c++ {
			if _, err := tz.nextFloat(); err != nil {
				return "", nil, fmt.Errorf("value %d component %d: %w", i, c, err)
			}
		}
	}
	return name, values, nil
}

// readField parses a FIELD block. Single-component point arrays become
// scalar fields; everything else is consumed and dropped.
func readField(tz *tokenizer, ps *PointSet, inCellData bool) error {
	if _, _, err := tz.next(); err != nil { // field block name
		return fmt.Errorf("name: %w", err)
	}
	numArrays, err := tz.nextInt()
	if err != nil {
		return fmt.Errorf("array count: %w", err)
	}
	for a := 0; a < numArrays; a++ {
		name, _, err := tz.next()
		if err != nil {
			return fmt.Errorf("array %d name: %w", a, err)
		}
		comps, err := tz.nextInt()
		if err != nil {
			return fmt.Errorf("array %q components: %w", name, err)
		}
		tuples, err := tz.nextInt()
		if err != nil {
			return fmt.Errorf("array %q tuples: %w", name, err)
		}
		if _, _, err := tz.next(); err != nil { // data type
			return fmt.Errorf("array %q type: %w", name, err)
		}

		keep := !inCellData && ps != nil && comps == 1 && tuples == ps.Len()
		if keep {
			values := make([]float64, tuples)
			for i := 0; i < tuples; i++ {
				v, err := tz.nextFloat()
				if err != nil {
					return fmt.Errorf("array %q value %d: %w", name, i, err)
				}
				values[i] = v
			}
			if err := ps.AddField(name, values); err != nil {
				return err
			}
			continue
		}
		if err := tz.skip(comps * tuples); err != nil {
			return fmt.Errorf("array %q data: %w", name, err)
		}
	}
	return nil
}

// tokenizer yields whitespace-separated tokens with 1-based line
// numbers for error reporting.
type tokenizer struct {
	tokens []string
	lines  []int
	pos    int
}

func newTokenizer(r io.Reader) (*tokenizer, error) {
	tz := &tokenizer{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	lineNo := 3 // three header lines already consumed
	for sc.Scan() {
		lineNo++
		for _, tok := range strings.Fields(sc.Text()) {
			tz.tokens = append(tz.tokens, tok)
			tz.lines = append(tz.lines, lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tz, nil
}

func (tz *tokenizer) next() (string, int, error) {
	if tz.pos >= len(tz.tokens) {
		return "", 0, io.EOF
	}
	tok, line := tz.tokens[tz.pos], tz.lines[tz.pos]
	tz.pos++
	return tok, line, nil
}

func (tz *tokenizer) nextInt() (int, error) {
	tok, line, err := tz.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("line %d: expected integer, got %q", line, tok)
	}
	return n, nil
}

func (tz *tokenizer) nextFloat() (float64, error) {
	tok, line, err := tz.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		// Rewind so a keyword that ended the numeric run is still seen.
		tz.pos--
		return 0, fmt.Errorf("line %d: expected number, got %q", line, tok)
	}
	return v, nil
}

func (tz *tokenizer) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, _, err := tz.next(); err != nil {
			return err
		}
	}
	return nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
