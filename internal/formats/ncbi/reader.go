package ncbi

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/formats"
)

// nodeRow is one parsed nodes.dmp line before names are joined in.
type nodeRow struct {
	taxID  string
	parent string
	rank   rank.Rank
	// rawRank is set when the rank string failed to parse and the
	// caller asked for lenient reads.
	rawRank string
}

// readDump reads a taxdump from a directory or a .tar.gz archive.
func readDump(path string, opts formats.ReadOptions) (*tree.Taxonomy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIO("stat", path, err)
	}

	var (
		rows  []nodeRow
		names map[string]string
	)
	if info.IsDir() {
		rows, names, err = readDir(path, opts)
	} else {
		rows, names, err = readArchive(path, opts)
	}
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, errors.NewParse("NCBI", path, "dump has no nodes.dmp")
	}

	nodes := make([]*tree.Node, 0, len(rows))
	for _, row := range rows {
		n := &tree.Node{
			ID:     row.taxID,
			Name:   names[row.taxID],
			Rank:   row.rank,
			Parent: row.parent,
		}
		if row.rawRank != "" {
			n.Attributes = map[string]string{"original_rank": row.rawRank}
		}
		nodes = append(nodes, n)
	}
	return tree.Build(nodes)
}

// readDir reads nodes.dmp and names.dmp from an unpacked dump
// directory; either member may be xz-compressed.
func readDir(dir string, opts formats.ReadOptions) ([]nodeRow, map[string]string, error) {
	nodesFile, err := openMember(dir, "nodes.dmp")
	if err != nil {
		return nil, nil, err
	}
	defer nodesFile.Close()
	rows, err := scanNodes(nodesFile, opts)
	if err != nil {
		return nil, nil, err
	}

	names := map[string]string{}
	namesFile, err := openMember(dir, "names.dmp")
	if err == nil {
		defer namesFile.Close()
		names, err = scanNames(namesFile)
		if err != nil {
			return nil, nil, err
		}
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, nil, err
	}
	return rows, names, nil
}

// readArchive reads nodes.dmp and names.dmp out of a taxdump .tar.gz
// in whatever order the archive lists them.
func readArchive(path string, opts formats.ReadOptions) ([]nodeRow, map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewIO("open", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, nil, errors.NewParse("NCBI", path, "not a gzip archive")
	}
	defer gz.Close()

	var (
		rows  []nodeRow
		names = map[string]string{}
	)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.NewParse("NCBI", path, err.Error())
		}
		switch filepath.Base(header.Name) {
		case "nodes.dmp":
			rows, err = scanNodes(tr, opts)
		case "names.dmp":
			names, err = scanNames(tr)
		default:
			continue
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return rows, names, nil
}

// openMember opens dir/name, falling back to the xz-compressed variant.
func openMember(dir, name string) (io.ReadCloser, error) {
	path := filepath.Join(dir, name)
	if file, err := os.Open(path); err == nil {
		return file, nil
	}

	file, err := os.Open(path + ".xz")
	if err != nil {
		return nil, &errors.NotFoundError{Resource: "dump member", ID: path}
	}
	xr, err := xz.NewReader(bufio.NewReader(file))
	if err != nil {
		file.Close()
		return nil, errors.NewParse("NCBI", path+".xz", "not an xz stream")
	}
	return &xzReadCloser{Reader: xr, file: file}, nil
}

// xzReadCloser closes the underlying file when the xz stream is done.
type xzReadCloser struct {
	*xz.Reader
	file *os.File
}

func (r *xzReadCloser) Close() error {
	return r.file.Close()
}

// scanNodes parses nodes.dmp rows: tax_id | parent | rank | ... with
// "\t|\t" separators and a "\t|" line terminator. The NCBI root is its
// own parent; that self-reference becomes an empty Parent.
func scanNodes(r io.Reader, opts formats.ReadOptions) ([]nodeRow, error) {
	var rows []nodeRow
	scanner := newDumpScanner(r)
	for scanner.Scan() {
		fields := splitDumpLine(scanner.Text())
		if len(fields) < 3 {
			return nil, errors.NewParse("NCBI", "nodes.dmp", "row has fewer than 3 fields")
		}
		row := nodeRow{taxID: fields[0], parent: fields[1]}
		if row.parent == row.taxID {
			row.parent = ""
		}

		parsed, err := rank.Parse(fields[2])
		if err != nil {
			if !opts.AllowUnknownRanks {
				return nil, errors.Wrapf(err, "node %s", row.taxID)
			}
			// Recoverable by request: keep the node, remember the
			// spelling we could not place.
			parsed = rank.Unspecified
			row.rawRank = fields[2]
		}
		row.rank = parsed
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", "nodes.dmp", err)
	}
	return rows, nil
}

// scanNames parses names.dmp and keeps only "scientific name" entries.
func scanNames(r io.Reader) (map[string]string, error) {
	names := make(map[string]string)
	scanner := newDumpScanner(r)
	for scanner.Scan() {
		fields := splitDumpLine(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if fields[3] == "scientific name" {
			names[fields[0]] = fields[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", "names.dmp", err)
	}
	return names, nil
}

// newDumpScanner returns a line scanner sized for the long synonym
// lines some dumps carry.
func newDumpScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

// splitDumpLine splits a dump row on the "\t|\t" separator after
// stripping the "\t|" terminator.
func splitDumpLine(line string) []string {
	line = strings.TrimSuffix(strings.TrimRight(line, "\r\n"), "\t|")
	return strings.Split(line, "\t|\t")
}

// archiveHasNodes reports whether a .tar.gz archive contains nodes.dmp.
func archiveHasNodes(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return false, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if filepath.Base(header.Name) == "nodes.dmp" {
			return true, nil
		}
	}
}
