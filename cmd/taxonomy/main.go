// Command taxonomy is the CLI for the taxonomy toolkit.
// It converts taxonomies between formats, manages a local dataset
// store, and answers lineage and rank queries.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/store"
	"github.com/audy/taxonomy/core/tree"
	"github.com/audy/taxonomy/internal/api"
	"github.com/audy/taxonomy/internal/formats"

	// Register all format handlers.
	_ "github.com/audy/taxonomy/internal/formats/all"
)

const version = "0.1.0"

// CLI defines the command-line interface for taxonomy.
var CLI struct {
	// Global flags
	DB      string `help:"Dataset store path" default:"taxonomy.db" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	// Command groups (noun-first organization)
	Convert ConvertCmd   `cmd:"" help:"Convert a taxonomy between formats"`
	Format  FormatGroup  `cmd:"" help:"Format detection and listing"`
	Rank    RankGroup    `cmd:"" help:"Taxonomic rank operations"`
	Dataset DatasetGroup `cmd:"" help:"Dataset store operations (import, export, list, delete)"`
	Taxon   TaxonGroup   `cmd:"" help:"Taxon queries against a stored dataset"`
	API     APICmd       `cmd:"" help:"Start REST API server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// FormatGroup contains format detection and listing operations.
type FormatGroup struct {
	List   FormatListCmd `cmd:"" help:"List supported formats"`
	Detect DetectCmd     `cmd:"" help:"Detect the format of a file or directory"`
}

// RankGroup contains rank vocabulary operations.
type RankGroup struct {
	List  RankListCmd  `cmd:"" help:"List all known ranks"`
	Parse RankParseCmd `cmd:"" help:"Parse a rank name"`
}

// DatasetGroup contains dataset store operations.
type DatasetGroup struct {
	Import ImportCmd        `cmd:"" help:"Import a taxonomy into the dataset store"`
	Export ExportCmd        `cmd:"" help:"Export a stored dataset to a format"`
	List   DatasetListCmd   `cmd:"" help:"List stored datasets"`
	Show   DatasetShowCmd   `cmd:"" help:"Show dataset details"`
	Delete DatasetDeleteCmd `cmd:"" help:"Delete a stored dataset"`
}

// TaxonGroup contains taxon query operations.
type TaxonGroup struct {
	Show     TaxonShowCmd `cmd:"" help:"Show one taxon"`
	Lineage  LineageCmd   `cmd:"" help:"Print the lineage from a taxon to the root"`
	Children ChildrenCmd  `cmd:"" help:"List direct children of a taxon"`
	Search   SearchCmd    `cmd:"" help:"Find taxa by name"`
	LCA      LCACmd       `cmd:"" help:"Lowest common ancestor of two taxa"`
}

func openStore() (*store.Store, error) {
	return store.Open(CLI.DB)
}

func loadDataset(name string) (*store.Store, *tree.Taxonomy, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	tax, err := st.Load(name)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, tax, nil
}

// readSource reads a taxonomy from path, either with an explicitly
// named handler or by detection.
func readSource(path, format string, allowUnknown bool) (*tree.Taxonomy, formats.Handler, error) {
	var handler formats.Handler
	if format != "" {
		h, err := formats.Get(format)
		if err != nil {
			return nil, nil, err
		}
		handler = h
	} else {
		h, result, err := formats.Detect(path)
		if err != nil {
			return nil, nil, err
		}
		handler = h
		if CLI.Verbose {
			fmt.Fprintf(os.Stderr, "detected %s: %s\n", result.Format, result.Reason)
		}
	}

	tax, err := handler.Read(path, formats.ReadOptions{AllowUnknownRanks: allowUnknown})
	if err != nil {
		return nil, nil, err
	}
	return tax, handler, nil
}

// ConvertCmd converts a taxonomy between formats.
type ConvertCmd struct {
	Path         string `arg:"" help:"Path to input taxonomy" type:"existingpath"`
	To           string `required:"" help:"Target format (see 'taxonomy format list')"`
	Out          string `required:"" help:"Output path" type:"path"`
	From         string `help:"Source format (default: detect)"`
	AllowUnknown bool   `name:"allow-unknown-ranks" help:"Map unrecognized ranks to unspecified instead of failing"`
}

func (c *ConvertCmd) Run() error {
	tax, source, err := readSource(c.Path, c.From, c.AllowUnknown)
	if err != nil {
		return err
	}

	target, err := formats.Get(c.To)
	if err != nil {
		return err
	}
	if err := target.Write(tax, c.Out); err != nil {
		return err
	}

	fmt.Printf("Converted: %s (%s)\n", c.Path, source.Name())
	fmt.Printf("  Nodes: %d\n", tax.Len())
	fmt.Printf("  Output: %s (%s)\n", c.Out, target.Name())
	return nil
}

// FormatListCmd lists supported formats.
type FormatListCmd struct{}

func (c *FormatListCmd) Run() error {
	fmt.Println("Supported formats:")
	for _, name := range formats.Names() {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

// DetectCmd detects the format of a file or directory.
type DetectCmd struct {
	Path string `arg:"" help:"Path to file or directory" type:"existingpath"`
}

func (c *DetectCmd) Run() error {
	path, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}

	handler, result, err := formats.Detect(path)
	if err != nil {
		return err
	}

	fmt.Printf("Detected: %s\n", handler.Name())
	fmt.Printf("  Reason: %s\n", result.Reason)
	return nil
}

// RankListCmd lists all known ranks with their NCBI names.
type RankListCmd struct{}

func (c *RankListCmd) Run() error {
	for _, r := range rank.All() {
		fmt.Printf("  %-24s ncbi: %s\n", r.String(), r.NCBIName())
	}
	return nil
}

// RankParseCmd parses a rank name and prints its canonical form.
type RankParseCmd struct {
	Name string `arg:"" help:"Rank name, synonym, or historical spelling"`
}

func (c *RankParseCmd) Run() error {
	r, err := rank.Parse(c.Name)
	if err != nil {
		return err
	}
	fmt.Printf("Rank: %s\n", r)
	fmt.Printf("  NCBI name: %s\n", r.NCBIName())
	return nil
}

// ImportCmd imports a taxonomy into the dataset store.
type ImportCmd struct {
	Path         string `arg:"" help:"Path to input taxonomy" type:"existingpath"`
	Name         string `required:"" help:"Dataset name"`
	From         string `help:"Source format (default: detect)"`
	AllowUnknown bool   `name:"allow-unknown-ranks" help:"Map unrecognized ranks to unspecified instead of failing"`
}

func (c *ImportCmd) Run() error {
	tax, handler, err := readSource(c.Path, c.From, c.AllowUnknown)
	if err != nil {
		return err
	}

	var hashes *store.HashResult
	if info, err := os.Stat(c.Path); err == nil && !info.IsDir() {
		hashes, err = store.HashFile(c.Path)
		if err != nil {
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ds, err := st.Save(c.Name, tax, hashes)
	if err != nil {
		return err
	}

	fmt.Printf("Imported: %s (%s)\n", c.Path, handler.Name())
	fmt.Printf("  Dataset: %s\n", ds.Name)
	fmt.Printf("  ID: %s\n", ds.ID)
	fmt.Printf("  Nodes: %d\n", ds.NodeCount)
	if ds.SourceSHA256 != "" {
		fmt.Printf("  SHA-256: %s\n", ds.SourceSHA256)
		fmt.Printf("  BLAKE3: %s\n", ds.SourceBLAKE3)
	}
	return nil
}

// ExportCmd exports a stored dataset to a format.
type ExportCmd struct {
	Name string `arg:"" help:"Dataset name"`
	To   string `required:"" help:"Target format"`
	Out  string `required:"" help:"Output path" type:"path"`
}

func (c *ExportCmd) Run() error {
	st, tax, err := loadDataset(c.Name)
	if err != nil {
		return err
	}
	defer st.Close()

	target, err := formats.Get(c.To)
	if err != nil {
		return err
	}
	if err := target.Write(tax, c.Out); err != nil {
		return err
	}

	fmt.Printf("Exported: %s\n", c.Name)
	fmt.Printf("  Nodes: %d\n", tax.Len())
	fmt.Printf("  Output: %s (%s)\n", c.Out, target.Name())
	return nil
}

// DatasetListCmd lists stored datasets.
type DatasetListCmd struct{}

func (c *DatasetListCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	datasets, err := st.Datasets()
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		fmt.Printf("No datasets in %s\n", CLI.DB)
		return nil
	}

	fmt.Printf("Datasets in %s:\n\n", CLI.DB)
	for _, ds := range datasets {
		fmt.Printf("  %s\n", ds.Name)
		fmt.Printf("    Nodes: %d\n", ds.NodeCount)
		fmt.Printf("    Imported: %s\n", ds.ImportedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\nTotal: %d dataset(s)\n", len(datasets))
	return nil
}

// DatasetShowCmd shows dataset details.
type DatasetShowCmd struct {
	Name string `arg:"" help:"Dataset name"`
}

func (c *DatasetShowCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ds, err := st.Dataset(c.Name)
	if err != nil {
		return err
	}

	fmt.Printf("Dataset: %s\n", ds.Name)
	fmt.Printf("  ID: %s\n", ds.ID)
	fmt.Printf("  Nodes: %d\n", ds.NodeCount)
	fmt.Printf("  Imported: %s\n", ds.ImportedAt.Format("2006-01-02 15:04:05"))
	if ds.SourceSHA256 != "" {
		fmt.Printf("  SHA-256: %s\n", ds.SourceSHA256)
		fmt.Printf("  BLAKE3: %s\n", ds.SourceBLAKE3)
	}
	return nil
}

// DatasetDeleteCmd deletes a stored dataset.
type DatasetDeleteCmd struct {
	Name string `arg:"" help:"Dataset name"`
}

func (c *DatasetDeleteCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(c.Name); err != nil {
		return err
	}
	fmt.Printf("Deleted: %s\n", c.Name)
	return nil
}

// TaxonShowCmd shows one taxon.
type TaxonShowCmd struct {
	Dataset string `arg:"" help:"Dataset name"`
	ID      string `arg:"" help:"Taxon ID"`
}

func (c *TaxonShowCmd) Run() error {
	st, tax, err := loadDataset(c.Dataset)
	if err != nil {
		return err
	}
	defer st.Close()

	node, err := tax.Node(c.ID)
	if err != nil {
		return err
	}
	printNode(node, "")

	children, err := tax.Children(c.ID)
	if err != nil {
		return err
	}
	fmt.Printf("  Children: %d\n", len(children))
	return nil
}

// LineageCmd prints the lineage from a taxon to the root.
type LineageCmd struct {
	Dataset string `arg:"" help:"Dataset name"`
	ID      string `arg:"" help:"Taxon ID"`
}

func (c *LineageCmd) Run() error {
	st, tax, err := loadDataset(c.Dataset)
	if err != nil {
		return err
	}
	defer st.Close()

	lineage, err := tax.Lineage(c.ID)
	if err != nil {
		return err
	}

	// Print root first.
	for i := len(lineage) - 1; i >= 0; i-- {
		printNode(lineage[i], strings.Repeat("  ", len(lineage)-1-i))
	}
	return nil
}

// ChildrenCmd lists direct children of a taxon.
type ChildrenCmd struct {
	Dataset string `arg:"" help:"Dataset name"`
	ID      string `arg:"" help:"Taxon ID"`
}

func (c *ChildrenCmd) Run() error {
	st, tax, err := loadDataset(c.Dataset)
	if err != nil {
		return err
	}
	defer st.Close()

	children, err := tax.Children(c.ID)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		fmt.Println("No children.")
		return nil
	}
	for _, child := range children {
		printNode(child, "")
	}
	return nil
}

// SearchCmd finds taxa by name.
type SearchCmd struct {
	Dataset string `arg:"" help:"Dataset name"`
	Query   string `arg:"" help:"Scientific name to look up"`
}

func (c *SearchCmd) Run() error {
	st, tax, err := loadDataset(c.Dataset)
	if err != nil {
		return err
	}
	defer st.Close()

	matches := tax.FindByName(c.Query)
	if len(matches) == 0 {
		fmt.Printf("No taxa named %q\n", c.Query)
		return nil
	}
	for _, node := range matches {
		printNode(node, "")
	}
	return nil
}

// LCACmd prints the lowest common ancestor of two taxa.
type LCACmd struct {
	Dataset string `arg:"" help:"Dataset name"`
	A       string `arg:"" help:"First taxon ID"`
	B       string `arg:"" help:"Second taxon ID"`
}

func (c *LCACmd) Run() error {
	st, tax, err := loadDataset(c.Dataset)
	if err != nil {
		return err
	}
	defer st.Close()

	ancestor, err := tax.LCA(c.A, c.B)
	if err != nil {
		return err
	}
	printNode(ancestor, "")
	return nil
}

// APICmd starts the REST API server.
type APICmd struct {
	Port    int      `help:"HTTP server port" default:"8081"`
	APIKey  string   `name:"api-key" env:"TAXONOMY_API_KEY" help:"Require this API key on requests"`
	Origins []string `name:"allowed-origins" help:"CORS allowed origins (default: allow all)"`
}

func (c *APICmd) Run() error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := api.Config{
		Port:           c.Port,
		DBPath:         CLI.DB,
		AllowedOrigins: c.Origins,
		Auth: api.AuthConfig{
			Enabled: c.APIKey != "",
			APIKey:  c.APIKey,
		},
	}
	srv, err := api.NewServer(cfg, st, log)
	if err != nil {
		return err
	}
	return srv.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("taxonomy version %s\n", version)
	fmt.Printf("  sqlite driver: %s\n", store.DriverType())
	return nil
}

func printNode(n *tree.Node, indent string) {
	rankStr := ""
	if n.Rank != rank.Unspecified {
		rankStr = fmt.Sprintf(" [%s]", n.Rank)
	}
	fmt.Printf("%s%s: %s%s\n", indent, n.ID, n.Name, rankStr)
}

func newLogger() (*zap.Logger, error) {
	if CLI.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("taxonomy"),
		kong.Description("Taxonomy toolkit - convert, store, and query taxonomic trees"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
