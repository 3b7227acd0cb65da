// Command rld drives the full link pipeline: parse every input, resolve
// symbols, run liveness and comdat dedup, and compose the output section
// layout. Flag parsing stays a thin stdlib layer around internal/config's
// Config, matching the teacher's own split between its Context.Args and
// the parsing packages that fill it in.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hcyang1106/rld/internal/comdat"
	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/layout"
	"github.com/hcyang1106/rld/internal/liveness"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/resolve"
	"github.com/hcyang1106/rld/internal/sched"
	"github.com/hcyang1106/rld/internal/sym"
)

// version is set with -ldflags at build time, matching the teacher's own
// package-level version var.
var version string

// stringList accumulates repeated occurrences of a flag, e.g. -L one -L two.
type stringList []string

func (s *stringList) String() string   { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	cfg := config.Default()

	var (
		output      string
		libDirs     stringList
		libNames    stringList
		undefined   stringList
		requireDefs stringList
		wraps       stringList
		excludeLibs stringList
		unresolved  string
		showVersion bool
	)

	flag.StringVar(&output, "o", "a.out", "output file name")
	flag.StringVar(&cfg.Entry, "e", "_start", "entry point symbol")
	flag.Var(&libDirs, "L", "add directory to the library search path")
	flag.Var(&libNames, "l", "search for lib<name>.a on the -L search path")
	flag.Var(&undefined, "u", "force symbol to be treated as undefined, pulling it in from an archive")
	flag.Var(&requireDefs, "require-defined", "error unless symbol is defined at the end of the link")
	flag.Var(&wraps, "wrap", "rewrite references to symbol through __wrap_<symbol>")
	flag.Var(&excludeLibs, "exclude-libs", "demote symbols defined by the named archive to hidden")
	flag.BoolVar(&cfg.ExportDynamic, "export-dynamic", false, "add every default-visibility defined symbol to the dynamic symbol table")
	flag.BoolVar(&cfg.Bsymbolic, "Bsymbolic", false, "bind references to global symbols to their own definition, suppressing -export-dynamic")
	flag.BoolVar(&cfg.BsymbolicFunctions, "Bsymbolic-functions", false, "like -Bsymbolic but restricted to function symbols")
	flag.BoolVar(&cfg.GCSections, "gc-sections", false, "discard sections the liveness pass never reaches")
	flag.BoolVar(&cfg.PrintGCSections, "print-gc-sections", false, "list every section gc-sections removes")
	flag.StringVar(&unresolved, "unresolved-symbols", "error", "error|warn|ignore-all policy for symbols still undefined at the end of resolution")
	flag.BoolVar(&cfg.FatalWarnings, "fatal-warnings", false, "treat warnings as errors")
	flag.Uint64Var(&cfg.ImageBase, "image-base", cfg.ImageBase, "base address of the output image")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("rld", version)
		os.Exit(0)
	}

	cfg.Undefined = undefined
	cfg.RequireDefined = requireDefs
	cfg.Wrap = wraps
	cfg.ExcludeLibs = excludeLibs
	switch unresolved {
	case "error":
		cfg.UnresolvedSymbols = config.UnresolvedError
	case "warn":
		cfg.UnresolvedSymbols = config.UnresolvedWarn
	case "ignore-all":
		cfg.UnresolvedSymbols = config.UnresolvedIgnore
	default:
		diag.Fatalf("unknown -unresolved-symbols policy %q", unresolved)
	}

	inputs := flag.Args()
	for _, name := range libNames {
		path, ok := findLib(libDirs, name)
		if !ok {
			diag.Fatalf("cannot find -l%s on the search path", name)
		}
		inputs = append(inputs, path)
	}
	if len(inputs) == 0 {
		diag.Fatalf("no input files")
	}

	errs := diag.NewErrors(cfg.FatalWarnings)
	ctx := object.NewContext(errs)
	telemetry := sched.NewTelemetry()

	var objects []*object.ObjectFile
	var dsos []*object.DSOFile
	telemetry.Record("parse", func() {
		objects, dsos = loadInputs(ctx, inputs)
	})
	errs.Checkpoint("parse")

	var res *resolve.Result
	telemetry.Record("resolve", func() {
		res = resolve.Resolve(ctx, cfg, objects, dsos)
	})
	errs.Checkpoint("resolve")

	roots := append([]*sym.Symbol(nil), res.Roots...)
	if res.EntrySymbol != nil {
		roots = append(roots, res.EntrySymbol)
	}
	for _, name := range cfg.Undefined {
		roots = append(roots, ctx.GetSymbol(name))
	}

	telemetry.Record("liveness", func() {
		object.ResolveRelocationTargets(objects)
		object.FinalizeEhFrame(objects)
		object.DedupCIEs(objects)
		liveness.RunSectionGC(cfg, objects, roots)
		comdat.Run(objects)
	})

	var sections []*layout.OutputSection
	var chunks []layout.Chunker
	telemetry.Record("layout", func() {
		layout.ScanGotRelocations(objects)
		sections = layout.Bin(objects, cfg.GCSections)
		for _, osec := range sections {
			layout.SortInitFini(osec)
			layout.ComputeSectionOffsets(osec)
		}
		chunks = make([]layout.Chunker, len(sections))
		for i, osec := range sections {
			chunks[i] = osec
		}
		if got := layout.CollectGotSlots(objects); got != nil {
			chunks = append(chunks, got)
		}
		layout.Sort(chunks)
		layout.AssignAddresses(chunks, cfg.ImageBase)
		layout.AddSyntheticSymbols(ctx, chunks, cfg.ImageBase)
		layout.CheckRelocationRanges(objects, errs)
	})
	errs.Checkpoint("layout")

	if cfg.PrintGCSections {
		printDiscarded(objects, cfg.GCSections)
	}

	alive := 0
	for _, o := range objects {
		if o.IsAlive() {
			alive++
		}
	}
	fmt.Printf("rld: %d input file(s), %d alive, %d output section(s) -> %s\n", len(objects), alive, len(sections), output)
	telemetry.Report(os.Stdout)
}

// loadInputs parses every input path into its constituent ObjectFiles and
// DSOFiles, expanding archives into one ObjectFile per member. Priorities
// are handed out from ctx in command-line order so ties in resolution
// favor the earliest-named file, matching §4.D.
func loadInputs(ctx *object.Context, paths []string) ([]*object.ObjectFile, []*object.DSOFile) {
	var objects []*object.ObjectFile
	var dsos []*object.DSOFile
	for _, path := range paths {
		content, err := os.ReadFile(path)
		diag.MustNo(err)

		switch {
		case object.IsArchive(content):
			for _, m := range object.ExtractArchive(content) {
				priority := ctx.NextPriority()
				f := sym.NewFile(path+"("+m.Name+")", priority, true, false)
				objects = append(objects, object.ParseObjectFile(ctx, f, m.Content))
			}
		case object.IsSharedObject(content):
			priority := ctx.NextPriority()
			f := sym.NewFile(path, priority, false, true)
			dsos = append(dsos, object.ParseDSO(f, content))
		default:
			priority := ctx.NextPriority()
			f := sym.NewFile(path, priority, false, false)
			objects = append(objects, object.ParseObjectFile(ctx, f, content))
		}
	}
	return objects, dsos
}

// findLib resolves a bare -l<name> against the -L search path, preferring
// a shared object over a static archive of the same name (the conventional
// ld search order) since both loadInputs branches can now handle either.
func findLib(dirs stringList, name string) (string, bool) {
	for _, suffix := range []string{".so", ".a"} {
		for _, dir := range dirs {
			candidate := filepath.Join(dir, "lib"+name+suffix)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

// printDiscarded lists every section gc-sections removed, mirroring the
// --print-gc-sections diagnostic named in §6.
func printDiscarded(objects []*object.ObjectFile, gcEnabled bool) {
	for _, o := range objects {
		for _, sec := range o.InputSections {
			if sec == nil || sec.Retained(gcEnabled) {
				continue
			}
			fmt.Printf("rld: removing unused section %s in %s\n", sec.Name, o.Name)
		}
	}
}
