package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RowanDark/wraith/internal/analyzer"
	"github.com/RowanDark/wraith/internal/config"
	"github.com/RowanDark/wraith/internal/history"
	"github.com/RowanDark/wraith/internal/imageio"
)

func (a *app) runAnalyze(args []string) int {
	fs := a.flagSet("analyze")
	key := fs.String("key", "", "decryption key (defaults to the image name)")
	method := fs.String("method", "", "decryption method: auto, xor or aes-cbc")
	out := fs.String("out", "", "output directory (defaults to output_dir)")
	workers := fs.Int("workers", 0, "concurrent extraction tasks")
	layers := fs.String("layers", "", "comma-separated layers to remove instead of auto-detection")
	recipe := fs.String("recipe", "", "named recipe supplying -layers")
	order := fs.String("order", "", "comma-separated fragment assembly order")
	sep := fs.String("sep", "", "separator inserted between fragments")
	channels := fs.String("channels", "", "channels to read, e.g. all or red,blue")
	directions := fs.String("directions", "", "spiral directions, e.g. clockwise,counterclockwise, or none")
	noHistory := fs.Bool("no-history", false, "do not record the run in the history database")
	asJSON := fs.Bool("json", false, "print the full report as JSON")
	verbose := fs.Bool("v", false, "log debug events")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "analyze requires exactly one image path")
		return 2
	}
	if *layers != "" && *recipe != "" {
		fmt.Fprintln(a.stderr, "-layers and -recipe are mutually exclusive")
		return 2
	}

	cfg, ok := a.loadConfig()
	if !ok {
		return 1
	}
	an := &cfg.Analysis
	if *key != "" {
		an.Key = *key
	}
	if *method != "" {
		an.DecryptMethod = *method
	}
	if *workers > 0 {
		an.Workers = *workers
	}
	if *layers != "" {
		an.Layers = splitList(*layers)
	}
	if *recipe != "" {
		r, err := a.lookupRecipe(cfg, *recipe)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			return 1
		}
		an.Layers = nil
		for _, l := range r.Layers {
			an.Layers = append(an.Layers, l.String())
		}
	}
	if *order != "" {
		an.FragmentOrder = splitList(*order)
	}
	if *sep != "" {
		an.Separator = *sep
	}
	if *channels != "" {
		an.Channels = splitList(*channels)
	}
	switch strings.ToLower(*directions) {
	case "":
	case "none":
		an.SpiralDirections = nil
	default:
		an.SpiralDirections = splitList(*directions)
	}
	opts, err := analyzer.OptionsFromConfig(*an)
	if err != nil {
		fmt.Fprintf(a.stderr, "invalid analysis options: %v\n", err)
		return 2
	}

	logger, closeLogger, err := a.newLogger(cfg, *verbose)
	if err != nil {
		fmt.Fprintf(a.stderr, "init logger: %v\n", err)
		return 1
	}
	defer closeLogger()

	img, err := imageio.Load(positional[0])
	if err != nil {
		fmt.Fprintf(a.stderr, "load image: %v\n", err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()
	report, err := analyzer.New(opts, logger).Run(ctx, analyzer.InputFromImage(img))
	if err != nil {
		fmt.Fprintf(a.stderr, "analyze %s: %v\n", positional[0], err)
		return 1
	}

	outDir := *out
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	outDir = filepath.Join(outDir, img.Name)
	written, err := analyzer.Writer{Dir: outDir}.Write(report)
	if err != nil {
		fmt.Fprintf(a.stderr, "write report: %v\n", err)
		return 1
	}

	if !*noHistory {
		if err := a.record(cfg, report); err != nil {
			fmt.Fprintf(a.stderr, "warning: history not updated: %v\n", err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(a.stderr, "encode report: %v\n", err)
			return 1
		}
		return 0
	}
	printSummary(a, report)
	fmt.Fprintf(a.stdout, "wrote %d files to %s\n", len(written), outDir)
	return 0
}

func (a *app) record(cfg config.Config, report *analyzer.Report) error {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx, stop := signalContext()
	defer stop()
	return store.Save(ctx, report)
}

func printSummary(a *app, r *analyzer.Report) {
	fmt.Fprintf(a.stdout, "run %s: %s (%s)\n", r.ID, r.Image, r.Duration().Round(time.Millisecond))
	for _, w := range r.Warnings {
		fmt.Fprintf(a.stdout, "warning: %s\n", w)
	}
	ids := make([]string, len(r.Fragments))
	for i, f := range r.Fragments {
		ids[i] = f.ID
	}
	fmt.Fprintf(a.stdout, "fragments: %d %s\n", len(ids), strings.Join(ids, " "))
	for _, d := range r.Decoded {
		fmt.Fprintf(a.stdout, "decoded %s via %s (score %.2f)\n", d.Source, d.Label, d.Score)
	}
	if len(r.Order) > 0 {
		fmt.Fprintf(a.stdout, "order: %s\n", strings.Join(r.Order, ","))
	}
	if d := r.Decryption; d != nil {
		if d.Error != "" {
			fmt.Fprintf(a.stdout, "decryption failed: %s\n", d.Error)
		} else {
			fmt.Fprintf(a.stdout, "decrypted with %s key %s (score %.2f)\n", d.Method, d.KeyHint, d.Score)
		}
	}
	if r.FinalFlag != "" {
		fmt.Fprintf(a.stdout, "final flag: %s\n", r.FinalFlag)
	}
}
