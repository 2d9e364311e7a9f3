// Package analyzer runs the full recovery pipeline over one image:
// metadata scan, LSB and spiral extraction, decoding, fragment assembly
// and final decryption.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/fragments"
	"github.com/RowanDark/wraith/internal/imageio"
	"github.com/RowanDark/wraith/internal/logging"
	"github.com/RowanDark/wraith/internal/lsb"
	"github.com/RowanDark/wraith/internal/metadata"
	"github.com/RowanDark/wraith/internal/pixels"
	"github.com/RowanDark/wraith/internal/redact"
	"github.com/RowanDark/wraith/internal/score"
	"github.com/RowanDark/wraith/internal/traverse"
)

// Input is one image to analyse.
type Input struct {
	// Name labels the report and is the fallback decryption key.
	Name string
	Path string
	Grid pixels.Grid
	// Raw enables the metadata scan when present.
	Raw []byte
	// Extra fragments join the extracted ones before decoding.
	Extra fragments.Set
}

// InputFromImage adapts a loaded image.
func InputFromImage(img *imageio.Image) Input {
	return Input{Name: img.Name, Path: img.Path, Grid: img.Grid, Raw: img.Raw}
}

// Analyzer runs the pipeline with fixed options.
type Analyzer struct {
	opts     Options
	log      *logging.Logger
	detector *cipher.Detector
	now      func() time.Time
	newID    func() string
}

// New creates an analyzer. A nil logger discards events.
func New(opts Options, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PrintableThreshold <= 0 {
		opts.PrintableThreshold = score.DefaultPrintableThreshold
	}
	detector := cipher.NewDetector(
		cipher.WithScorer(score.New(opts.Markers)),
		cipher.WithPrintableThreshold(opts.PrintableThreshold),
	)
	return &Analyzer{
		opts:     opts,
		log:      logger,
		detector: detector,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type task struct {
	name string
	prov fragments.Provenance
	ch   pixels.Channel
	dir  *traverse.Direction
	seq  traverse.Sequence
}

// Run analyses in. Per-technique failures are recorded in the report;
// only cancellation, an unusable grid or an invalid assembly order abort
// the run.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Report, error) {
	report := &Report{ID: a.newID(), Image: in.Name, StartedAt: a.now().UTC()}
	emit := func(stage logging.Stage, outcome logging.Outcome, reason string, meta map[string]any) {
		_ = a.log.Emit(logging.Event{Stage: stage, RunID: report.ID, Outcome: outcome, Reason: reason, Metadata: meta})
	}

	if in.Grid == nil || in.Grid.Width() <= 0 || in.Grid.Height() <= 0 {
		err := &pixels.AccessError{Source: in.Path, Err: errors.New("no pixel data")}
		emit(logging.StageLoad, logging.OutcomeFailed, err.Error(), nil)
		return nil, err
	}
	emit(logging.StageLoad, logging.OutcomeOK, "", map[string]any{
		"image":  in.Name,
		"width":  in.Grid.Width(),
		"height": in.Grid.Height(),
	})

	var meta *metadata.Report
	if len(in.Raw) > 0 {
		label := in.Path
		if label == "" {
			label = in.Name
		}
		m, err := metadata.Scan(label, in.Raw)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("metadata: %v", err))
			emit(logging.StageMetadata, logging.OutcomeWarning, err.Error(), nil)
		} else {
			meta = m
			report.Metadata = m
			emit(logging.StageMetadata, logging.OutcomeOK, "", map[string]any{"text_entries": len(m.Text)})
		}
	}

	tasks, err := a.plan(in.Grid)
	if err != nil {
		return nil, err
	}
	report.Tasks = a.extract(ctx, in.Grid, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, tr := range report.Tasks {
		stage := logging.StageExtract
		if tr.Direction != "" {
			stage = logging.StageSpiral
		}
		switch {
		case tr.Err != nil:
			emit(stage, logging.OutcomeFailed, tr.Err.Error(), map[string]any{"task": tr.Name})
		case tr.LikelyCorrupted:
			emit(stage, logging.OutcomeWarning, "channel likely corrupted", map[string]any{"task": tr.Name, "non_printable_ratio": tr.NonPrintableRatio})
		default:
			emit(stage, logging.OutcomeOK, "", map[string]any{"task": tr.Name, "bits_read": tr.BitsRead})
		}
	}

	set, warnings := a.collect(report.Tasks, meta, in.Extra)
	report.Warnings = append(report.Warnings, warnings...)
	for _, id := range set.IDs() {
		f := set[id]
		report.Fragments = append(report.Fragments, FragmentInfo{
			ID:         id,
			Provenance: f.Provenance,
			Length:     len(f.Payload),
			Text:       string(f.Payload),
		})
	}

	assembly, decoded := a.decode(ctx, set)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Decoded = decoded
	if len(decoded) > 0 {
		emit(logging.StageDecode, logging.OutcomeOK, "", map[string]any{"decoded": len(decoded)})
	}

	if len(assembly) == 0 {
		emit(logging.StageAssemble, logging.OutcomeSkipped, "no fragments recovered", nil)
		report.FinishedAt = a.now().UTC()
		return report, nil
	}

	order := a.opts.Order
	if len(order) == 0 {
		order = assembly.ResolveOrder()
	}
	assembled, err := fragments.Assemble(assembly, order, fragments.WithSeparator([]byte(a.opts.Separator)))
	if err != nil {
		emit(logging.StageAssemble, logging.OutcomeFailed, err.Error(), nil)
		return nil, fmt.Errorf("assemble: %w", err)
	}
	report.Order = order
	report.Assembled = string(assembled)
	emit(logging.StageAssemble, logging.OutcomeOK, "", map[string]any{"fragments": fragments.Describe(assembly)})

	key := a.opts.Key
	if key == "" {
		key = in.Name
	}
	if key == "" {
		report.Warnings = append(report.Warnings, "decrypt: no key and no image name")
		emit(logging.StageDecrypt, logging.OutcomeSkipped, "no key", nil)
		report.FinishedAt = a.now().UTC()
		return report, nil
	}
	report.Decryption, report.FinalFlag = a.decrypt(assembled, key)
	if report.Decryption.Error != "" {
		emit(logging.StageDecrypt, logging.OutcomeFailed, report.Decryption.Error, map[string]any{"key": key})
	} else {
		emit(logging.StageDecrypt, logging.OutcomeOK, "", map[string]any{
			"method":  report.Decryption.Method,
			"score":   report.Decryption.Score,
			"armored": report.Decryption.Armored,
		})
	}

	report.FinishedAt = a.now().UTC()
	return report, nil
}

func (a *Analyzer) plan(grid pixels.Grid) ([]task, error) {
	var tasks []task
	if a.opts.IncludeRaster {
		for _, ch := range a.opts.Channels {
			tasks = append(tasks, task{name: "lsb_" + ch.String(), prov: fragments.ProvenanceLSB, ch: ch})
		}
	}
	for _, d := range a.opts.Directions {
		seq, err := traverse.Spiral(grid.Width(), grid.Height(), traverse.WithDirection(d))
		if err != nil {
			return nil, &pixels.AccessError{Err: err}
		}
		for _, ch := range a.opts.Channels {
			tasks = append(tasks, task{
				name: fmt.Sprintf("spiral_%s_%s", d, ch),
				prov: fragments.ProvenanceSpiral,
				ch:   ch,
				dir:  &d,
				seq:  seq,
			})
		}
	}
	return tasks, nil
}

// extract runs every task on the worker pool. Tasks record their own
// errors so one failing channel never cancels the others.
func (a *Analyzer) extract(ctx context.Context, grid pixels.Grid, tasks []task) []TaskResult {
	results := make([]TaskResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, t := range tasks {
		g.Go(func() error {
			tr := TaskResult{Name: t.name, Provenance: t.prov.String(), Channel: t.ch.String()}
			if t.dir != nil {
				tr.Direction = t.dir.String()
			}
			if err := gctx.Err(); err != nil {
				tr.Err = err
			} else {
				opts := []lsb.Option{
					lsb.WithNullScanLimit(a.opts.NullScanLimit),
					lsb.WithCorruptionThreshold(a.opts.CorruptionThreshold),
				}
				if t.seq != nil {
					opts = append(opts, lsb.WithSequence(t.seq))
				}
				res, err := lsb.Extract(grid, t.ch, opts...)
				if err != nil {
					tr.Err = err
				} else {
					tr.BitsRead = res.BitsRead
					tr.Text = res.Text
					tr.NonPrintableRatio = res.NonPrintableRatio
					tr.Entropy = score.Entropy(res.Bytes)
					tr.LikelyCorrupted = res.LikelyCorrupted
					tr.Terminated = res.Terminated
				}
			}
			if tr.Err != nil {
				tr.Error = tr.Err.Error()
			}
			results[i] = tr
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// collect turns long enough extraction text, metadata values and extra
// fragments into one set.
func (a *Analyzer) collect(tasks []TaskResult, meta *metadata.Report, extra fragments.Set) (fragments.Set, []string) {
	set := make(fragments.Set)
	var warnings []string
	add := func(id string, payload []byte, prov fragments.Provenance, hint string) {
		f, err := fragments.New(id, payload, prov)
		if err == nil {
			err = set.Add(f.WithHint(hint))
		}
		if err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	for _, tr := range tasks {
		if tr.Err == nil && a.longEnough(tr.Text) {
			prov := fragments.ProvenanceLSB
			if tr.Direction != "" {
				prov = fragments.ProvenanceSpiral
			}
			add(tr.Name, []byte(tr.Text), prov, "")
		}
	}
	if a.opts.IncludeMetadata && meta != nil {
		values := meta.Values()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if a.longEnough(values[k]) {
				add("meta_"+sanitizeID(k), []byte(values[k]), fragments.ProvenanceMetadata, "")
			}
		}
	}
	for _, id := range extra.IDs() {
		f := extra[id]
		add(id, f.Payload, f.Provenance, f.OrderHint)
	}
	return set, warnings
}

func (a *Analyzer) longEnough(s string) bool {
	return utf8.RuneCountInString(s) > a.opts.MinFragmentLength
}

// decode removes encoding layers from every fragment. The returned set is
// keyed by the original IDs and carries the decoded payload wherever
// decoding changed something, so explicit orders keep working.
func (a *Analyzer) decode(ctx context.Context, set fragments.Set) (fragments.Set, []DecodedInfo) {
	ids := set.IDs()
	if len(a.opts.Layers) == 0 && !a.opts.AutoDecode {
		return set, nil
	}

	results := make([]cipher.DecodeResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			payload := set[id].Payload
			if len(a.opts.Layers) > 0 {
				results[i] = cipher.Decode(payload, a.opts.Layers)
			} else {
				results[i] = a.detector.AutoDecode(payload)
			}
			return nil
		})
	}
	_ = g.Wait()

	assembly := make(fragments.Set, len(set))
	var decoded []DecodedInfo
	for i, id := range ids {
		f := set[id]
		res := results[i]
		if res.Changed() && len(res.Output) > 0 {
			decoded = append(decoded, DecodedInfo{
				ID:         "decoded_" + id,
				Source:     id,
				Origin:     f.Provenance,
				Provenance: fragments.ProvenanceDecoded,
				Label:      res.Label,
				Score:      res.Score,
				Text:       string(res.Output),
			})
			f.Payload = res.Output
			f.Provenance = fragments.ProvenanceDecoded
		}
		assembly[id] = f
	}
	return assembly, decoded
}

// decrypt tries the assembled bytes both as base64 armour and as raw
// ciphertext and keeps the better plaintext. Ties go to the armoured
// reading.
func (a *Analyzer) decrypt(assembled []byte, key string) (*Decryption, string) {
	d := &Decryption{KeyHint: redact.Secret(key)}

	type attempt struct {
		armored bool
		res     cipher.DecryptResult
		err     error
	}
	var attempts []attempt
	if codec, ok := cipher.GetCodec(cipher.Base64); ok {
		if raw, err := codec.Decode(assembled); err == nil && len(raw) > 0 {
			res, err := a.detector.Decrypt(raw, []byte(key), a.opts.Method)
			attempts = append(attempts, attempt{armored: true, res: res, err: err})
		}
	}
	res, err := a.detector.Decrypt(assembled, []byte(key), a.opts.Method)
	attempts = append(attempts, attempt{res: res, err: err})

	best := -1
	var errs []string
	for i, at := range attempts {
		if at.err != nil {
			errs = append(errs, at.err.Error())
			continue
		}
		if best < 0 || at.res.Score > attempts[best].res.Score+1e-9 {
			best = i
		}
	}
	if best < 0 {
		d.Error = strings.Join(errs, "; ")
		return d, ""
	}
	win := attempts[best]
	d.Method = win.res.Method.String()
	d.Armored = win.armored
	d.Score = win.res.Score
	d.Candidates = win.res.Candidates
	return d, string(win.res.Output)
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
