// Package mempass runs the memory mapping pass over a design: every abstract
// memory cell is mapped onto a primitive template and replaced in the
// netlist, and the result is checked by the mapping policy.
package mempass

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/bram-map/internal/config"
	"github.com/robert-at-pretension-io/bram-map/internal/facts"
	"github.com/robert-at-pretension-io/bram-map/internal/mapper"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/netlist"
	"github.com/robert-at-pretension-io/bram-map/internal/policy"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
	"github.com/robert-at-pretension-io/bram-map/internal/validator"
)

// Pass maps the memories of one design.
type Pass struct {
	// Configuration; loaded from the design directory when nil
	Config *config.Config

	// Verbose prints the pin map of every mapped cell and a timing summary
	Verbose bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// OutputPath, when set, receives the rewritten design
	OutputPath string

	// Out receives the report; os.Stdout when nil
	Out io.Writer
}

// New creates a pass with the given configuration
func New(cfg *config.Config) *Pass {
	return &Pass{Config: cfg}
}

// cellJob is one memory cell of the design and what became of it.
type cellJob struct {
	cell    netlist.Cell
	desc    *memcell.Descriptor
	key     string
	result  *mapper.Result
	cached  bool
	failure *Failure
}

// Run executes the pass on the design file at designPath. Cells that cannot
// be mapped are reported, not returned as errors, unless mapping.failFast is
// set.
func (p *Pass) Run(ctx context.Context, designPath string) (*Report, error) {
	runStart := time.Now()
	designDir := filepath.Dir(designPath)
	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	var pipelineErrs []error
	timing := newTimingRecorder(runStart, p.resolveTimingPath(designDir))
	if err := timing.Err(); err != nil {
		pipelineErrs = append(pipelineErrs, fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	if p.Config == nil {
		cfg, err := config.Load(designDir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		p.Config = cfg
	}
	cfg := p.Config

	// 1. Load the design and the candidate templates
	stepStart := time.Now()
	design, err := netlist.Load(designPath)
	if err != nil {
		return nil, err
	}
	files, err := cfg.ResolveTemplateFiles(designDir)
	if err != nil {
		return nil, fmt.Errorf("resolve template files: %w", err)
	}
	lib, err := template.LoadFiles(files)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	templates, err := lib.Resolve(cfg.Templates)
	if err != nil {
		return nil, err
	}
	jobs, err := p.discover(design, templates)
	if err != nil {
		return nil, err
	}
	if !p.JSONOutput {
		fmt.Fprintf(out, "Found %d memory cells in %s\n", len(jobs), design.Module())
	}
	loadDuration := time.Since(stepStart)
	timing.RecordStage("load", stepStart, loadDuration, "")

	// 2. Map cells in parallel, consulting the cache first
	stepStart = time.Now()
	var cache *mappingCache
	if cfg.CacheEnabled() {
		cache = newMappingCache(resolveCacheDir(designDir, cfg), mapperVersion)
		if err := cache.Load(); err != nil {
			pipelineErrs = append(pipelineErrs, fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}
	cacheErrs, err := p.mapCells(ctx, jobs, templates, cache, timing)
	if err != nil {
		return nil, err
	}
	pipelineErrs = append(pipelineErrs, cacheErrs...)
	if cache != nil {
		if err := cache.Save(); err != nil {
			pipelineErrs = append(pipelineErrs, fmt.Errorf("cache save failed: %w", err))
		}
	}
	mapDuration := time.Since(stepStart)
	timing.RecordStage("map", stepStart, mapDuration, "")

	// 3. Apply the mappings to the design, one writer, in cell order
	stepStart = time.Now()
	tpls := make(map[string]*template.Template, len(templates))
	for _, t := range templates {
		tpls[t.Name] = t
	}
	report := &Report{
		RunID:         xid.New().String(),
		Module:        design.Module(),
		Design:        designPath,
		Templates:     append([]string{}, cfg.Templates...),
		StrictAddress: cfg.Mapping.StrictAddress,
		Cells:         []CellReport{},
		Failures:      []Failure{},
		Violations:    []policy.Violation{},
	}
	for i, job := range jobs {
		if job.failure != nil {
			report.Failures = append(report.Failures, *job.failure)
			continue
		}
		params := primitiveParams(tpls[job.result.Template], job.cell)
		inst, err := design.ReplaceMemory(job.cell.Name, i, job.result, params)
		if err != nil {
			return nil, fmt.Errorf("apply mapping: %w", err)
		}
		report.Cells = append(report.Cells, CellReport{Cell: job.desc.ID, Instance: inst, Cached: job.cached, Mapping: job.result})
	}
	if p.OutputPath != "" {
		if err := design.Save(p.OutputPath); err != nil {
			return nil, err
		}
	}
	applyDuration := time.Since(stepStart)
	timing.RecordStage("apply", stepStart, applyDuration, "")

	// 4. Fact tables and policy evaluation
	stepStart = time.Now()
	tables := facts.BuildTables(report.Outcomes())
	engine, err := policy.New(resolvePolicyDir(designDir, cfg.Lint.PolicyDir))
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	result, err := engine.Evaluate(ctx, policy.Input{Tables: tables, Rules: cfg.Lint.Rules})
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	report.Violations = result.Violations
	report.Summary = Summary{
		Cells:      len(jobs),
		Mapped:     len(report.Cells),
		Failed:     len(report.Failures),
		Violations: result.Summary,
	}
	for _, c := range report.Cells {
		if c.Cached {
			report.Summary.Cached++
		}
	}
	policyDuration := time.Since(stepStart)
	timing.RecordStage("policy", stepStart, policyDuration, "")

	// 5. Validate the report before anyone consumes it
	rv, err := validator.NewReportValidator()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize report validator: %w", err)
	}
	if err := rv.Validate(report); err != nil {
		return nil, fmt.Errorf("CRITICAL: Report contract violation: %w", err)
	}

	if p.JSONOutput {
		if err := writeJSON(out, report); err != nil {
			return nil, err
		}
	} else {
		writeText(out, report, p.Verbose)
	}

	if p.Verbose && !p.JSONOutput {
		fmt.Fprintf(out, "\n=== Timing Summary ===\n")
		fmt.Fprintf(out, "  load:   %s\n", formatDuration(loadDuration))
		fmt.Fprintf(out, "  map:    %s\n", formatDuration(mapDuration))
		fmt.Fprintf(out, "  apply:  %s\n", formatDuration(applyDuration))
		fmt.Fprintf(out, "  policy: %s\n", formatDuration(policyDuration))
		fmt.Fprintf(out, "  total:  %s\n", formatDuration(time.Since(runStart)))
	}
	timing.RecordStage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return report, fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return report, nil
}

// discover builds a descriptor for every memory cell of the design. A cell
// whose connections or parameters are unusable becomes a failure.
func (p *Pass) discover(design *netlist.Netlist, templates []*template.Template) ([]*cellJob, error) {
	var jobs []*cellJob
	for _, cell := range design.CellsOfType(p.Config.Mapping.CellType) {
		job := &cellJob{cell: cell}
		jobs = append(jobs, job)

		conns, err := design.Connections(cell)
		if err != nil {
			job.failure = &Failure{Cell: cell.Name, Kind: KindMalformedDescriptor, Message: err.Error()}
			continue
		}
		desc, err := memcell.FromCell(cell.Name, cell.Parameters, conns)
		if err != nil {
			job.failure = &Failure{Cell: cell.Name, Kind: failureKind(err), Message: err.Error()}
			continue
		}
		job.desc = desc
		if p.Config.CacheEnabled() {
			if job.key, err = cacheKey(desc, templates, p.Config.Mapping.StrictAddress); err != nil {
				return nil, err
			}
		}
	}
	if p.Config.Mapping.FailFast {
		for _, job := range jobs {
			if job.failure != nil {
				return nil, fmt.Errorf("cell %s: %s", job.failure.Cell, job.failure.Message)
			}
		}
	}
	return jobs, nil
}

// mapCells maps every pending job. With failFast the first mapping failure
// stops the remaining cells and is returned. Cache problems are returned as
// non-fatal errors.
func (p *Pass) mapCells(ctx context.Context, jobs []*cellJob, templates []*template.Template, cache *mappingCache, timing *timingRecorder) ([]error, error) {
	limit := p.Config.Analysis.MaxParallelCells
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	cacheErrs := make([]error, len(jobs))
	for i, job := range jobs {
		if job.failure != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cellStart := time.Now()

			if cache != nil {
				res, ok, err := cache.Get(job.desc.ID, job.key)
				if err != nil {
					cacheErrs[i] = fmt.Errorf("cache read failed for %s: %w", job.desc.ID, err)
				} else if ok {
					job.result, job.cached = res, true
					timing.RecordCell("map", job.desc.ID, "cache_hit", cellStart, time.Since(cellStart))
					return nil
				}
			}

			opts := mapper.Options{
				StrictAddress: p.Config.Mapping.StrictAddress,
				Observer: func(stage string, start time.Time, d time.Duration) {
					timing.RecordCell(stage, job.desc.ID, "", start, d)
				},
			}
			res, err := mapper.MapFirst(job.desc, templates, opts)
			if err != nil {
				failure := newFailure(job.desc.ID, err)
				job.failure = &failure
				timing.RecordCell("map", job.desc.ID, "failed", cellStart, time.Since(cellStart))
				if p.Config.Mapping.FailFast {
					return err
				}
				return nil
			}
			job.result = res
			if cache != nil {
				if err := cache.Put(job.desc.ID, job.key, res); err != nil {
					cacheErrs[i] = fmt.Errorf("cache write failed for %s: %w", job.desc.ID, err)
				}
			}
			timing.RecordCell("map", job.desc.ID, "mapped", cellStart, time.Since(cellStart))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for _, err := range cacheErrs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs, nil
}

// primitiveParams returns the parameters of the primitive instance: the
// template's fixed parameters, the memory's initial contents and its logical
// data and address widths.
func primitiveParams(tpl *template.Template, cell netlist.Cell) map[string]string {
	params := make(map[string]string)
	if tpl != nil {
		for k, v := range tpl.Parameters {
			params[k] = v
		}
	}
	if init, ok := cell.Parameters["INIT"]; ok {
		params["INIT"] = init
	}
	params["CFG_DBITS"] = cell.Parameters["WIDTH"]
	params["CFG_ABITS"] = cell.Parameters["ABITS"]
	return params
}

func resolvePolicyDir(designDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(designDir, dir)
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}
