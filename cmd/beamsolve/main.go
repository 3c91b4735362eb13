// Command beamsolve fits a primary beam (and optionally source fluxes) to a
// calibrator catalog and writes the run file and beam images.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"beam-solver/internal/beam"
	"beam-solver/internal/catalog"
	"beam-solver/internal/config"
	"beam-solver/internal/project"
	"beam-solver/internal/render"
	"beam-solver/internal/version"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

func main() {
	cfgPath := flag.String("config", "", "Path to job file (.toml or .yaml)")
	catPath := flag.String("catalog", "", "Catalog file (overrides the job file)")
	outPath := flag.String("out", "", "Run file to write (overrides the job file)")
	plotPath := flag.String("plot", "", "Heat map figure to write (.png, .svg, .pdf)")
	tiffPath := flag.String("tiff", "", "16-bit TIFF of the beam to write")
	quick := flag.String("quicklook", "", "False-color PNG of the beam to write")
	verbose := flag.Bool("v", false, "Log every solver iteration")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("beamsolve"))
		return
	}

	job := config.Default()
	if *cfgPath != "" {
		var err error
		job, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *catPath != "" {
		job.Catalog = *catPath
	}
	if *outPath != "" {
		job.Output.Run = *outPath
	}
	if *plotPath != "" {
		job.Output.Plot = *plotPath
	}
	if *tiffPath != "" {
		job.Output.TIFF = *tiffPath
	}
	if job.Catalog == "" {
		fmt.Println("Usage: beamsolve -config <job.toml> [-catalog <catalog.json>] [-out <run.beamrun>] [-plot <beam.png>] [-tiff <beam.tif>] [-v]")
		os.Exit(1)
	}

	fmt.Printf("=== Loading catalog: %s ===\n", job.Catalog)
	cat, err := catalog.Load(job.Catalog)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	fmt.Printf("Sources: %d, times: %d, polarizations: %d\n", cat.Nsrcs, cat.Nfits, cat.NumPolarizations())
	for p := 0; p < cat.NumPolarizations(); p++ {
		if n := cat.Flagged(p); n > 0 {
			fmt.Printf("Polarization %d: %d flagged samples\n", p, n)
		}
	}

	grid, err := beam.NewGrid(job.GridSize)
	if err != nil {
		log.Fatalf("Invalid grid: %v", err)
	}
	form := job.Form()
	session := beam.NewSession(cat, grid, form)

	runPath := job.Output.Run
	if runPath == "" {
		runPath = strings.TrimSuffix(job.Catalog, filepath.Ext(job.Catalog)) + project.Extension
	}
	run := project.New(filepath.Base(runPath), form.Name(), grid.Size)
	run.SetCatalog(runPath, job.Catalog)

	fmt.Printf("\n=== Building %s system on %dx%d grid ===\n", form.Name(), grid.Size, grid.Size)
	passes := job.BeamPasses(func(pol int) []float64 {
		if pol < cat.NumPolarizations() {
			return cat.Flux(pol)
		}
		return nil
	})
	for _, pass := range passes {
		n, err := session.ConstructSystem(pass)
		if err != nil {
			log.Fatalf("Failed to construct polarization %d: %v", pass.Polarization, err)
		}
		fmt.Printf("Polarization %d: %d samples over %d orientations\n", pass.Polarization, n, len(pass.Transforms()))
		run.AddPass(pass, n)
	}
	if job.Solve.Constrain {
		if err := session.Constrain(job.Solve.Multiply); err != nil {
			log.Fatalf("Failed to constrain: %v", err)
		}
		fmt.Printf("Zenith pixel pinned to 1 (weight %g)\n", job.Solve.Multiply)
	}

	sys, err := session.System()
	if err != nil {
		log.Fatalf("Failed to build system: %v", err)
	}
	fmt.Printf("Equations: %d, beam pixels: %d, sources: %d\n", sys.NumEquations(), len(sys.Pixels()), len(sys.Sources()))

	fmt.Printf("\n=== Solving ===\n")
	opts := job.Options()
	opts.Verbose = *verbose
	res, err := session.Solve(opts)
	if err != nil {
		log.Fatalf("Solve failed: %v", err)
	}
	if form.Joint() {
		fmt.Printf("Iterations: %d, metric: %.3g (crit %.3g), converged: %v\n", res.Iterations, res.Metric, res.ConvCrit, res.Converged)
	}
	fmt.Printf("RMS residual: %.4g\n", res.Residual)
	run.RecordSolve(sys, res)

	b, flux := session.Evaluate(res.Solution)

	if job.Degeneracy.Enabled {
		fmt.Printf("\n=== Degenerate modes (threshold %g%%) ===\n", job.Degeneracy.Threshold)
		cleaned, report, err := session.RemoveDegenerateModes(b, job.Degeneracy.Threshold)
		if err != nil {
			log.Fatalf("Degenerate mode removal failed: %v", err)
		}
		if report.Applied {
			fmt.Printf("Removed %d of %d modes (cutoff %d)\n", report.Degenerate(), len(report.Singular), report.Cutoff)
			b = cleaned
		} else {
			fmt.Println("No degenerate modes")
		}
		run.RecordModes(report)
	}

	run.SetBeam(b)
	if form.Joint() {
		run.Flux = flux
	}

	fmt.Printf("\n=== Writing outputs ===\n")
	if err := run.Save(runPath); err != nil {
		log.Fatalf("Failed to save run: %v", err)
	}
	fmt.Printf("Run %s: %s\n", run.RunID, runPath)

	if job.Output.Plot != "" {
		title := fmt.Sprintf("%s beam, %s", form.Name(), filepath.Base(job.Catalog))
		if err := render.HeatMap(b, title, job.Output.Plot, 6*vg.Inch); err != nil {
			log.Fatalf("Failed to plot: %v", err)
		}
		fmt.Printf("Plot: %s\n", job.Output.Plot)
	}
	if job.Output.TIFF != "" {
		if err := writeImage(job.Output.TIFF, b, render.WriteTIFF); err != nil {
			log.Fatalf("Failed to write TIFF: %v", err)
		}
		fmt.Printf("TIFF: %s\n", job.Output.TIFF)
	}
	if *quick != "" {
		err := writeImage(*quick, b, func(w io.Writer, m mat.Matrix) error {
			return render.WriteQuicklook(w, m, 8)
		})
		if err != nil {
			log.Fatalf("Failed to write quicklook: %v", err)
		}
		fmt.Printf("Quicklook: %s\n", *quick)
	}
}

func writeImage(path string, b mat.Matrix, enc func(io.Writer, mat.Matrix) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
