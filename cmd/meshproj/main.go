// Command meshproj projects query points onto the closest point of a
// triangle mesh.
//
//	meshproj -mesh model.stl -points q.csv -out result.csv
//
// The mesh is read from a binary STL file and the queries from a CSV file
// of x,y,z rows. One output row per query holds the closest point, its
// barycentric coordinates, the triangle index and the squared distance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soypat/meshproj"
	"github.com/soypat/meshproj/meshio"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "meshproj:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "meshproj",
	})
	l.SetLevel(level)
	return l
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("meshproj", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		meshPath   = fs.String("mesh", "", "binary STL mesh file")
		pointsPath = fs.String("points", "", "CSV file of x,y,z query points")
		outPath    = fs.String("out", "-", "output CSV file, - for stdout")
		configPath = fs.String("config", "", "TOML configuration file")
		workers    = fs.Int("workers", 0, "number of worker goroutines, 0 uses GOMAXPROCS")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *meshPath == "" || *pointsPath == "" {
		fs.Usage()
		return errors.New("-mesh and -points are required")
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "v":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	if err := cfg.validate(); err != nil {
		return err
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := newLogger(stderr, level)

	start := time.Now()
	m, err := readMesh(*meshPath, cfg.WeldTolerance)
	if errors.Is(err, meshio.ErrNormalMismatch) {
		logger.Warn("mesh normals", "err", err)
	} else if err != nil {
		return err
	}
	bb := m.Bounds()
	logger.Debug("read mesh", "file", *meshPath, "vertices", len(m.Vertices), "triangles", len(m.Triangles), "min", bb.Min, "max", bb.Max)

	queries, err := readPoints(*pointsPath)
	if err != nil {
		return err
	}
	logger.Debug("read queries", "file", *pointsPath, "points", len(queries))

	p := meshproj.Projector{Workers: cfg.Workers, Grain: cfg.Grain}
	res, err := p.Project(ctx, m, queries)
	if err != nil {
		return err
	}
	logger.Info("projected", "points", res.Len(), "triangles", len(m.Triangles), "elapsed", time.Since(start))

	if cfg.MaxError > 0 {
		maxDist2 := cfg.MaxError * cfg.MaxError
		far := 0
		for i, d2 := range res.Dist2 {
			if d2 > maxDist2 {
				far++
				logger.Debug("query beyond max error", "query", i, "point", queries[i], "dist2", d2)
			}
		}
		if far > 0 {
			logger.Warn("queries beyond max error", "count", far, "max_error", cfg.MaxError)
		}
	}

	if *outPath == "-" {
		return meshio.WriteResult(stdout, res)
	}
	fp, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err = meshio.WriteResult(fp, res); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

func readMesh(path string, weldTol float64) (meshproj.Mesh, error) {
	fp, err := os.Open(path)
	if err != nil {
		return meshproj.Mesh{}, err
	}
	defer fp.Close()
	m, err := meshio.ReadSTL(fp, weldTol)
	if err != nil && !errors.Is(err, meshio.ErrNormalMismatch) {
		return m, fmt.Errorf("%s: %w", path, err)
	}
	return m, err
}

func readPoints(path string) ([]r3.Vec, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	pts, err := meshio.ReadPoints(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pts, nil
}
