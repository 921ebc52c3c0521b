// Command match map-matches GPS trajectories against a road network and
// writes the reconstructed Paths to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/azybler/mapmatch/pkg/ch"
	"github.com/azybler/mapmatch/pkg/matching"
	"github.com/azybler/mapmatch/pkg/network"
	osmparser "github.com/azybler/mapmatch/pkg/osm"
	"github.com/azybler/mapmatch/pkg/pathreconstruct"
	"github.com/azybler/mapmatch/pkg/routing"
	"github.com/azybler/mapmatch/pkg/trajectory"
)

func main() {
	pbf := flag.String("pbf", "", "Path to .osm.pbf road network file")
	input := flag.String("input", "", "Path to input trajectory file (pkg/trajectory CSV format)")
	output := flag.String("output", "paths.csv", "Output path file")
	sigma := flag.Float64("sigma", matching.DefaultConfig().MeasurementErrorSigma, "Measurement error sigma, meters")
	beta := flag.Float64("beta", matching.DefaultConfig().TransitionProbabilityBeta, "Transition probability beta")
	workers := flag.Int("workers", 4, "Trajectory-matching worker pool size")
	useCH := flag.Bool("use-ch", false, "Build a Contraction Hierarchies index to accelerate routing")
	flag.Parse()

	if *pbf == "" || *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: match --pbf <file.osm.pbf> --input <trajectories.csv> [--output paths.csv]")
		os.Exit(1)
	}

	start := time.Now()

	log.Println("Opening OSM file...")
	f, err := os.Open(*pbf)
	if err != nil {
		log.Fatalf("Failed to open road network file: %v", err)
	}
	defer f.Close()

	log.Println("Parsing OSM data...")
	parseResult, err := osmparser.Parse(context.Background(), f)
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}

	log.Println("Building road network...")
	rn := network.Build(parseResult)
	log.Printf("Road network: %d edges", rn.NumEdges())

	log.Printf("Reading trajectories from %s...", *input)
	trajFile, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open trajectory file: %v", err)
	}
	trajs, err := trajectory.ReadTrajectories(trajFile)
	trajFile.Close()
	if err != nil {
		log.Fatalf("Failed to parse trajectories: %v", err)
	}
	log.Printf("Loaded %d trajectories", len(trajs))

	cfg := matching.DefaultConfig()
	cfg.MeasurementErrorSigma = *sigma
	cfg.TransitionProbabilityBeta = *beta
	cfg.CandidateSearchRadius = *sigma

	matcher := matching.New(rn, cfg)
	router := routing.New(rn, cfg.RoutingWeight)

	if *useCH {
		log.Println("Building Contraction Hierarchies index...")
		idx := ch.Build(rn, cfg.RoutingWeight)
		matcher.Router.WithAccelerator(idx)
		router.WithAccelerator(idx)
	}

	log.Printf("Matching %d trajectories with %d workers...", len(trajs), *workers)
	matched := matcher.MatchMany(trajs, *workers)

	reconstructor := pathreconstruct.New(rn, router, cfg.MinPathEntities)

	var allPaths []trajectory.Path
	for _, mt := range matched {
		allPaths = append(allPaths, reconstructor.ConstructPath(mt)...)
	}
	log.Printf("Reconstructed %d paths", len(allPaths))

	outFile, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer outFile.Close()

	if err := trajectory.WritePaths(outFile, allPaths); err != nil {
		log.Fatalf("Failed to write paths: %v", err)
	}

	log.Printf("Done in %s. Output: %s", time.Since(start).Round(time.Millisecond), *output)
}
