package main

import (
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/grid"
)

// BenchmarkResult summarizes one benchmark run.
type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// bounds is the lat/lon rectangle random points and queries are drawn from.
type bounds struct {
	minLat, maxLat, minLon, maxLon float64
}

func (b bounds) random(r *rand.Rand) (lat, lon float64) {
	return b.minLat + r.Float64()*(b.maxLat-b.minLat), b.minLon + r.Float64()*(b.maxLon-b.minLon)
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		numPoints  int
		numQueries int
		workers    int
		queryType  string
		radius     float64
		seed       int64
		area       bounds
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the grid index with random points and queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if numPoints < 0 {
				return fmt.Errorf("--points must not be negative, got %d", numPoints)
			}
			if numQueries < 0 {
				return fmt.Errorf("--queries must not be negative, got %d", numQueries)
			}
			if workers < 1 {
				workers = 1
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Loading %d random points using %d workers...\n", numPoints, workers)
			start := time.Now()
			index, err := loadRandomIndex(a.cfg.Grid.CellSizeM, a.origin(), area, numPoints, workers, seed)
			if err != nil {
				return err
			}
			loadTime := time.Since(start)
			fmt.Fprintf(out, "Loaded %d points into %d cells in %v\n", index.Size(), index.BucketCount(), loadTime)

			queries := map[string]func(r *rand.Rand) (int, error){
				"near": func(r *rand.Rand) (int, error) {
					lat, lon := area.random(r)
					res, err := index.CandidatesNear(lat, lon, radius)
					return len(res), err
				},
				"cell": func(r *rand.Rand) (int, error) {
					lat, lon := area.random(r)
					_, err := index.CellIDAt(lat, lon)
					return 1, err
				},
			}

			var results []BenchmarkResult
			switch queryType {
			case "near", "cell":
				results = append(results, runQueries(queryType, numQueries, workers, seed, queries[queryType]))
			case "mixed":
				results = append(results,
					runQueries("near", numQueries/2, workers, seed, queries["near"]),
					runQueries("cell", numQueries-numQueries/2, workers, seed, queries["cell"]),
				)
			default:
				return fmt.Errorf("unknown query type %q (want near, cell or mixed)", queryType)
			}

			for _, res := range results {
				printResult(out, res, workers)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&numPoints, "points", "p", 1000000, "Number of points to index")
	cmd.Flags().IntVarP(&numQueries, "queries", "q", 10000, "Number of queries to run")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	cmd.Flags().StringVarP(&queryType, "type", "t", "near", "Query type: near, cell, mixed")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 500, "Search radius in meters (near queries)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	// default: the Alps
	cmd.Flags().Float64Var(&area.minLat, "min-lat", 45.5, "Minimum latitude for random points")
	cmd.Flags().Float64Var(&area.maxLat, "max-lat", 48.0, "Maximum latitude for random points")
	cmd.Flags().Float64Var(&area.minLon, "min-lon", 5.5, "Minimum longitude for random points")
	cmd.Flags().Float64Var(&area.maxLon, "max-lon", 16.5, "Maximum longitude for random points")
	return cmd
}

// loadRandomIndex generates points in parallel and inserts them into a new
// index. The index itself is not safe for concurrent writes, so insertion
// is sequential.
func loadRandomIndex(cellSize float64, origin grid.Origin, area bounds, n, workers int, seed int64) (*grid.Index[int], error) {
	index, err := grid.NewIndex[int](cellSize, origin)
	if err != nil {
		return nil, err
	}

	rows := make([]grid.Row[int], n)
	batchSize := n / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * batchSize
		end := start + batchSize
		if w == workers-1 {
			end = n
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(w)))
			for i := start; i < end; i++ {
				lat, lon := area.random(r)
				rows[i] = grid.Row[int]{Lat: lat, Lon: lon, Payload: i}
			}
		}(w, start, end)
	}
	wg.Wait()

	if err := index.BulkInsert(rows); err != nil {
		return nil, err
	}
	return index, nil
}

// runQueries fans numQueries calls of query out to a pool of workers.
func runQueries(name string, numQueries, workers int, seed int64, query func(r *rand.Rand) (int, error)) BenchmarkResult {
	var (
		totalResults atomic.Int64
		failed       atomic.Int64
		minDuration  = time.Duration(1<<63 - 1)
		maxDuration  time.Duration
		sumDuration  time.Duration
		completed    int
		mu           sync.Mutex
	)

	startTime := time.Now()
	queryCh := make(chan struct{}, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed*7919 + int64(w)))

			for range queryCh {
				queryStart := time.Now()
				n, err := query(r)
				queryDuration := time.Since(queryStart)
				if err != nil {
					failed.Add(1)
					continue
				}
				totalResults.Add(int64(n))

				mu.Lock()
				completed++
				sumDuration += queryDuration
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}(w)
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- struct{}{}
	}
	close(queryCh)
	wg.Wait()
	totalDuration := time.Since(startTime)

	res := BenchmarkResult{
		QueryType:     name,
		TotalQueries:  numQueries,
		Failed:        failed.Load(),
		TotalDuration: totalDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
	}
	if completed > 0 {
		res.AvgDuration = sumDuration / time.Duration(completed)
		res.MinDuration = minDuration
		res.AvgResults = float64(res.TotalResults) / float64(completed)
	}
	if totalDuration > 0 {
		res.QueriesPerSec = float64(numQueries) / totalDuration.Seconds()
	}
	return res
}

func printResult(w io.Writer, result BenchmarkResult, workers int) {
	fmt.Fprintln(w, "\n=== Benchmark Results ===")
	fmt.Fprintf(w, "Query Type: %s\n", result.QueryType)
	fmt.Fprintf(w, "Total Queries: %d\n", result.TotalQueries)
	fmt.Fprintf(w, "Failed Queries: %d\n", result.Failed)
	fmt.Fprintf(w, "Total Duration: %v\n", result.TotalDuration)
	fmt.Fprintf(w, "Average Duration: %v\n", result.AvgDuration)
	fmt.Fprintf(w, "Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Fprintf(w, "Min Duration: %v\n", result.MinDuration)
	fmt.Fprintf(w, "Max Duration: %v\n", result.MaxDuration)
	fmt.Fprintf(w, "Total Results: %d\n", result.TotalResults)
	fmt.Fprintf(w, "Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Fprintf(w, "Workers Used: %d\n", workers)
	fmt.Fprintf(w, "CPU Cores: %d\n", runtime.NumCPU())
}
