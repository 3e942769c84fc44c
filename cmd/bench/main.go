// Command bench measures decode and suppression throughput over synthetic
// detection tensors and writes the results as JSON.
package main

import (
	"flag"
	"log"

	"github.com/edgevision-ai/go-detect/benchmark"
)

func main() {
	var output string
	flag.StringVar(&output, "output", "benchmark_results.json", "Path for the JSON results file")
	flag.Parse()

	scenarios := benchmark.DefaultScenarios()
	results := make([]benchmark.Metrics, 0, len(scenarios))
	for _, scenario := range scenarios {
		metrics, err := benchmark.Run(scenario)
		if err != nil {
			log.Fatalf("scenario %s: %v", scenario.Name, err)
		}
		log.Printf("%s: %.1f images/s, %d detections",
			scenario.Name, metrics.ImagesPerSecond, metrics.DetectionCount)
		results = append(results, *metrics)
	}

	if err := benchmark.WriteResults(output, results); err != nil {
		log.Fatalf("writing results: %v", err)
	}
	log.Printf("results written to %s", output)
}
