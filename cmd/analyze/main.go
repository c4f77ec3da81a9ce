// cmd/analyze/main.go - offline statistics for recorded sessions
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"vr-datastreamer/internal/analysis"
)

func main() {
	format := flag.String("format", "table", "output format: table or json")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-format table|json] recording.csv...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *format != "table" && *format != "json" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}

	reports := make([]*analysis.Report, 0, flag.NArg())
	failed := false
	for _, path := range flag.Args() {
		report, err := analysis.AnalyzeFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		reports = append(reports, report)
	}

	var err error
	if *format == "json" {
		err = writeJSON(os.Stdout, reports)
	} else {
		err = writeTable(os.Stdout, reports)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, reports []*analysis.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

func writeTable(w io.Writer, reports []*analysis.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "File:\t%s\n", report.File)
		fmt.Fprintf(tw, "Samples:\t%d (%d skipped)\n", report.Samples, report.Skipped)
		fmt.Fprintf(tw, "Duration:\t%.2f s\n", report.DurationSeconds)
		fmt.Fprintf(tw, "Sample rate:\t%.2f Hz\n", report.SampleRate)
		fmt.Fprintln(tw, "Tracker\tPath (m)\tMean speed (m/s)\tMax speed (m/s)")
		for _, stats := range report.Trackers {
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\n", stats.Tracker, stats.PathLength, stats.MeanSpeed, stats.MaxSpeed)
		}
	}
	return tw.Flush()
}
