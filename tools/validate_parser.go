//go:build ignore

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/lightwave/internal/protocol"
)

// Statistics tracks parsing results
type Statistics struct {
	TotalMessages  int
	TotalFiles     int
	ParseSuccess   int
	ParseFailure   int
	MessageTypes   map[string]int
	Generations    map[string]int
	FailedMessages []FailedMessage
}

// FailedMessage stores information about parsing failures
type FailedMessage struct {
	File       string
	LineNumber int
	Payload    string
	Error      string
}

// Captures hold one datagram or WebSocket frame per line, exactly as it
// was received. Blank lines and lines starting with '#' are skipped.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_parser <directory-or-file>")
		fmt.Println("Example: validate_parser captures/")
		fmt.Println("         validate_parser link-9761.log")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		MessageTypes: make(map[string]int),
		Generations:  make(map[string]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		pattern := filepath.Join(path, "*.log")
		files, err = filepath.Glob(pattern)
		if err != nil {
			fmt.Printf("Error finding capture files: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No .log files found in %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== LightwaveRF Parser Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if stats.ParseFailure > 0 {
		os.Exit(2)
	}
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		stats.TotalMessages++

		var codec protocol.Codec = protocol.TextCodec{}
		generation := "text"
		if strings.HasPrefix(line, "{") {
			codec = protocol.JSONCodec{}
			generation = "json"
		}
		stats.Generations[generation]++

		msg, err := codec.Decode([]byte(line))
		if err != nil {
			stats.ParseFailure++
			stats.FailedMessages = append(stats.FailedMessages, FailedMessage{
				File:       filename,
				LineNumber: lineNum,
				Payload:    line,
				Error:      err.Error(),
			})
			continue
		}

		stats.ParseSuccess++
		stats.MessageTypes[msg.Type().String()]++
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error scanning %s: %v\n", filename, err)
	}
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Total Messages:     %d\n", stats.TotalMessages)
	fmt.Printf("Parse Success:      %d (%.2f%%)\n", stats.ParseSuccess, percent(stats.ParseSuccess, stats.TotalMessages))
	fmt.Printf("Parse Failure:      %d (%.2f%%)\n", stats.ParseFailure, percent(stats.ParseFailure, stats.TotalMessages))
	for gen, count := range stats.Generations {
		fmt.Printf("  %-4s protocol:    %d\n", gen, count)
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("MESSAGE TYPE DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	types := make([]string, 0, len(stats.MessageTypes))
	for t := range stats.MessageTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		count := stats.MessageTypes[t]
		fmt.Printf("%-24s %d (%.2f%%)\n", t, count, percent(count, stats.ParseSuccess))
	}

	if len(stats.FailedMessages) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("PARSE FAILURES (%d total)\n", len(stats.FailedMessages))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.FailedMessages) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n\n", maxShow, len(stats.FailedMessages))
		}

		for i, failed := range stats.FailedMessages {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (line %d)\n", failed.File, failed.LineNumber)
			fmt.Printf("  Error: %s\n", failed.Error)
			preview := failed.Payload
			if len(preview) > 80 {
				preview = preview[:80] + "..."
			}
			fmt.Printf("  Payload: %s\n", preview)
		}
	}

	fmt.Printf("\n========================================\n")
	if stats.ParseFailure == 0 {
		fmt.Printf("SUCCESS: All messages parsed successfully\n")
	} else {
		fmt.Printf("ISSUES FOUND: %d messages failed to parse\n", stats.ParseFailure)
	}
	fmt.Printf("========================================\n")
}
