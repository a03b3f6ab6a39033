// kidtest compiles every test program in process, runs it in the sandbox and
// compares the generated scripts and the program output against a golden
// .<file>.json recorded next to it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/kidc/pkg/compiler"
	"github.com/xplshn/kidc/pkg/config"
)

// Golden is what one test program is expected to produce.
type Golden struct {
	Hash        string   `json:"hash"`
	Input       []string `json:"input,omitempty"`
	Structured  string   `json:"structured"`
	Linear      string   `json:"linear"`
	LinearError string   `json:"linear_error,omitempty"`
	Stdout      string   `json:"stdout"`
	Error       string   `json:"error,omitempty"`
}

type FileTestResult struct {
	File     string        `json:"file"`
	Hash     string        `json:"hash"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	testFiles      = flag.String("test-files", "tests/*.kid", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each test program.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Skip files whose hash matches their last passing run.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	if *jobs < 1 {
		*jobs = 1
	}

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}
	if hasFailures(handleRunTestSuite()) {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func hashSource(src []byte) string { return fmt.Sprintf("%x", xxhash.Sum64(src)) }

// inputLines collects the '// input: <line>' directives at the top of a test
// program. They feed 'ask' in order.
func inputLines(src []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "//") {
			break
		}
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line[2:]), "input:"); ok {
			lines = append(lines, strings.TrimSpace(rest))
		}
	}
	return lines
}

// produce compiles file for the structured and linear targets and runs it.
func produce(file string, src []byte) (*Golden, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	g := &Golden{Hash: hashSource(src), Input: inputLines(src)}
	res, err := compiler.Compile(file, src, config.NewConfig())
	if err != nil {
		g.Error = err.Error()
		return g, nil
	}
	g.Structured = res.Output

	cfg := config.NewConfig()
	if err := cfg.SetBackend("linear"); err != nil {
		return nil, err
	}
	if lin, err := compiler.Compile(file, src, cfg); err != nil {
		g.LinearError = err.Error()
	} else {
		g.Linear = lin.Output
	}

	out, err := compiler.Run(ctx, res, g.Input)
	if err != nil {
		return nil, err
	}
	g.Stdout = out.Output
	if out.Err != nil {
		g.Error = "Execution Error: " + out.Err.Error()
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("timed out after %s", *timeout)
	}
	return g, nil
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)
	src, err := os.ReadFile(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not read %s: %v\n", cRed, cNone, sourceFile, err)
	}
	g, err := produce(sourceFile, src)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not generate golden file for %s: %v\n", cRed, cNone, sourceFile, err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	goldenFile := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFile, data, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFile, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFile)
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

func handleRunTestSuite() TestSuiteResults {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return nil
	}

	previous := make(TestSuiteResults)
	if data, err := os.ReadFile(reportPath()); err == nil {
		if json.Unmarshal(data, &previous) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, reportPath())
			previous = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	type task struct {
		file string
		src  []byte
		hash string
	}
	tasks := make(chan task, len(files))
	results := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- testFile(t.file, t.src, t.hash)
			}
		}()
	}

	seen := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			results <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		src, err := os.ReadFile(file)
		if err != nil {
			results <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file: %v", err)}
			continue
		}
		hash := hashSource(src)
		if original, dup := seen[hash]; dup {
			results <- &FileTestResult{File: file, Hash: hash, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seen[hash] = file
		if prev, ok := previous[file]; *useCache && ok && prev.Hash == hash && prev.Status == "PASS" {
			results <- &FileTestResult{File: file, Hash: hash, Status: "SKIP", Message: "Unchanged since the last passing run"}
			continue
		}
		tasks <- task{file, src, hash}
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileTestResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	printSummary(all)
	return writeJSONReport(all)
}

func testFile(file string, src []byte, hash string) *FileTestResult {
	start := time.Now()
	result := &FileTestResult{File: file, Hash: hash}
	defer func() { result.Duration = time.Since(start) }()

	goldenFile := getJSONPath(file)
	data, err := os.ReadFile(goldenFile)
	if errors.Is(err, os.ErrNotExist) {
		result.Status, result.Message = "SKIP", "Cannot test without a corresponding .json golden file"
		return result
	}
	if err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)
		return result
	}
	var want Golden
	if err := json.Unmarshal(data, &want); err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)
		return result
	}

	got, err := produce(file, src)
	if err != nil {
		result.Status, result.Message = "ERROR", err.Error()
		return result
	}
	// The hash only keys the cache; a changed comment must not fail a test.
	got.Hash = want.Hash

	if diff := cmp.Diff(&want, got); diff != "" {
		result.Status, result.Message, result.Diff = "FAIL", "Output does not match the golden file", diff
		return result
	}
	result.Status, result.Message = "PASS", "All outputs match"
	return result
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration
	for _, r := range results {
		total += r.Duration
		if *verbose || r.Status != "PASS" {
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("Testing %s%s%s...\n", cCyan, r.File, cNone)
		}
		switch r.Status {
		case "PASS":
			passed++
			if *verbose {
				fmt.Printf("  [%sPASS%s] %s (%s)\n", cGreen, cNone, r.Message, r.Duration.Round(time.Microsecond))
			}
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, r.Message)
			fmt.Println(formatDiff(r.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, r.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, r.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total (%s)\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), total.Round(time.Millisecond))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		switch trimmed := strings.TrimSpace(line); {
		case strings.HasPrefix(trimmed, "-"): sb.WriteString(cRed)
		case strings.HasPrefix(trimmed, "+"): sb.WriteString(cGreen)
		}
		sb.WriteString("    " + line + cNone + "\n")
	}
	return sb.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	byFile := make(TestSuiteResults, len(results))
	for _, r := range results {
		byFile[r.File] = r
	}
	data, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return byFile
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(reportPath(), data, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, reportPath(), err)
	} else {
		fmt.Printf("Full test report saved to %s\n", reportPath())
	}
	return byFile
}

func hasFailures(results TestSuiteResults) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() && !seen[file] {
				all = append(all, file)
				seen[file] = true
			}
		}
	}
	return all, nil
}
