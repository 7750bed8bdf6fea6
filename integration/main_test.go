//go:build integration
// +build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/courtvoice/courtvoice/integration/runner"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")

func baseURLs() (string, string) {
	apiBaseURL := os.Getenv("API_BASE_URL")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080"
	}
	workerBaseURL := os.Getenv("WORKER_BASE_URL")
	if workerBaseURL == "" {
		workerBaseURL = "http://localhost:8081"
	}
	return apiBaseURL, workerBaseURL
}

func newRunner(t *testing.T) *runner.Runner {
	t.Helper()
	apiBaseURL, workerBaseURL := baseURLs()
	timeoutSeconds := getIntEnv("TEST_TIMEOUT_SECONDS", 30)

	testRunner := runner.NewRunner(apiBaseURL, workerBaseURL)
	testRunner.Timeout = time.Duration(timeoutSeconds) * time.Second
	testRunner.ErrorHandlingMode = runner.ErrorHandlingMode(*errFlag)
	testRunner.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	return testRunner
}

func TestMain(m *testing.M) {
	flag.Parse()
	apiBaseURL, workerBaseURL := baseURLs()
	fmt.Printf("Running integration tests\n")
	fmt.Printf("   API:    %s\n", apiBaseURL)
	fmt.Printf("   Worker: %s\n", workerBaseURL)
	os.Exit(m.Run())
}

func TestIntegrationSuites(t *testing.T) {
	if *caseFlag != "" {
		t.Skip("Skipping bulk run (single case requested via -case)")
	}

	testRunner := newRunner(t)

	testFiles, err := discoverTestFiles("cases")
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(testFiles) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	var jobs []runner.TestJob
	for _, file := range testFiles {
		expandedJobs, err := runner.LoadTestSuiteWithExpansion(file, "cases")
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expandedJobs...)
	}
	if len(jobs) == 0 {
		t.Fatal("No valid test suites loaded")
	}

	runJobs(t, testRunner, jobs)
}

// TestSingleSuite runs individual test suites for debugging. Supports
// multiple cases comma-separated: -case "case1,case2".
func TestSingleSuite(t *testing.T) {
	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}
	if *errFlag != "exit" && *errFlag != "continue" {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}

	var jobs []runner.TestJob
	for _, caseName := range strings.Split(*caseFlag, ",") {
		caseName = strings.TrimSpace(caseName)
		if caseName == "" {
			continue
		}
		suiteFile := "cases/" + caseName
		if !strings.HasSuffix(suiteFile, ".json") {
			suiteFile += ".json"
		}

		expandedJobs, err := runner.LoadTestSuiteWithExpansion(suiteFile, "cases")
		if err != nil {
			t.Fatalf("Failed to load test suite %s: %v", suiteFile, err)
		}
		jobs = append(jobs, expandedJobs...)
	}
	if len(jobs) == 0 {
		t.Fatalf("No valid test cases found in -case flag: %s", *caseFlag)
	}

	runJobs(t, newRunner(t), jobs)
}

func runJobs(t *testing.T, testRunner *runner.Runner, jobs []runner.TestJob) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failed []string
	var passed []string

	for i, job := range jobs {
		t.Logf("[%d/%d] Running test suite: %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))

		result, err := testRunner.RunSuite(ctx, job.Suite)
		if err != nil && result.Error == nil {
			result.Error = err
		}
		result.Job = job

		t.Logf("Session ID: %s", result.Session.String())

		if result.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", job.Name, result.Error))
			t.Errorf("[%d/%d] FAILED: Test suite '%s': %v", i+1, len(jobs), job.Name, result.Error)
		} else {
			passed = append(passed, job.Name)
			t.Logf("[%d/%d] PASSED: Test suite '%s' completed in %v", i+1, len(jobs), job.Name, result.Duration)
		}

		for _, stepResult := range result.Results {
			if stepResult.Success {
				t.Logf("   ok   %s (%v, %d approvals resolved)", stepResult.StepName, stepResult.Duration, stepResult.ApprovalsResolved)
			} else {
				t.Errorf("   fail %s: %v", stepResult.StepName, stepResult.Error)
			}
		}
	}

	t.Logf("Integration summary: %d passed, %d failed", len(passed), len(failed))
	if len(failed) > 0 {
		for _, failure := range failed {
			t.Logf("   - %s", failure)
		}
		t.Fatalf("Integration tests failed")
	}
}

func discoverTestFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func getIntEnv(name string, defaultValue int) int {
	str := os.Getenv(name)
	if str == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultValue
	}
	return val
}
