// Command validate checks a model artifact file before deployment: decodes
// and validates it with the same code the service uses at load time, then
// optionally runs a sample request through it and reports the prediction.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -model models/outbreak_predictor.json \
//	  -request data/sample_predict_request.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/model"
)

func main() {
	modelPath := flag.String("model", "", "path to the model artifact JSON file")
	requestPath := flag.String("request", "", "optional path to a sample predict request JSON file")
	flag.Parse()

	if *modelPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*modelPath, *requestPath); code != 0 {
		os.Exit(code)
	}
}

func run(modelPath, requestPath string) int {
	fmt.Println("=== Model Artifact Validation ===")
	fmt.Println()

	f, err := os.Open(modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: open artifact: %v\n", err)
		return 1
	}
	defer f.Close()

	artifact, err := model.DecodeArtifact(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		return 1
	}

	printArtifact(artifact)

	if warnings := lintArtifact(artifact); len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	if requestPath != "" {
		if err := runSample(modelPath, artifact.OutbreakThreshold, requestPath); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: sample request: %v\n", err)
			return 1
		}
	}

	fmt.Println("\nArtifact is valid.")
	return 0
}

func printArtifact(a *model.Artifact) {
	fmt.Printf("Model type:         %s\n", a.Model.Type)
	fmt.Printf("Feature columns:    %d\n", len(a.FeatureColumns))
	fmt.Printf("Outbreak threshold: %g\n", a.OutbreakThreshold)
	fmt.Printf("Data source:        %s\n", a.DataSource)
	if a.Version != "" {
		fmt.Printf("Version:            %s\n", a.Version)
	}
	if len(a.Metrics) > 0 {
		pairs := make([]string, 0, len(a.Metrics))
		for k, v := range a.Metrics {
			pairs = append(pairs, fmt.Sprintf("%s=%g", k, v))
		}
		fmt.Printf("Metrics:            %s\n", strings.Join(pairs, " "))
	}
	switch a.Model.Type {
	case model.ModelTypeLinear:
		fmt.Printf("Coefficients:       %d (intercept %g)\n", len(a.Model.Coefficients), a.Model.Intercept)
	case model.ModelTypeGBTree:
		fmt.Printf("Trees:              %d (base score %g)\n", len(a.Model.Trees), a.Model.BaseScore)
	}
}

// lintArtifact flags conditions DecodeArtifact accepts but an operator
// probably wants to know about.
func lintArtifact(a *model.Artifact) []string {
	var warnings []string

	expected := domain.BuildFeatures(domain.Observation{PreviousCases: []int{0}}).Names()
	declared := map[string]bool{}
	for _, c := range a.FeatureColumns {
		declared[c] = true
	}
	for _, name := range expected {
		if !declared[name] {
			warnings = append(warnings, fmt.Sprintf("feature builder produces %q but the artifact does not declare it; it will be ignored", name))
		}
	}
	for _, c := range a.FeatureColumns {
		if !containsName(expected, c) {
			warnings = append(warnings, fmt.Sprintf("artifact declares %q but the feature builder never produces it; it will always be 0", c))
		}
	}

	if a.Version == "" {
		warnings = append(warnings, "artifact has no version; persisted predictions will not carry a model version")
	}
	if len(a.Metrics) == 0 {
		warnings = append(warnings, "artifact carries no performance metrics")
	}
	return warnings
}

// runSample loads the artifact through the real Predictor and runs one
// observation through the same inference path the service uses.
func runSample(modelPath string, threshold float64, requestPath string) error {
	data, err := os.ReadFile(requestPath)
	if err != nil {
		return err
	}
	var obs domain.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return fmt.Errorf("decode observation: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	predictor := model.NewPredictor(modelPath, logger)
	if err := predictor.Load(); err != nil {
		return err
	}

	predicted, err := predictor.Predict(domain.BuildFeatures(obs))
	if err != nil {
		return err
	}
	level, confidence := domain.AssessRisk(predicted, threshold)

	fmt.Println("\n=== Sample prediction ===")
	fmt.Printf("predicted_cases: %.4f\n", predicted)
	fmt.Printf("risk_level:      %s\n", level)
	fmt.Printf("confidence:      %.2f\n", confidence)
	return nil
}

func containsName(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
