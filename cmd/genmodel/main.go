// Command genmodel writes a deterministic demo model artifact and a matching
// sample predict request, for local development and test fixtures. The demo
// model is a linear regression over the full training feature set with
// hand-picked coefficients; it is not a trained model.
//
// Usage:
//
//	go run ./cmd/genmodel \
//	  -model-out models/outbreak_predictor.json \
//	  -request-out data/sample_predict_request.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outbreak-warning-service/internal/domain"
	"github.com/couchcryptid/outbreak-warning-service/internal/model"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	modelOut := flag.String("model-out", "models/outbreak_predictor.json", "output path for the demo model artifact")
	requestOut := flag.String("request-out", "data/sample_predict_request.json", "output path for the sample predict request")
	flag.Parse()

	artifact := demoArtifact()
	if err := writeJSON(*modelOut, artifact); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}
	log.Printf("wrote model artifact: %s", *modelOut)

	request := sampleObservation()
	if err := writeJSON(*requestOut, request); err != nil {
		return fmt.Errorf("writing sample request: %w", err)
	}
	log.Printf("wrote sample request: %s", *requestOut)

	printExpectedOutput(artifact, request)
	return nil
}

// demoArtifact builds a linear model whose coefficient structure mirrors the
// real training pipeline: recent case history dominates, climate variables
// nudge, seasonality wiggles.
func demoArtifact() *model.Artifact {
	features := domain.BuildFeatures(sampleObservation())
	return &model.Artifact{
		Model: model.Spec{
			Type:      model.ModelTypeLinear,
			Intercept: 2.0,
			Coefficients: map[string]float64{
				"cases_lag_1":      0.85,
				"cases_lag_2":      0.35,
				"cases_lag_3":      0.15,
				"cases_lag_4":      0.05,
				"temp_avg":         0.12,
				"precipitation_mm": 0.04,
				"humidity_percent": 0.06,
				"week_sin":         1.5,
				"week_cos":         -0.8,
			},
		},
		FeatureColumns:    features.Names(),
		OutbreakThreshold: 25.0,
		Metrics:           map[string]float64{"mae": 4.2, "rmse": 6.8},
		DataSource:        "DengAI (demo coefficients)",
		Version:           "demo-1",
	}
}

func sampleObservation() domain.Observation {
	return domain.Observation{
		TempAvg:         28.5,
		TempMin:         24.0,
		TempMax:         33.0,
		PrecipitationMM: 45.2,
		HumidityPercent: 82.0,
		WeekOfYear:      32,
		PreviousCases:   []int{12, 15, 18, 22},
	}
}

// printExpectedOutput runs the artifact through the real prediction path so
// test assertions can be copied from the output.
func printExpectedOutput(artifact *model.Artifact, obs domain.Observation) {
	data, err := json.Marshal(artifact)
	if err != nil {
		log.Printf("marshal for verification: %v", err)
		return
	}
	decoded, err := model.DecodeArtifact(bytes.NewReader(data))
	if err != nil {
		log.Printf("demo artifact failed validation: %v", err)
		return
	}

	var sum float64
	fv := domain.BuildFeatures(obs)
	x := fv.AlignTo(decoded.FeatureColumns)
	sum = decoded.Model.Intercept
	for i, col := range decoded.FeatureColumns {
		sum += decoded.Model.Coefficients[col] * x[i]
	}

	fmt.Println("\n=== Expected prediction for the sample request ===")
	fmt.Printf("features: %d\n", fv.Len())
	fmt.Printf("predicted_cases: %.4f\n", sum)
	level, confidence := domain.AssessRisk(sum, decoded.OutbreakThreshold)
	fmt.Printf("risk_level: %s\n", level)
	fmt.Printf("confidence: %.2f\n", confidence)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
