package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/promptqa/prompteval/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one evaluation batch.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one evaluated artifact.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents an artifact that scored below the threshold.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents an artifact no methodology could score.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

// JUnitSkipped marks an artifact whose model-backed tier was skipped. The
// artifact still has a structural score and a pass/fail verdict; the marker
// keeps reduced coverage visible in CI.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a BatchOutcome to JUnit XML format: one testsuite
// for the batch, one testcase per artifact.
func ConvertToJUnit(outcome *models.BatchOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      "prompteval",
		Tests:     outcome.Digest.TotalArtifacts,
		Failures:  outcome.Digest.Failed,
		Errors:    outcome.Digest.Errored,
		Skipped:   outcome.Digest.TierSkipped,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "tier", Value: fmt.Sprintf("%d", outcome.Setup.Tier)},
			{Name: "rubric_version", Value: outcome.Setup.RubricVersion},
			{Name: "threshold", Value: fmt.Sprintf("%.1f", outcome.Setup.Threshold)},
			{Name: "avg_score", Value: fmt.Sprintf("%.2f", outcome.Digest.AvgScore)},
		},
	}

	for i := range outcome.Results {
		suite.TestCases = append(suite.TestCases, convertResult(&outcome.Results[i]))
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalArtifacts,
		Failures:   outcome.Digest.Failed,
		Errors:     outcome.Digest.Errored,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertResult(r *models.PromptResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      r.ArtifactID,
		Classname: fmt.Sprintf("tier-%d", r.Tier),
		Time:      float64(r.DurationMs) / 1000.0,
	}

	switch {
	case r.State == models.StateErrored:
		tc.Error = &JUnitError{
			Message: r.ErrorMsg,
			Type:    "AggregationError",
		}
	case !r.Passed:
		tc.Failure = buildFailure(r)
	}

	if r.TierSkipped && r.State != models.StateErrored {
		tc.Skipped = &JUnitSkipped{
			Message: fmt.Sprintf("no usable model at tier %d; scored from %s only", r.Tier, strings.Join(r.Coverage, "+")),
		}
	}

	return tc
}

func buildFailure(r *models.PromptResult) *JUnitFailure {
	var details strings.Builder
	for _, d := range r.Dimensions {
		if d.Missing {
			fmt.Fprintf(&details, "[MISSING] %s — %s\n", d.Criterion, d.MissingReason)
			continue
		}
		if d.NormalizedValue < r.ThresholdUsed {
			fmt.Fprintf(&details, "[LOW] %s: %.1f (weight %.2f)\n", d.Criterion, d.NormalizedValue, d.Weight)
		}
	}

	return &JUnitFailure{
		Message: fmt.Sprintf("%s: score=%.1f threshold=%.1f", r.ArtifactID, r.CombinedScore, r.ThresholdUsed),
		Type:    "ScoreBelowThreshold",
		Body:    details.String(),
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.BatchOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	content := []byte(xml.Header + string(data) + "\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing JUnit XML: %w", err)
	}
	return nil
}
