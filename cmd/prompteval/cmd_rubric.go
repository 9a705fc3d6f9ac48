package main

import (
	"fmt"
	"sort"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/rubric"
	"github.com/spf13/cobra"
)

func newRubricCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "Inspect and validate scoring rubrics",
		Long: `Inspect and validate scoring rubrics.

A rubric defines the judged criteria and their weights, optional per-criterion
calibration offsets, and how the three methodology scores combine. Scoring
changes are rubric-data changes; the engine never hard-codes them.`,
	}

	cmd.AddCommand(newRubricValidateCommand())
	cmd.AddCommand(newRubricShowCommand())

	return cmd
}

func newRubricValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rubric.yaml>",
		Short: "Validate a rubric file",
		Long: `Validate a rubric file against the rubric schema and semantic rules.

All schema violations are reported at once. Exit status is non-zero when
the rubric is unusable.`,
		Args: cobra.ExactArgs(1),
		RunE: rubricValidateE,
	}
}

func rubricValidateE(_ *cobra.Command, args []string) error {
	r, err := rubric.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Rubric %s is valid: %d criteria, grade scale %g-%g\n",
		r.Version, len(r.Criteria), r.GradeMin, r.GradeMax)
	return nil
}

func newRubricShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [rubric.yaml]",
		Short: "Show a rubric's criteria and weights",
		Long: `Show a rubric's criteria, weights, calibration offsets and methodology
split.

Without an argument, shows the suite's effective rubric: the file named in
prompteval.yaml, or the built-in rubric when none is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rubricShowE,
	}
}

func rubricShowE(_ *cobra.Command, args []string) error {
	var (
		r      *models.RubricVersion
		source string
		err    error
	)
	if len(args) > 0 {
		source = args[0]
		r, err = rubric.Load(source)
		if err != nil {
			return err
		}
	} else {
		spec, specDir, lerr := loadSpecFrom("")
		if lerr != nil {
			return lerr
		}
		source = spec.RubricPath
		r, err = loadRubric("", spec, specDir)
		if err != nil {
			return fmt.Errorf("failed to load rubric: %w", err)
		}
	}

	printRubric(r, source)
	return nil
}

// printRubric renders a rubric; source is where it came from ("" = the
// built-in rubric).
func printRubric(r *models.RubricVersion, source string) {
	fmt.Printf("Rubric: %s\n", r.Version)
	if source != "" {
		fmt.Printf("Source: %s\n", source)
	}
	fmt.Printf("Grade scale: %g-%g\n\n", r.GradeMin, r.GradeMax)

	fmt.Printf("  %s %s %s\n", padRight("Criterion", 20), padRight("Weight", 8), "Description")
	for _, c := range r.Criteria {
		fmt.Printf("  %s %s %s\n", padRight(c.Name, 20), padRight(fmt.Sprintf("%.2f", c.Weight), 8), c.Description)
	}
	fmt.Println()

	mw := r.MethodologyWeights
	fmt.Printf("Methodology weights: structural %.2f, judged %.2f, reproducibility %.2f\n",
		mw.Structural, mw.Judged, mw.Reproducibility)

	if len(r.CalibrationOffsets) > 0 {
		fmt.Println("\nCalibration offsets:")
		ids := make([]string, 0, len(r.CalibrationOffsets))
		for id := range r.CalibrationOffsets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s %+.2f\n", padRight(id, 28), r.CalibrationOffsets[id])
		}
	}
}
