package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ecoguard/ecoguard/internal/core/validate"
	"github.com/ecoguard/ecoguard/internal/output"
)

// ErrPayloadInvalid is returned when a checked payload has violations.
var ErrPayloadInvalid = errors.New("payload failed validation")

var (
	validateFile   string
	validateOutput string
)

type payloadKind struct {
	rules func() validate.Rules
	// extra runs after the rules pass and returns further violations.
	extra func(map[string]any) []string
}

var payloadKinds = map[string]payloadKind{
	"sensor":      {rules: validate.SensorRules, extra: predicateCheck("sensor", validate.IsValidSensorData, validate.SensorTextFields)},
	"alert":       {rules: validate.AlertRules, extra: predicateCheck("alert", validate.IsValidAlertData, validate.AlertTextFields)},
	"credentials": {rules: validate.CredentialRules, extra: passwordCheck},
}

// predicateCheck applies the payload predicate, then the bounds on the text
// as the API would store it.
func predicateCheck(kind string, ok func(map[string]any) bool, text []validate.TextField) func(map[string]any) []string {
	return func(obj map[string]any) []string {
		if !ok(obj) {
			return []string{kind + " payload is not acceptable"}
		}
		return validate.StoredTextViolations(obj, text)
	}
}

func passwordCheck(obj map[string]any) []string {
	password, _ := obj["password"].(string)
	return validate.IsStrongPassword(password).Errors
}

var validateCmd = &cobra.Command{
	Use:       "validate <sensor|alert|credentials>",
	Short:     "Check a JSON payload against the API validation rules",
	Long:      "Check a JSON payload offline with the same rules the API applies. Reads --file, or stdin when --file is - or omitted.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sensor", "alert", "credentials"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(validateOutput)
		if err != nil {
			return err
		}

		source := strings.TrimSpace(validateFile)
		if source == "" {
			source = "-"
		}
		raw, err := readPayload(cmd.InOrStdin(), source)
		if err != nil {
			return err
		}

		report, err := checkPayload(args[0], source, raw)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatValidation(report)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
			return err
		}

		if !report.Valid {
			return fmt.Errorf("%w: %d violation(s)", ErrPayloadInvalid, len(report.Violations))
		}
		return nil
	},
}

func readPayload(stdin io.Reader, source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(source) // #nosec G304 -- operator-supplied path
}

// checkPayload runs the named rule set and the matching predicate over raw JSON.
func checkPayload(kind, source string, raw []byte) (output.ValidationReport, error) {
	pk, ok := payloadKinds[kind]
	if !ok {
		return output.ValidationReport{}, fmt.Errorf("unknown payload kind %q (want sensor, alert or credentials)", kind)
	}

	report := output.ValidationReport{Kind: kind, Source: source, Violations: []string{}}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		report.Violations = append(report.Violations, "payload must be a JSON object")
		return report, nil
	}

	report.Violations = append(report.Violations, validate.Validate(obj, pk.rules())...)
	if len(report.Violations) == 0 {
		report.Violations = append(report.Violations, pk.extra(obj)...)
	}
	report.Valid = len(report.Violations) == 0
	return report, nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "-", "payload file, - for stdin")
	validateCmd.Flags().StringVar(&validateOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
}
