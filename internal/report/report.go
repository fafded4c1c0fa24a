// Package report renders balance outcomes and pipeline results as text
// tables, CSV rows or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/genre"
)

type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name; empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q (must be text, csv, or json)", s)
	}
}

// ContentType is the HTTP content type of a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Row is one flattened report line.
type Row struct {
	Stage string
	Kind  string
	Key   string
	Value string
}

// Row kinds.
const (
	KindStatus = "status"
	KindParam  = "param"
	KindObs    = "obs"
	KindTarget = "target"
	KindEnv    = "env"
	KindSignal = "signal"
	KindError  = "error"
)

// SignalsStage is the stage column used for final signal rows.
const SignalsStage = "signals"

// WriteOutcome renders a single balance outcome.
func WriteOutcome(w io.Writer, f Format, out *balance.Outcome, targets balance.Targets) error {
	if f == FormatJSON {
		return writeJSON(w, out)
	}
	rows := outcomeRows(out.System, out, targets)
	if f == FormatCSV {
		return writeCSV(w, rows)
	}
	return writeText(w, []summary{summarize(out.System, out.System, out, false, nil)}, rows)
}

// WriteResult renders a pipeline result.
func WriteResult(w io.Writer, f Format, res *genre.Result) error {
	if f == FormatJSON {
		return writeJSON(w, res)
	}
	rows := ResultRows(res)
	if f == FormatCSV {
		return writeCSV(w, rows)
	}
	sums := make([]summary, 0, len(res.Stages))
	for _, s := range res.Stages {
		sums = append(sums, summarize(s.Name, s.System, s.Outcome, s.Skipped, s.Err))
	}
	if err := writeText(w, sums, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\npasses: %d  degraded: %t  converged: %t\n", res.Passes, res.Degraded, res.Converged())
	return err
}

// ResultRows flattens a pipeline result, stage by stage, then the final signals.
func ResultRows(res *genre.Result) []Row {
	var rows []Row
	for _, s := range res.Stages {
		switch {
		case s.Skipped:
			rows = append(rows, Row{s.Name, KindStatus, "skipped", "true"})
			continue
		case s.Err != nil:
			rows = append(rows, Row{s.Name, KindError, "error", s.Err.Error()})
			continue
		}
		rows = append(rows, outcomeRows(s.Name, s.Outcome, s.Targets)...)
		for _, k := range sortedKeys(s.Env) {
			rows = append(rows, Row{s.Name, KindEnv, k, formatFloat(s.Env[k])})
		}
	}
	for _, k := range res.Signals.Keys() {
		rows = append(rows, Row{SignalsStage, KindSignal, k, formatFloat(res.Signals[k])})
	}
	return rows
}

func outcomeRows(stage string, out *balance.Outcome, targets balance.Targets) []Row {
	if out == nil {
		return nil
	}
	rows := []Row{
		{stage, KindStatus, "converged", strconv.FormatBool(out.Converged)},
		{stage, KindStatus, "reason", string(out.Reason)},
		{stage, KindStatus, "iterations", strconv.Itoa(out.Iterations)},
		{stage, KindStatus, "distance", formatFloat(out.Distance)},
	}
	if out.Detail != "" {
		rows = append(rows, Row{stage, KindStatus, "detail", out.Detail})
	}
	for _, k := range sortedKeys(out.Params) {
		rows = append(rows, Row{stage, KindParam, k, formatFloat(out.Params[k])})
	}
	for _, k := range sortedKeys(out.Obs) {
		rows = append(rows, Row{stage, KindObs, k, formatFloat(out.Obs[k])})
	}
	for _, k := range targets.KPIs() {
		b := targets[k]
		rows = append(rows, Row{stage, KindTarget, k, fmt.Sprintf("[%s, %s]", formatFloat(b.Min), formatFloat(b.Max))})
	}
	return rows
}

type summary struct {
	stage, system, status, reason string
	iterations                    int
	distance                      float64
}

func summarize(stage, system string, out *balance.Outcome, skipped bool, err error) summary {
	s := summary{stage: stage, system: system}
	switch {
	case skipped:
		s.status = "skipped"
	case err != nil:
		s.status = "error"
		s.reason = err.Error()
	case out == nil:
		s.status = "-"
	default:
		s.status = "ok"
		if !out.Converged {
			s.status = "failed"
		}
		s.reason = string(out.Reason)
		s.iterations = out.Iterations
		s.distance = out.Distance
	}
	return s
}

func writeText(w io.Writer, sums []summary, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSYSTEM\tSTATUS\tREASON\tITERATIONS\tDISTANCE")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", s.stage, s.system, s.status, s.reason, s.iterations, formatFloat(s.distance))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STAGE\tKIND\tKEY\tVALUE")
	for _, r := range rows {
		if r.Kind == KindStatus {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Stage, r.Kind, r.Key, r.Value)
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"stage", "kind", "key", "value"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Stage, r.Kind, r.Key, r.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
