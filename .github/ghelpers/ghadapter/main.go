package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"pixelview/internal/report"

	"golang.org/x/xerrors"
)

type summary struct {
	Total         int
	Different     int
	Invalid       int
	MaxDiffAmount float64
	Reports       []*report.Report
}

// Runs a command that writes pixelview reports as JSON lines and exposes the
// totals as step outputs. The command's exit code is passed through.
func main() {
	if len(os.Args) < 2 {
		os.Exit(1)
	}

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	cmd := exec.Command(os.Args[1], args...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	code := 0
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		code = exitErr.ExitCode()
	}
	os.Stdout.Write(output)

	s, err := summarize(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(max(code, 1))
	}

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		if err := appendTo(githubOutput, s.writeOutputs); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	if stepSummary := os.Getenv("GITHUB_STEP_SUMMARY"); stepSummary != "" {
		if err := appendTo(stepSummary, s.writeMarkdown); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	os.Exit(code)
}

func summarize(r io.Reader) (*summary, error) {
	s := &summary{}
	decoder := json.NewDecoder(r)
	for {
		var rep report.Report
		if err := decoder.Decode(&rep); err == io.EOF {
			break
		} else if err != nil {
			return nil, xerrors.Errorf("failed to decode report: %w", err)
		}

		s.Total++
		switch {
		case rep.Diagnostic != nil:
			s.Invalid++
		case rep.IsDiff:
			s.Different++
		}
		if rep.Details != nil {
			s.MaxDiffAmount = max(s.MaxDiffAmount, rep.Details.DiffAmount)
		}
		s.Reports = append(s.Reports, &rep)
	}
	return s, nil
}

func (s *summary) writeOutputs(w io.Writer) error {
	_, err := fmt.Fprintf(w, "total=%d\ndifferent=%d\ninvalid=%d\nmax_diff_amount=%g\n", s.Total, s.Different, s.Invalid, s.MaxDiffAmount)
	return err
}

func (s *summary) writeMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "| Image 1 | Image 2 | Result | Diff amount |\n| --- | --- | --- | --- |\n"); err != nil {
		return err
	}
	for _, r := range s.Reports {
		result := "equal"
		amount := "-"
		switch {
		case r.Diagnostic != nil:
			result = "invalid: " + r.Diagnostic["msg"]
		case r.IsDiff:
			result = "different"
		}
		if r.Details != nil {
			amount = fmt.Sprintf("%.4f", r.Details.DiffAmount)
		}
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s |\n", r.Image1, r.Image2, result, amount); err != nil {
			return err
		}
	}
	return nil
}

func appendTo(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return xerrors.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return write(f)
}
