// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes bandit trial logs as CSV.
//
// The file format is one header row followed by one row per trial, runs
// concatenated in the order given:
//
//	Trial,Arm,Reward,Regret,Algorithm
//	1,2,2.71,1,Epsilon-Greedy
//
// Floats are written with the shortest representation that parses back to
// the same value, so ReadCSV reproduces the records exactly.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AleutianAI/banditlab/services/bandit"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrBadHeader is returned when the first row is not Header.
	ErrBadHeader = errors.New("csv header does not match trial log format")

	// ErrBadRow is returned for a row that cannot be parsed.
	ErrBadRow = errors.New("malformed trial row")
)

// Header is the column layout of a trial log.
var Header = []string{"Trial", "Arm", "Reward", "Regret", "Algorithm"}

// -----------------------------------------------------------------------------
// Writing
// -----------------------------------------------------------------------------

// WriteCSV writes the header and every record of every result.
//
// Inputs:
//   - w: Destination.
//   - results: Runs to write, in order. Nil entries are skipped.
//
// Outputs:
//   - error: Non-nil on write failure.
func WriteCSV(w io.Writer, results ...*bandit.RunResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Header))
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, rec := range res.Records {
			row[0] = strconv.Itoa(rec.Trial)
			row[1] = strconv.Itoa(rec.Arm)
			row[2] = strconv.FormatFloat(rec.Reward, 'g', -1, 64)
			row[3] = strconv.FormatFloat(rec.Regret, 'g', -1, 64)
			row[4] = rec.Algorithm
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write trial %d: %w", rec.Trial, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes results to path atomically: temp file + rename.
//
// Parent directories are created as needed.
func WriteFile(path string, results ...*bandit.RunResult) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".trials-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := WriteCSV(tempFile, results...); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close trial log: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename trial log: %w", err)
	}

	success = true
	return nil
}

// -----------------------------------------------------------------------------
// Reading
// -----------------------------------------------------------------------------

// ReadCSV parses a trial log back into one RunResult per algorithm.
//
// Description:
//
//	Results come back in order of each algorithm's first row. Means are
//	not part of the log, so they stay nil, and Summary.ArmCounts is sized
//	to the highest arm index seen.
//
// Outputs:
//   - []*bandit.RunResult: One per algorithm.
//   - error: ErrBadHeader, ErrBadRow (wrapped with the line), or a read error.
func ReadCSV(r io.Reader) ([]*bandit.RunResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q", ErrBadHeader, i, header[i])
		}
	}

	var order []string
	byAlgorithm := make(map[string]*bandit.RunResult)
	maxArm := make(map[string]int)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trial log: %w", err)
		}

		line, _ := reader.FieldPos(0)
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, line, err)
		}

		res, ok := byAlgorithm[rec.Algorithm]
		if !ok {
			res = &bandit.RunResult{Algorithm: rec.Algorithm}
			byAlgorithm[rec.Algorithm] = res
			order = append(order, rec.Algorithm)
		}
		res.Records = append(res.Records, rec)
		if rec.Arm > maxArm[rec.Algorithm] {
			maxArm[rec.Algorithm] = rec.Arm
		}
	}

	out := make([]*bandit.RunResult, 0, len(order))
	for _, alg := range order {
		res := byAlgorithm[alg]
		res.Summary = bandit.Summarize(res.Records, maxArm[alg]+1)
		out = append(out, res)
	}
	return out, nil
}

// ReadFile reads a trial log from path.
func ReadFile(path string) ([]*bandit.RunResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trial log: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseRow(row []string) (bandit.TrialRecord, error) {
	var rec bandit.TrialRecord
	var err error

	if rec.Trial, err = strconv.Atoi(row[0]); err != nil {
		return rec, fmt.Errorf("trial: %w", err)
	}
	if rec.Arm, err = strconv.Atoi(row[1]); err != nil {
		return rec, fmt.Errorf("arm: %w", err)
	}
	if rec.Arm < 0 {
		return rec, fmt.Errorf("arm: negative index %d", rec.Arm)
	}
	if rec.Reward, err = strconv.ParseFloat(row[2], 64); err != nil {
		return rec, fmt.Errorf("reward: %w", err)
	}
	if rec.Regret, err = strconv.ParseFloat(row[3], 64); err != nil {
		return rec, fmt.Errorf("regret: %w", err)
	}
	rec.Algorithm = row[4]
	return rec, nil
}
