// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists bandit projects and their runs in BadgerDB.
//
// A project is a fixed set of arm means that experiments are run against.
// Every saved run updates the project's per-arm statistics, so a project
// accumulates what all its runs have learned about its arms.
//
// Key layout (all values JSON):
//
//	project:{projectID}               Project
//	arm:{projectID}:{index:06d}        Arm
//	run:{projectID}:{runID}            Run without records
//	records:{runID}:{chunk:06d}        []bandit.TrialRecord, recordChunkSize per key
//	runidx:{runID}                     projectID
//
// Trial records are split into chunks so a long run stays under Badger's
// value size limit (1 MiB in memory) and transaction size limit.
//
// Project and run IDs are UUIDv7, so prefix scans return them in creation
// order.
//
// Thread Safety: Store is safe for concurrent use. Concurrent SaveRun calls
// on the same project may conflict; the loser gets badger.ErrConflict.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a project or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidProject is returned for a project that cannot be created.
	ErrInvalidProject = errors.New("invalid project")

	// ErrRunMismatch is returned when a run was not played against the
	// project's arm means.
	ErrRunMismatch = errors.New("run does not match project arms")
)

// -----------------------------------------------------------------------------
// Models
// -----------------------------------------------------------------------------

// Project is a named set of arms.
type Project struct {
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	NumberBandits int       `json:"number_bandits"`
	Means         []float64 `json:"means"`
	CreatedAt     time.Time `json:"created_at"`

	// OptimalArm is the arm most pulled by the latest run. Nil before any run.
	OptimalArm *int `json:"optimal_arm,omitempty"`

	// LastAlgorithmRun is when the latest run finished. Nil before any run.
	LastAlgorithmRun *time.Time `json:"last_algorithm_run,omitempty"`
}

// BestArm returns the arm with the highest true mean.
func (p *Project) BestArm() int {
	best := 0
	for i, m := range p.Means {
		if m > p.Means[best] {
			best = i
		}
	}
	return best
}

// Arm holds one arm's statistics accumulated over every saved run.
type Arm struct {
	ProjectID string  `json:"project_id"`
	Index     int     `json:"index"`
	Mean      float64 `json:"mean"`

	// Trials is the total number of pulls.
	Trials int `json:"trials"`

	// Explored counts pulls that cost regret, i.e. pulls of a suboptimal arm.
	Explored int `json:"explored"`

	// EstimatedMean is the mean observed reward over all pulls.
	EstimatedMean float64 `json:"estimated_mean"`

	// LastReward is the most recently observed reward.
	LastReward float64   `json:"last_reward"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Run is one saved simulation run.
type Run struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Algorithm   string         `json:"algorithm"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Interrupted bool           `json:"interrupted"`
	Summary     bandit.Summary `json:"summary"`

	// Records is only populated by GetRun.
	Records []bandit.TrialRecord `json:"records,omitempty"`
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store is a BadgerDB-backed repository of projects and runs.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
	now    func() time.Time
}

// Open opens a store.
//
// Description:
//
//	Opens BadgerDB at cfg.Path (or in memory) and starts value log GC when
//	cfg.GCInterval is set on a persistent store.
//
// Outputs:
//   - *Store: The store. Caller must Close it.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
		now:    cfg.Clock,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio == 0 {
			ratio = 0.5
		}
		runner, err := newGCRunner(db, cfg.GCInterval, ratio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}

	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	return s.db.Close()
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// CreateProject stores a new project and one Arm per mean.
//
// Inputs:
//   - description: Human label. Must not be empty.
//   - means: True arm means. Non-empty and finite.
//
// Outputs:
//   - *Project: The stored project.
//   - error: ErrInvalidProject or a storage error.
func (s *Store) CreateProject(ctx context.Context, description string, means []float64) (*Project, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidProject)
	}
	if len(means) == 0 {
		return nil, fmt.Errorf("%w: at least one arm is required", ErrInvalidProject)
	}
	for i, m := range means {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: arm %d mean %v is not finite", ErrInvalidProject, i, m)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate project id: %w", err)
	}
	now := s.now()

	project := &Project{
		ID:            id.String(),
		Description:   description,
		NumberBandits: len(means),
		Means:         append([]float64(nil), means...),
		CreatedAt:     now,
	}

	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		if err := putJSON(txn, projectKey(project.ID), project); err != nil {
			return err
		}
		for i, m := range means {
			arm := &Arm{ProjectID: project.ID, Index: i, Mean: m, UpdatedAt: now}
			if err := putJSON(txn, armKey(project.ID, i), arm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created", "project_id", project.ID, "arms", len(means))
	return project, nil
}

// GetProject returns the project with the given ID or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, projectKey(id), &project)
	})
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &project, nil
}

// ListProjects returns every project in creation order.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	var projects []*Project
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanJSON(ctx, txn, []byte(prefixProject), func(val []byte) error {
			var p Project
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			projects = append(projects, &p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Arms returns the project's arms in index order.
func (s *Store) Arms(ctx context.Context, projectID string) ([]*Arm, error) {
	var arms []*Arm
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			return notFound(err)
		}
		return scanJSON(ctx, txn, armPrefix(projectID), func(val []byte) error {
			var a Arm
			if err := json.Unmarshal(val, &a); err != nil {
				return err
			}
			arms = append(arms, &a)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list arms of %s: %w", projectID, err)
	}
	return arms, nil
}

// DeleteProject removes a project with its arms and runs.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(id)); err != nil {
			return notFound(err)
		}

		keys := collectKeys(txn, armPrefix(id))
		runKeys := collectKeys(txn, runPrefix(id))
		keys = append(keys, runKeys...)
		for _, key := range runKeys {
			if runID, ok := runIDFromKey(key, id); ok {
				keys = append(keys, runIndexKey(runID))
				keys = append(keys, collectKeys(txn, recordsPrefix(runID))...)
			}
		}
		keys = append(keys, projectKey(id))

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}

	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// SaveRun stores a finished run and folds it into the project's arms.
//
// Description:
//
//	The run's means must equal the project's. Each arm's Trials, Explored,
//	EstimatedMean, and LastReward absorb the run's records; the project's
//	OptimalArm becomes the arm the run pulled most (lowest index on ties)
//	and LastAlgorithmRun becomes the finish time.
//
//	Records are written first, in chunks, through a write batch. The run,
//	its index entry and the arm and project updates then commit in one
//	transaction. Records are only reachable through the index, so a failed
//	commit leaves no visible run; its chunks are deleted on the way out.
//
// Inputs:
//   - projectID: Target project.
//   - result: The run. Interrupted runs are accepted.
//   - startedAt: When the run began. Zero means the finish time.
//
// Outputs:
//   - *Run: The stored run, records included.
//   - error: ErrNotFound, ErrRunMismatch, or a storage error.
func (s *Store) SaveRun(ctx context.Context, projectID string, result *bandit.RunResult, startedAt time.Time) (*Run, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil result", ErrRunMismatch)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	finished := s.now()
	if startedAt.IsZero() {
		startedAt = finished
	}

	run := &Run{
		ID:          id.String(),
		ProjectID:   projectID,
		Algorithm:   result.Algorithm,
		StartedAt:   startedAt,
		FinishedAt:  finished,
		Interrupted: result.Interrupted,
		Summary:     result.Summary,
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save run: context cancelled: %w", err)
	}
	if err := s.writeRecords(run.ID, result.Records); err != nil {
		s.dropRecords(run.ID)
		return nil, fmt.Errorf("save run records: %w", err)
	}

	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		var project Project
		if err := getJSON(txn, projectKey(projectID), &project); err != nil {
			return err
		}
		if err := matchMeans(&project, result); err != nil {
			return err
		}

		arms := make([]*Arm, project.NumberBandits)
		for i := range arms {
			arms[i] = &Arm{}
			if err := getJSON(txn, armKey(projectID, i), arms[i]); err != nil {
				return fmt.Errorf("arm %d: %w", i, err)
			}
		}
		for _, rec := range result.Records {
			if rec.Arm < 0 || rec.Arm >= len(arms) {
				return fmt.Errorf("%w: trial %d pulled arm %d", ErrRunMismatch, rec.Trial, rec.Arm)
			}
			a := arms[rec.Arm]
			a.Trials++
			a.EstimatedMean += (rec.Reward - a.EstimatedMean) / float64(a.Trials)
			a.LastReward = rec.Reward
			if rec.Regret > 0 {
				a.Explored++
			}
			a.UpdatedAt = finished
		}
		for i, a := range arms {
			if err := putJSON(txn, armKey(projectID, i), a); err != nil {
				return err
			}
		}

		if len(result.Records) > 0 {
			optimal := mostPulled(result.Summary.ArmCounts)
			project.OptimalArm = &optimal
		}
		project.LastAlgorithmRun = &finished
		if err := putJSON(txn, projectKey(projectID), &project); err != nil {
			return err
		}

		if err := putJSON(txn, runKey(projectID, run.ID), run); err != nil {
			return err
		}
		return txn.Set(runIndexKey(run.ID), []byte(projectID))
	})
	if err != nil {
		s.dropRecords(run.ID)
		return nil, fmt.Errorf("save run: %w", err)
	}

	run.Records = result.Records
	s.logger.Info("run saved",
		"project_id", projectID,
		"run_id", run.ID,
		"algorithm", run.Algorithm,
		"trials", run.Summary.Trials,
	)
	return run, nil
}

// GetRun returns a run with its records, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(runIndexKey(runID))
		if err != nil {
			return notFound(err)
		}
		projectID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := getJSON(txn, runKey(string(projectID), runID), &run); err != nil {
			return err
		}
		run.Records = make([]bandit.TrialRecord, 0, run.Summary.Trials)
		return scanJSON(ctx, txn, recordsPrefix(runID), func(val []byte) error {
			var chunk []bandit.TrialRecord
			if err := json.Unmarshal(val, &chunk); err != nil {
				return err
			}
			run.Records = append(run.Records, chunk...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the project's runs in creation order, without records.
func (s *Store) ListRuns(ctx context.Context, projectID string) ([]*Run, error) {
	var runs []*Run
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(projectKey(projectID)); err != nil {
			return notFound(err)
		}
		return scanJSON(ctx, txn, runPrefix(projectID), func(val []byte) error {
			var r Run
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			runs = append(runs, &r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", projectID, err)
	}
	return runs, nil
}

// recordChunkSize is the number of trial records stored per key. A record
// encodes to about 90 bytes, so a chunk stays well under 1 MiB.
const recordChunkSize = 2048

// writeRecords stores records in chunks through a write batch, which
// splits the writes over as many transactions as it needs.
func (s *Store) writeRecords(runID string, records []bandit.TrialRecord) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, start := 0, 0; start < len(records); i, start = i+1, start+recordChunkSize {
		end := min(start+recordChunkSize, len(records))
		data, err := json.Marshal(records[start:end])
		if err != nil {
			return fmt.Errorf("marshal records chunk %d: %w", i, err)
		}
		if err := wb.Set(recordsKey(runID, i), data); err != nil {
			return fmt.Errorf("write records chunk %d: %w", i, err)
		}
	}
	return wb.Flush()
}

// dropRecords removes the chunks of a run that failed to save.
func (s *Store) dropRecords(runID string) {
	var keys [][]byte
	_ = s.db.View(func(txn *badger.Txn) error {
		keys = collectKeys(txn, recordsPrefix(runID))
		return nil
	})
	if len(keys) == 0 {
		return
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			s.logger.Warn("dropping records of unsaved run failed", "run_id", runID, "error", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		s.logger.Warn("dropping records of unsaved run failed", "run_id", runID, "error", err)
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

const (
	prefixProject = "project:"
	prefixArm     = "arm:"
	prefixRun     = "run:"
	prefixRecords = "records:"
	prefixRunIdx  = "runidx:"
)

func projectKey(id string) []byte { return []byte(prefixProject + id) }

func armPrefix(projectID string) []byte { return []byte(prefixArm + projectID + ":") }

func armKey(projectID string, idx int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixArm, projectID, idx))
}

func runPrefix(projectID string) []byte { return []byte(prefixRun + projectID + ":") }

func runKey(projectID, runID string) []byte {
	return []byte(prefixRun + projectID + ":" + runID)
}

func recordsPrefix(runID string) []byte { return []byte(prefixRecords + runID + ":") }

func recordsKey(runID string, chunk int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixRecords, runID, chunk))
}

func runIndexKey(runID string) []byte { return []byte(prefixRunIdx + runID) }

func runIDFromKey(key []byte, projectID string) (string, bool) {
	prefix := runPrefix(projectID)
	if len(key) <= len(prefix) || string(key[:len(prefix)]) != string(prefix) {
		return "", false
	}
	return string(key[len(prefix):]), true
}

// collectKeys returns copies of every key under prefix.
func collectKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return notFound(err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func scanJSON(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func matchMeans(p *Project, result *bandit.RunResult) error {
	if len(result.Means) != len(p.Means) {
		return fmt.Errorf("%w: run has %d arms, project has %d", ErrRunMismatch, len(result.Means), len(p.Means))
	}
	for i := range p.Means {
		if p.Means[i] != result.Means[i] {
			return fmt.Errorf("%w: arm %d mean %v, project has %v", ErrRunMismatch, i, result.Means[i], p.Means[i])
		}
	}
	return nil
}

func mostPulled(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
