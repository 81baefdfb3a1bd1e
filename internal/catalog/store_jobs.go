package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipspace/internal/bus"
)

const jobColumns = `id, item_id, kind, state, attempts, last_error, progress, payload_json, created_at, updated_at, completed_at`

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		kind        string
		state       string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.ItemID,
		&kind,
		&state,
		&job.Attempts,
		&job.LastError,
		&job.Progress,
		&job.Payload,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Kind = JobKind(kind)
	job.State = JobState(state)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTime(completedAt.String)
		job.CompletedAt = &t
	}
	return &job, nil
}

// EnqueueJob inserts a pending job for (item, kind). A live job for the same
// pair already in pending or running state makes this a no-op returning
// ErrJobExists, enforced by the partial unique index.
func (s *Store) EnqueueJob(ctx context.Context, itemID string, kind JobKind, payload string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (item_id, kind, state, attempts, last_error, progress, payload_json, created_at, updated_at)
         VALUES (?, ?, ?, 0, '', 0, ?, ?, ?)`,
		itemID, string(kind), string(JobPending), payload, formatTime(now), formatTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed: jobs") {
			return nil, fmt.Errorf("%w: %s/%s", ErrJobExists, itemID, kind)
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	return &Job{
		ID:        id,
		ItemID:    itemID,
		Kind:      kind,
		State:     JobPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetJob fetches a job by row id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// LiveJob returns the pending or running job for (item, kind), or nil.
func (s *Store) LiveJob(ctx context.Context, itemID string, kind JobKind) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs
         WHERE item_id = ? AND kind = ? AND state IN (?, ?)`,
		itemID, string(kind), string(JobPending), string(JobRunning))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// NextPending claims the oldest pending job whose kind is in kinds, moving it
// to running in the same statement so two pools never claim the same row.
func (s *Store) NextPending(ctx context.Context, kinds []JobKind) (*Job, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)

	args := make([]any, 0, len(kinds)+3)
	args = append(args, formatTime(time.Now()), string(JobPending))
	for _, k := range kinds {
		args = append(args, string(k))
	}
	query := `UPDATE jobs SET state = '` + string(JobRunning) + `', updated_at = ?
        WHERE id = (
            SELECT id FROM jobs
            WHERE state = ? AND kind IN (` + makePlaceholders(len(kinds)) + `)
            ORDER BY created_at ASC, id ASC LIMIT 1
        )
        RETURNING ` + jobColumns

	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, args...)
		j, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// SetJobProgress records worker progress (0..1) and mirrors it to the bus.
func (s *Store) SetJobProgress(ctx context.Context, id int64, progress float64) error {
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ensureContext(ctx),
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	s.publish(bus.Event{
		Type:   bus.EventJobProgress,
		ItemID: job.ItemID,
		Payload: bus.Progress{
			ItemID:   job.ItemID,
			Job:      string(job.Kind),
			Status:   string(JobRunning),
			Fraction: progress,
		},
	})
	return nil
}

// CompleteJob marks a job done and stamps the item's derivation record.
func (s *Store) CompleteJob(ctx context.Context, id int64) error {
	return s.finishJob(ctx, id, JobCompleted, "")
}

// FailJob marks a job failed with a terminal error message and stamps the
// item's derivation record.
func (s *Store) FailJob(ctx context.Context, id int64, jobErr error) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return s.finishJob(ctx, id, JobFailed, msg)
}

func (s *Store) finishJob(ctx context.Context, id int64, state JobState, lastError string) error {
	ctx = ensureContext(ctx)
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	progress := job.Progress
	if state == JobCompleted {
		progress = 1
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, last_error = ?, progress = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(state), lastError, progress, formatTime(now), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	record := DerivationRecord{State: state, Error: lastError, CompletedAt: &now}
	if _, err := s.Patch(ctx, job.ItemID, func(item *Item) error {
		if item.Derivations == nil {
			item.Derivations = make(DerivationStatus)
		}
		item.Derivations[job.Kind] = record
		return nil
	}); err != nil && !IsNotFound(err) {
		return err
	}

	s.publish(bus.Event{
		Type:   bus.EventJobProgress,
		ItemID: job.ItemID,
		Payload: bus.Progress{
			ItemID:   job.ItemID,
			Job:      string(job.Kind),
			Status:   string(state),
			Fraction: progress,
			Message:  lastError,
		},
	})
	return nil
}

// RetryJob moves a failed or stalled running job back to pending, bumping its
// attempt counter.
func (s *Store) RetryJob(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, attempts = attempts + 1, updated_at = ?, completed_at = NULL
         WHERE id = ? AND state IN (?, ?)`,
		string(JobPending), formatTime(time.Now()), id, string(JobFailed), string(JobRunning))
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, jobNotFound(id)
	}
	return s.GetJob(ctx, id)
}

// ResetRunningJobs returns jobs stranded in running state by a crash to
// pending. Called once during startup before the scheduler spins up.
func (s *Store) ResetRunningJobs(ctx context.Context) (int, error) {
	res, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE jobs SET state = ?, updated_at = ? WHERE state = ?`,
		string(JobPending), formatTime(time.Now()), string(JobRunning))
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// CancelJobsForItem removes every job row for an item. Used when the item is
// deleted while work is queued.
func (s *Store) CancelJobsForItem(ctx context.Context, itemID string) error {
	_, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM jobs WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}
	return nil
}

// ListJobs returns jobs filtered by state (nil = all), newest first.
func (s *Store) ListJobs(ctx context.Context, states []JobState) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, st := range states {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobCounts returns how many jobs sit in each state.
func (s *Store) JobCounts(ctx context.Context) (map[JobState]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobState]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[JobState(state)] = count
	}
	return counts, rows.Err()
}
