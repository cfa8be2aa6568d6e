// Package store persists job records in redis and their step lists as
// JSON documents in the blob store.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
	"github.com/ncobase/blobjob/paging"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

const (
	indexKey  = "jobs"
	keyPrefix = "job:"
)

// Hash fields of a job record.
const (
	fieldID               = "id"
	fieldName             = "name"
	fieldSchedule         = "schedule"
	fieldUpdated          = "updated"
	fieldState            = "state"
	fieldValidationState  = "validation_state"
	fieldValidationReason = "validation_reason"
)

// Interface is the job repository.
type Interface interface {
	PutJob(ctx context.Context, j *job.Job) (*job.Job, error)
	GetDetails(ctx context.Context, id string) (*job.Details, error)
	GetSteps(ctx context.Context, id string) ([]job.Step, error)
	GetRawSteps(ctx context.Context, id string) ([]byte, error)
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, cursor string, limit int) ([]job.Details, string, error)
	SetState(ctx context.Context, id string, state job.State) error
	SetValidationState(ctx context.Context, id string, state job.ValidationState, reason string) error
}

// Store implements Interface with redis and a blob store.
type Store struct {
	rc     *redis.Client
	blobs  oss.Interface
	bucket string
	now    func() time.Time
}

// New creates a store keeping step lists under bucket.
func New(rc *redis.Client, blobs oss.Interface, bucket string) (*Store, error) {
	if rc == nil {
		return nil, errors.New("redis client is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if bucket == "" {
		return nil, errors.New("steps bucket is required")
	}
	return &Store{rc: rc, blobs: blobs, bucket: bucket, now: time.Now}, nil
}

func jobKey(id string) string { return keyPrefix + id }

func (s *Store) stepsLocation(id string) oss.Location {
	return oss.Location{Bucket: s.bucket, Key: id}
}

// PutJob creates or replaces a job. A missing id is generated, the updated
// time is set and the validation state is reset to VALIDATING.
func (s *Store) PutJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	if j == nil {
		return nil, errors.New("job is nil")
	}
	out := *j
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.State == "" {
		out.State = job.StateDisabled
	}
	if out.Steps == nil {
		out.Steps = []job.Step{}
	}
	out.Updated = s.now().UTC()
	out.ValidationState = job.Validating
	out.ValidationReason = ""

	raw, err := json.Marshal(out.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	if _, err := s.blobs.Put(ctx, s.stepsLocation(out.ID), bytes.NewReader(raw), int64(len(raw))); err != nil {
		return nil, fmt.Errorf("failed to store steps of job %s: %w", out.ID, err)
	}

	_, err = s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey(out.ID), detailsFields(&out.Details))
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: 0, Member: out.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store job %s: %w", out.ID, err)
	}
	return &out, nil
}

// GetDetails returns the job record without steps.
func (s *Store) GetDetails(ctx context.Context, id string) (*job.Details, error) {
	fields, err := s.rc.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return parseDetails(fields)
}

// GetRawSteps returns the serialized step list as stored.
func (s *Store) GetRawSteps(ctx context.Context, id string) ([]byte, error) {
	rc, err := s.blobs.GetStream(ctx, s.stepsLocation(id))
	if err != nil {
		if oss.IsNotFound(err) {
			return nil, fmt.Errorf("%w: steps of %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get steps of job %s: %w", id, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps of job %s: %w", id, err)
	}
	return raw, nil
}

// GetSteps returns the decoded step list.
func (s *Store) GetSteps(ctx context.Context, id string) ([]job.Step, error) {
	raw, err := s.GetRawSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	var steps []job.Step
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of job %s: %w", id, err)
	}
	return steps, nil
}

// DeleteJob removes the record and the step list.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	n, err := s.rc.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to check job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.blobs.Delete(ctx, s.stepsLocation(id)); err != nil && !oss.IsNotFound(err) {
		return fmt.Errorf("failed to delete steps of job %s: %w", id, err)
	}

	_, err = s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, jobKey(id))
		pipe.ZRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// ListJobs returns up to limit jobs ordered by id, starting after cursor.
// The returned cursor is empty when there are no more jobs.
func (s *Store) ListJobs(ctx context.Context, cursor string, limit int) ([]job.Details, string, error) {
	after, err := paging.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = paging.NormalizeParams(paging.Params{Limit: limit}).Limit
	lo := "-"
	if after != "" {
		lo = "(" + after
	}

	ids, err := s.rc.ZRangeByLex(ctx, indexKey, &redis.ZRangeBy{
		Min:   lo,
		Max:   "+",
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list jobs: %w", err)
	}

	next := ""
	if len(ids) > limit {
		ids = ids[:limit]
		next = paging.EncodeCursor(ids[limit-1])
	}

	out := make([]job.Details, 0, len(ids))
	for _, id := range ids {
		d, err := s.GetDetails(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		out = append(out, *d)
	}
	return out, next, nil
}

// SetState enables or disables a job.
func (s *Store) SetState(ctx context.Context, id string, state job.State) error {
	if state != job.StateEnabled && state != job.StateDisabled {
		return fmt.Errorf("invalid job state %q", state)
	}
	return s.update(ctx, id, map[string]any{
		fieldState:   string(state),
		fieldUpdated: s.now().UTC().Format(time.RFC3339Nano),
	})
}

// SetValidationState records a validation verdict.
func (s *Store) SetValidationState(ctx context.Context, id string, state job.ValidationState, reason string) error {
	return s.update(ctx, id, map[string]any{
		fieldValidationState:  string(state),
		fieldValidationReason: reason,
	})
}

func (s *Store) update(ctx context.Context, id string, fields map[string]any) error {
	key := jobKey(id)
	err := s.rc.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return err
}

func detailsFields(d *job.Details) map[string]any {
	return map[string]any{
		fieldID:               d.ID,
		fieldName:             d.Name,
		fieldSchedule:         d.Schedule,
		fieldUpdated:          d.Updated.Format(time.RFC3339Nano),
		fieldState:            string(d.State),
		fieldValidationState:  string(d.ValidationState),
		fieldValidationReason: d.ValidationReason,
	}
}

func parseDetails(fields map[string]string) (*job.Details, error) {
	d := &job.Details{
		ID:               fields[fieldID],
		Name:             fields[fieldName],
		Schedule:         fields[fieldSchedule],
		State:            job.State(fields[fieldState]),
		ValidationState:  job.ValidationState(fields[fieldValidationState]),
		ValidationReason: fields[fieldValidationReason],
	}
	if v := fields[fieldUpdated]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid updated time %s: %w", strconv.Quote(v), err)
		}
		d.Updated = t
	}
	return d, nil
}
