// Package sampler extracts bounded row samples from targeted tables and
// feeds every non-null, non-empty cell value to the classifier.
package sampler

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"deltascan/internal/model"

	"go.uber.org/zap"
)

// DefaultSampleSize caps the rows fetched per table.
const DefaultSampleSize = 1000

// DefaultQueryTimeout bounds each sampling query.
const DefaultQueryTimeout = 30 * time.Second

// TableResult is the per-table outcome: either a scanned table with its
// violations, or a skipped table carrying the reason. A skip never aborts
// the run.
type TableResult struct {
	Schema     string
	Table      string
	Violations []model.Violation
	Skipped    bool
	SkipReason string
}

type Sampler struct {
	db           *sql.DB
	dialect      Dialect
	sampleSize   int
	queryTimeout time.Duration
	workers      int
	logger       *zap.SugaredLogger
}

// Option tunes a Sampler.
type Option func(*Sampler)

func WithSampleSize(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithWorkers sets the bounded pool size for per-table sampling. The
// default of 1 keeps the stage strictly sequential.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger, opts ...Option) *Sampler {
	s := &Sampler{
		db:           db,
		dialect:      dialect,
		sampleSize:   DefaultSampleSize,
		queryTimeout: DefaultQueryTimeout,
		workers:      1,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tableGroup is one table with all of its targeted columns, so the table
// is queried once regardless of how many columns matched.
type tableGroup struct {
	schema  string
	table   string
	columns []string
}

func groupByTable(targets model.TargetSet) []tableGroup {
	byTable := make(map[[2]string][]string)
	for _, t := range targets.Sorted() {
		key := [2]string{t.Schema, t.Table}
		byTable[key] = append(byTable[key], t.Column)
	}

	groups := make([]tableGroup, 0, len(byTable))
	for key, cols := range byTable {
		groups = append(groups, tableGroup{schema: key[0], table: key[1], columns: cols})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].schema != groups[j].schema {
			return groups[i].schema < groups[j].schema
		}
		return groups[i].table < groups[j].table
	})
	return groups
}

// Scan samples every targeted table and classifies the sampled values.
// All table results are collected before returning: suppression and
// reporting run after a full barrier, never on a stream.
func (s *Sampler) Scan(ctx context.Context, targets model.TargetSet, classifier model.Classifier) []TableResult {
	groups := groupByTable(targets)
	if len(groups) == 0 {
		return nil
	}

	jobs := make(chan tableGroup)
	out := make(chan TableResult)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				select {
				case out <- s.scanTable(ctx, g, classifier):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, g := range groups {
			select {
			case jobs <- g:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]TableResult, 0, len(groups))
	for r := range out {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Schema != results[j].Schema {
			return results[i].Schema < results[j].Schema
		}
		return results[i].Table < results[j].Table
	})
	return results
}

func (s *Sampler) scanTable(ctx context.Context, g tableGroup, classifier model.Classifier) TableResult {
	result := TableResult{Schema: g.schema, Table: g.table}

	query := s.dialect.SampleQuery(g.schema, g.table, g.columns, s.sampleSize)
	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, query)
	if err != nil {
		// Insufficient privilege or a dropped table must not abort the
		// rest of the scan.
		s.logger.Warnw("skipping table, sampling query failed",
			"schema", g.schema, "table", g.table, "error", err)
		result.Skipped = true
		result.SkipReason = err.Error()
		return result
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()
		return result
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			s.logger.Warnw("skipping row, scan failed",
				"schema", g.schema, "table", g.table, "error", err)
			continue
		}
		for i, col := range cols {
			cell, ok := stringify(values[i])
			if !ok || cell == "" {
				continue
			}
			match, found := classifier.FindFirstViolation(cell)
			if !found {
				continue
			}
			result.Violations = append(result.Violations, model.Violation{
				RuleCode: match.Code,
				Severity: match.Severity,
				Message:  match.Description,
				Target:   model.ScanTarget{Schema: g.schema, Table: g.table, Column: col},
				Sample:   cell,
			})
		}
	}
	if err := rows.Err(); err != nil {
		s.logger.Warnw("row iteration ended early",
			"schema", g.schema, "table", g.table, "error", err)
	}
	return result
}

// stringify renders a scanned cell for classification. NULLs report ok=false
// and are never classified.
func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case time.Time:
		return val.Format(time.RFC3339), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
