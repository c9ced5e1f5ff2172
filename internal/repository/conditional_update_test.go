package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type capturedStatement struct {
	sql  string
	vars []any
}

type statementLog struct {
	mu      sync.Mutex
	updates []capturedStatement
}

func (l *statementLog) last(t *testing.T) capturedStatement {
	t.Helper()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.updates) == 0 {
		t.Fatal("no UPDATE statement was built")
	}
	return l.updates[len(l.updates)-1]
}

// newDryRunDB builds postgres SQL without a server and records every UPDATE.
func newDryRunDB(t *testing.T) (*gorm.DB, *statementLog) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=donations dbname=donations sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	log := &statementLog{}
	err = db.Callback().Update().After("gorm:update").Register("test:capture_update", func(tx *gorm.DB) {
		log.mu.Lock()
		defer log.mu.Unlock()
		log.updates = append(log.updates, capturedStatement{
			sql:  tx.Statement.SQL.String(),
			vars: append([]any(nil), tx.Statement.Vars...),
		})
	})
	if err != nil {
		t.Fatalf("register callback error = %v", err)
	}
	return db, log
}

func whereClause(t *testing.T, stmt capturedStatement) string {
	t.Helper()

	_, where, ok := strings.Cut(stmt.sql, " WHERE ")
	if !ok {
		t.Fatalf("UPDATE has no WHERE clause: %s", stmt.sql)
	}
	return where
}

func hasVar(vars []any, want any) bool {
	for _, v := range vars {
		if tv, ok := v.(time.Time); ok {
			if wt, ok := want.(time.Time); ok && tv.Equal(wt) {
				return true
			}
			continue
		}
		if v == want {
			return true
		}
	}
	return false
}

func TestSettleOnlyUpdatesPendingDonations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		settle func(r *GormDonationRepo) error
		status domain.DonationStatus
	}{
		{
			name:   "completed",
			settle: func(r *GormDonationRepo) error { return r.MarkCompleted(context.Background(), "donate_1_1", 987654) },
			status: domain.DonationStatusCompleted,
		},
		{
			name:   "failed",
			settle: func(r *GormDonationRepo) error { return r.MarkFailed(context.Background(), "donate_1_1", nil) },
			status: domain.DonationStatusFailed,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db, log := newDryRunDB(t)
			_ = tc.settle(NewGormDonationRepo(db))

			stmt := log.last(t)
			if !strings.HasPrefix(stmt.sql, `UPDATE "donations"`) {
				t.Fatalf("unexpected statement: %s", stmt.sql)
			}
			where := whereClause(t, stmt)
			if !strings.Contains(where, "session_id = $") || !strings.Contains(where, "status = $") {
				t.Fatalf("WHERE = %s, want session_id and status predicates", where)
			}
			if !hasVar(stmt.vars, domain.DonationStatusPending) {
				t.Fatalf("vars = %v, want PENDING guard", stmt.vars)
			}
			if !hasVar(stmt.vars, tc.status) {
				t.Fatalf("vars = %v, want new status %s", stmt.vars, tc.status)
			}
		})
	}
}

func TestClaimDripRunGuardsOnLastRun(t *testing.T) {
	t.Parallel()

	db, log := newDryRunDB(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	claimed, err := NewGormSettingsRepo(db).ClaimDripRun(context.Background(), now, time.Hour)
	if err != nil {
		t.Fatalf("ClaimDripRun() error = %v", err)
	}
	if claimed {
		t.Fatal("a statement that touched no rows must not count as a claim")
	}

	stmt := log.last(t)
	where := whereClause(t, stmt)
	if !strings.Contains(where, "last_drip_run IS NULL OR last_drip_run <= $") {
		t.Fatalf("WHERE = %s, want last_drip_run window predicate", where)
	}
	if !hasVar(stmt.vars, now.Add(-time.Hour)) {
		t.Fatalf("vars = %v, want cutoff %s", stmt.vars, now.Add(-time.Hour))
	}
	if !hasVar(stmt.vars, now) {
		t.Fatalf("vars = %v, want new last run %s", stmt.vars, now)
	}
}

func TestAdvanceStepGuardsOnCurrentStep(t *testing.T) {
	t.Parallel()

	db, log := newDryRunDB(t)

	err := NewGormSubscriberRepo(db).AdvanceStep(context.Background(), "sub-1", domain.DripStepFirst, domain.DripStepSecond)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("AdvanceStep() error = %v, want ErrConflict when no row matches", err)
	}

	stmt := log.last(t)
	where := whereClause(t, stmt)
	if !strings.Contains(where, "id = $") || !strings.Contains(where, "drip_step = $") {
		t.Fatalf("WHERE = %s, want id and drip_step predicates", where)
	}
	if !hasVar(stmt.vars, "sub-1") || !hasVar(stmt.vars, int(domain.DripStepFirst)) || !hasVar(stmt.vars, int(domain.DripStepSecond)) {
		t.Fatalf("vars = %v, want id, from step and to step", stmt.vars)
	}
}
