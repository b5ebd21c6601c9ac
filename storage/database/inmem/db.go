package inmemdb

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/trezcool/examportal/core/certificate"
	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/ledger"
)

// Seeded certificate templates. The initial migration inserts the same rows.
var (
	DefaultTemplate = certificate.Template{ID: "6f1c1d0e-3b1a-4c55-9a3c-1f0d3b0f7a01", Name: "Classic", IsDefault: true}
	ModernTemplate  = certificate.Template{ID: "6f1c1d0e-3b1a-4c55-9a3c-1f0d3b0f7a02", Name: "Modern"}
)

type (
	// DB is an in-memory store. Writers are serialized; a transaction holds the writer lock for
	// its whole duration and restores a snapshot of every table when it fails.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		seq  uint64
		t    tables
	}

	tables struct {
		order        map[string]uint64 // insertion order of every row, by id
		exams        map[string]exam.Exam
		questions    map[string]exam.Question // without options
		options      map[string]exam.Option
		templates    map[string]certificate.Template
		purchases    map[string]ledger.Purchase
		payments     map[string]ledger.ProcessedPayment
		enrollments  map[string]enrollment.Enrollment
		attempts     map[string]enrollment.Attempt // by attemptKey
		certificates map[string]certificate.Certificate
	}

	txKey struct{}
)

func Open() *DB {
	db := &DB{
		t: tables{
			order:        make(map[string]uint64),
			exams:        make(map[string]exam.Exam),
			questions:    make(map[string]exam.Question),
			options:      make(map[string]exam.Option),
			templates:    make(map[string]certificate.Template),
			purchases:    make(map[string]ledger.Purchase),
			payments:     make(map[string]ledger.ProcessedPayment),
			enrollments:  make(map[string]enrollment.Enrollment),
			attempts:     make(map[string]enrollment.Attempt),
			certificates: make(map[string]certificate.Certificate),
		},
	}
	for _, tmpl := range []certificate.Template{DefaultTemplate, ModernTemplate} {
		db.t.templates[tmpl.ID] = tmpl
		db.t.order[tmpl.ID] = db.nextSeq()
	}
	return db
}

func (db *DB) nextSeq() uint64 {
	return atomic.AddUint64(&db.seq, 1)
}

// newID returns a fresh id and records its insertion order. Callers hold the write lock.
func (db *DB) newID() string {
	id := uuid.NewString()
	db.t.order[id] = db.nextSeq()
	return id
}

// write locks the tables for writing. Outside a transaction it also waits for running transactions.
func (db *DB) write(ctx context.Context) (unlock func()) {
	if inTx(ctx) {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.txMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.txMu.Unlock()
	}
}

func (db *DB) read() (unlock func()) {
	db.mu.RLock()
	return db.mu.RUnlock
}

// sortByOrder sorts ids by insertion order.
func (db *DB) sortByOrder(ids []string, desc bool) {
	sort.Slice(ids, func(i, j int) bool {
		if desc {
			return db.t.order[ids[i]] > db.t.order[ids[j]]
		}
		return db.t.order[ids[i]] < db.t.order[ids[j]]
	})
}

func (t tables) clone() tables {
	c := tables{
		order:        make(map[string]uint64, len(t.order)),
		exams:        make(map[string]exam.Exam, len(t.exams)),
		questions:    make(map[string]exam.Question, len(t.questions)),
		options:      make(map[string]exam.Option, len(t.options)),
		templates:    make(map[string]certificate.Template, len(t.templates)),
		purchases:    make(map[string]ledger.Purchase, len(t.purchases)),
		payments:     make(map[string]ledger.ProcessedPayment, len(t.payments)),
		enrollments:  make(map[string]enrollment.Enrollment, len(t.enrollments)),
		attempts:     make(map[string]enrollment.Attempt, len(t.attempts)),
		certificates: make(map[string]certificate.Certificate, len(t.certificates)),
	}
	for k, v := range t.order {
		c.order[k] = v
	}
	for k, v := range t.exams {
		c.exams[k] = v
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.options {
		c.options[k] = v
	}
	for k, v := range t.templates {
		c.templates[k] = v
	}
	for k, v := range t.purchases {
		c.purchases[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	for k, v := range t.certificates {
		c.certificates[k] = v
	}
	return c
}
