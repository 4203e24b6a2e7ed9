package inmemdb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
	"github.com/alphazero/academy/core/content"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/enrollment"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/payment"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/core/user"
)

// DB holds every table in memory. A single lock guards all of them so joins stay consistent.
type DB struct {
	mutex sync.RWMutex
	txMu  sync.Mutex

	users map[string]*user.User

	courses   map[string]*course.Course
	videos    map[string]*course.Video
	materials map[string]*course.Material

	passCodes map[string]*passcode.PassCode

	progress     map[string]*progress.Progress // by user_id/video_id
	completions  map[string]*progress.Completion
	certificates map[string]*progress.Certificate

	records     map[string]*revenue.Record
	paidWorks   map[string]*revenue.PaidWork
	withdrawals map[string]*revenue.Withdrawal

	enrollments map[string]*enrollment.Request
	payments    map[string]*payment.Payment

	rooms    map[string]*chat.Room
	members  map[string]map[string]*chat.Member // room_id -> user_id
	messages map[string][]chat.Message          // room_id -> chronological

	teamMembers  map[string]*content.TeamMember
	works        map[string]*content.Work
	offerings    map[string]*content.Offering
	footerLinks  map[string]*content.FooterLink
	settings     map[string]*content.Setting
	pageSections map[string]*content.PageSection // by page/section
}

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		courses:      make(map[string]*course.Course),
		videos:       make(map[string]*course.Video),
		materials:    make(map[string]*course.Material),
		passCodes:    make(map[string]*passcode.PassCode),
		progress:     make(map[string]*progress.Progress),
		completions:  make(map[string]*progress.Completion),
		certificates: make(map[string]*progress.Certificate),
		records:      make(map[string]*revenue.Record),
		paidWorks:    make(map[string]*revenue.PaidWork),
		withdrawals:  make(map[string]*revenue.Withdrawal),
		enrollments:  make(map[string]*enrollment.Request),
		payments:     make(map[string]*payment.Payment),
		rooms:        make(map[string]*chat.Room),
		members:      make(map[string]map[string]*chat.Member),
		messages:     make(map[string][]chat.Message),
		teamMembers:  make(map[string]*content.TeamMember),
		works:        make(map[string]*content.Work),
		offerings:    make(map[string]*content.Offering),
		footerLinks:  make(map[string]*content.FooterLink),
		settings:     make(map[string]*content.Setting),
		pageSections: make(map[string]*content.PageSection),
	}
}

// TxRunner serializes "transactions": fn runs alone and receives a nil executor.
// Nothing is rolled back on error.
type TxRunner struct {
	db *DB
}

var _ core.TxRunner = (*TxRunner)(nil) // interface compliance check

func NewTxRunner(db *DB) *TxRunner {
	return &TxRunner{db: db}
}

func (tx *TxRunner) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx.db.txMu.Lock()
	defer tx.db.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}

// fullName must be called with the lock held.
func (db *DB) fullName(userID string) string {
	if u, ok := db.users[userID]; ok {
		return u.FullName
	}
	return ""
}

// helpers

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// matches does a case-insensitive search of term in any of fields.
func matches(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func copyStrings(s []string) []string {
	return append([]string{}, s...)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := *t
	return &tt
}
