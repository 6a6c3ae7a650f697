package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"campus-ministry-api/models"
	"campus-ministry-api/rls"
)

type stepKind int

const (
	kindQuery stepKind = iota
	kindExec
)

type queryStep struct {
	kind    stepKind
	pattern *regexp.Regexp
	args    []driver.Value // nil skips argument checking
	columns []string
	rows    [][]driver.Value
	err     error
	result  driver.Result
}

type scriptedDB struct {
	mu    sync.Mutex
	steps []*queryStep
}

func (db *scriptedDB) next(kind stepKind, query string, args []driver.NamedValue) (*queryStep, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	step := db.steps[0]
	if step.kind != kind {
		return nil, fmt.Errorf("unexpected kind for query %s: got %v want %v", query, kind, step.kind)
	}
	if !step.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	if step.args != nil {
		if len(step.args) != len(args) {
			return nil, fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(step.args))
		}
		for i := range args {
			if args[i].Value != step.args[i] {
				return nil, fmt.Errorf("unexpected arg %d for %s: got %v want %v", i, query, args[i].Value, step.args[i])
			}
		}
	}
	db.steps = db.steps[1:]
	return step, nil
}

func (db *scriptedDB) verifyComplete(t *testing.T) {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) != 0 {
		t.Errorf("unmet expectations: %d", len(db.steps))
	}
}

type scriptedDriver struct {
	db *scriptedDB
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{db: d.db}, nil
}

type scriptedConn struct {
	db *scriptedDB
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *scriptedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.db.next(kindQuery, query, args)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	return &scriptedRows{columns: step.columns, rows: step.rows}, nil
}

func (c *scriptedConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return c.QueryContext(context.Background(), query, named)
}

func (c *scriptedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	step, err := c.db.next(kindExec, query, args)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	if step.result != nil {
		return step.result, nil
	}
	return scriptedResult{rowsAffected: 1}, nil
}

func (c *scriptedConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return c.ExecContext(context.Background(), query, named)
}

type scriptedResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r scriptedResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }

func (r scriptedResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	for i := range dest {
		dest[i] = nil
	}
	for i := range row {
		dest[i] = row[i]
	}
	r.idx++
	return nil
}

func newScriptedGormDB(t *testing.T, steps []*queryStep) (*gorm.DB, *scriptedDB, func()) {
	t.Helper()
	state := &scriptedDB{steps: steps}
	driverName := fmt.Sprintf("scripted_%s_%d", t.Name(), time.Now().UnixNano())
	sql.Register(driverName, &scriptedDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		t.Fatalf("failed to open sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to create gorm db: %v", err)
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}
	return gormDB, state, cleanup
}

/* ==========================
   Routing overlay
   ========================== */

func buildListSQL(t *testing.T, db *gorm.DB, scope rls.UserScope, explicitUserID *uint) (string, []interface{}) {
	t.Helper()
	q := db.Session(&gorm.Session{DryRun: true}).Model(&models.Notification{})
	q, err := ScopeNotificationQuery(q, scope, explicitUserID)
	if err != nil {
		t.Fatalf("ScopeNotificationQuery: %v", err)
	}
	stmt := q.Find(&[]models.Notification{}).Statement
	return stmt.SQL.String(), stmt.Vars
}

func TestScopeNotificationQuerySmallGroupNarrowsToAttendanceMiss(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	sqlText, vars := buildListSQL(t, db, rls.SmallGroupScope(5, 7, 42, 99), nil)
	if !strings.Contains(sqlText, "small_group_id = ?") {
		t.Errorf("missing hierarchy filter in %q", sqlText)
	}
	if !strings.Contains(sqlText, "event_type = ?") {
		t.Errorf("missing event type overlay in %q", sqlText)
	}
	found := false
	for _, v := range vars {
		if v == models.EventAttendanceMiss {
			found = true
		}
	}
	if !found {
		t.Errorf("expected attendance_miss bound in %v", vars)
	}
}

func TestScopeNotificationQueryUniversitySeesAcknowledgmentsOnly(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	sqlText, vars := buildListSQL(t, db, rls.UniversityScope(5, 7, 42), nil)
	if !strings.Contains(sqlText, "university_id = ?") {
		t.Errorf("missing hierarchy filter in %q", sqlText)
	}
	found := false
	for _, v := range vars {
		if v == models.EventUniversityAck {
			found = true
		}
	}
	if !found {
		t.Errorf("expected university_acknowledgment bound in %v", vars)
	}
}

func TestScopeNotificationQueryUnrestrictedHasNoOverlay(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	sqlText, _ := buildListSQL(t, db, rls.National(1), nil)
	if strings.Contains(sqlText, "event_type") {
		t.Errorf("national scope must not narrow by event type: %q", sqlText)
	}
	if strings.Contains(sqlText, "1 = 0") {
		t.Errorf("national scope must not be pinned to zero rows: %q", sqlText)
	}
}

func TestScopeNotificationQueryGraduateFallsBackToOwnRows(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	// Notifications carry no graduate_group_id pin, so the hierarchy filter
	// zeroes out and only the caller's own rows remain reachable.
	sqlText, vars := buildListSQL(t, db, rls.GraduateGroupScope(5, 7, 13), nil)
	if !strings.Contains(sqlText, "1 = 0") {
		t.Errorf("expected fail-closed hierarchy filter in %q", sqlText)
	}
	if !strings.Contains(sqlText, "user_id = ?") {
		t.Errorf("expected own-user fallback in %q", sqlText)
	}
	_ = vars
}

func TestScopeNotificationQueryForeignRecipientParam(t *testing.T) {
	foreign := uint(77)
	if _, err := ScopeNotificationQuery(nil, rls.RegionScope(5, 7), &foreign); !errors.Is(err, rls.ErrScopeViolation) {
		t.Errorf("got %v, want ErrScopeViolation", err)
	}

	// A caller naming themselves is just a redundant narrowing.
	own := uint(5)
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)
	q := db.Session(&gorm.Session{DryRun: true}).Model(&models.Notification{})
	if _, err := ScopeNotificationQuery(q, rls.RegionScope(5, 7), &own); err != nil {
		t.Errorf("own user id: unexpected error %v", err)
	}
}

/* ==========================
   Read state machine
   ========================== */

func attendanceMissRow(id, userID int64) (columns []string, row []driver.Value) {
	meta := `{"small_group":"Alpha","leader":"Dana","absent_members":["a","b"],"total_absent":2,"date":"2026-08-30"}`
	columns = []string{
		"notification_id", "user_id", "title", "message", "type", "event_type",
		"small_group_id", "university_id", "region_id", "status", "metadata", "create_at",
	}
	row = []driver.Value{
		id, userID, "Attendance miss in Alpha", "2 member(s) absent", "in_app",
		"attendance_miss", int64(99), int64(42), int64(7), "pending", meta, time.Now(),
	}
	return columns, row
}

func TestMarkNotificationReadProducesAcknowledgment(t *testing.T) {
	columns, row := attendanceMissRow(301, 5)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notifications` WHERE notification_id = \\? AND user_id = \\?"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `notifications` SET .*read_at.*status.* WHERE notification_id = \\?"),
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM `notifications` WHERE origin_notification_id = \\? AND event_type = \\?"),
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(0)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `user_roles` WHERE scope = \\? AND university_id = \\? AND delete_at IS NULL"),
			columns: []string{"user_role_id", "user_id", "scope", "university_id"},
			rows:    [][]driver.Value{{int64(8), int64(20), "university", int64(42)}},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `notifications`"),
			result:  scriptedResult{lastInsertID: 501, rowsAffected: 1},
		},
		{
			// in_app delivery flips the fresh acknowledgment to sent.
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `notifications` SET `status`=\\? WHERE notification_id = \\? AND status = \\?"),
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	n, err := MarkNotificationRead(context.Background(), db, rls.SmallGroupScope(5, 7, 42, 99), 301)
	if err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if n.ReadAt == nil {
		t.Error("expected read_at to be set")
	}
	if n.Status != models.NotificationStatusMarked {
		t.Errorf("status = %q, want marked", n.Status)
	}
	state.verifyComplete(t)
}

func TestMarkNotificationReadAcknowledgmentIsIdempotent(t *testing.T) {
	columns, row := attendanceMissRow(301, 5)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notifications` WHERE notification_id = \\? AND user_id = \\?"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `notifications` SET .*read_at.*status.* WHERE notification_id = \\?"),
		},
		{
			// An acknowledgment already exists; no insert follows.
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM `notifications` WHERE origin_notification_id = \\? AND event_type = \\?"),
			columns: []string{"count(*)"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	if _, err := MarkNotificationRead(context.Background(), db, rls.SmallGroupScope(5, 7, 42, 99), 301); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	state.verifyComplete(t)
}

func TestMarkNotificationReadOutsideSmallGroupOnlySetsReadAt(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notifications` WHERE notification_id = \\? AND user_id = \\?"),
			columns: []string{"notification_id", "user_id", "title", "type", "event_type", "university_id", "status"},
			rows: [][]driver.Value{{
				int64(501), int64(20), "Attendance miss acknowledged", "in_app",
				"university_acknowledgment", int64(42), "sent",
			}},
		},
		{
			// Only read_at changes; no status transition, no downstream insert.
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `notifications` SET `read_at`=\\? WHERE notification_id = \\?"),
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	n, err := MarkNotificationRead(context.Background(), db, rls.UniversityScope(20, 7, 42), 501)
	if err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if n.Status != models.NotificationStatusSent {
		t.Errorf("status = %q, want sent (unchanged)", n.Status)
	}
	state.verifyComplete(t)
}

func TestMarkNotificationReadUnknownRow(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notifications` WHERE notification_id = \\? AND user_id = \\?"),
			columns: []string{"notification_id"},
			rows:    [][]driver.Value{},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	_, err := MarkNotificationRead(context.Background(), db, rls.SmallGroupScope(5, 7, 42, 99), 999)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("got %v, want ErrRecordNotFound", err)
	}
	state.verifyComplete(t)
}

/* ==========================
   Attendance miss producer
   ========================== */

func testGroup() models.SmallGroup {
	leader := uint(5)
	return models.SmallGroup{
		SmallGroupID: 99,
		Name:         "Alpha",
		UniversityID: 42,
		RegionID:     7,
		LeaderUserID: &leader,
	}
}

func TestNotifyAttendanceMissPinsOriginatingScope(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notification_preferences` WHERE user_id = \\?"),
			columns: []string{"user_id", "attendance_alerts", "event_reminders", "in_app_enabled"},
			rows:    [][]driver.Value{{int64(5), int64(1), int64(1), int64(1)}},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT user_id, name, email FROM `users` WHERE user_id = \\? AND delete_at IS NULL"),
			columns: []string{"user_id", "name", "email"},
			rows:    [][]driver.Value{{int64(5), "Dana", "dana@example.org"}},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `notifications`"),
			result:  scriptedResult{lastInsertID: 301, rowsAffected: 1},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `notifications` SET `status`=\\? WHERE notification_id = \\? AND status = \\?"),
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	n, err := NotifyAttendanceMiss(context.Background(), db, testGroup(), []string{"a", "b"}, date)
	if err != nil {
		t.Fatalf("NotifyAttendanceMiss: %v", err)
	}
	if n.UserID != 5 {
		t.Errorf("recipient = %d, want the group leader", n.UserID)
	}
	if n.EventType != models.EventAttendanceMiss {
		t.Errorf("event type = %q", n.EventType)
	}
	if n.Type != models.NotificationTypeInApp {
		t.Errorf("type = %q, want in_app per preferences", n.Type)
	}
	if n.SmallGroupID == nil || *n.SmallGroupID != 99 ||
		n.UniversityID == nil || *n.UniversityID != 42 ||
		n.RegionID == nil || *n.RegionID != 7 {
		t.Errorf("pins must carry the originating group position: %+v", n)
	}
	if n.Metadata == nil || !strings.Contains(*n.Metadata, `"total_absent":2`) {
		t.Errorf("metadata missing absence payload: %v", n.Metadata)
	}
	state.verifyComplete(t)
}

func TestNotifyAttendanceMissRespectsOptOut(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notification_preferences` WHERE user_id = \\?"),
			columns: []string{"user_id", "attendance_alerts", "event_reminders", "in_app_enabled"},
			rows:    [][]driver.Value{{int64(5), int64(0), int64(1), int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	n, err := NotifyAttendanceMiss(context.Background(), db, testGroup(), []string{"a"}, time.Now())
	if err != nil {
		t.Fatalf("NotifyAttendanceMiss: %v", err)
	}
	if n != nil {
		t.Errorf("expected suppression, got %+v", n)
	}
	state.verifyComplete(t)
}

func TestNotifyAttendanceMissLeaderlessGroup(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	group := testGroup()
	group.LeaderUserID = nil
	if _, err := NotifyAttendanceMiss(context.Background(), db, group, []string{"a"}, time.Now()); err == nil {
		t.Error("expected an error for a leaderless group")
	}
}

/* ==========================
   Preferences
   ========================== */

func TestLoadPreferencesCreatesDefaults(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notification_preferences` WHERE user_id = \\?"),
			columns: []string{"user_id"},
			rows:    [][]driver.Value{},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `notification_preferences`"),
			result:  scriptedResult{rowsAffected: 1},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	prefs, err := LoadPreferences(db, 5)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if !prefs.AttendanceAlerts || !prefs.EventReminders || !prefs.InAppEnabled {
		t.Errorf("defaults must enable every channel: %+v", prefs)
	}
	state.verifyComplete(t)
}

func TestLoadPreferencesReturnsExistingRow(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `notification_preferences` WHERE user_id = \\?"),
			columns: []string{"user_id", "attendance_alerts", "event_reminders", "in_app_enabled"},
			rows:    [][]driver.Value{{int64(5), int64(0), int64(1), int64(0)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	prefs, err := LoadPreferences(db, 5)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if prefs.AttendanceAlerts || !prefs.EventReminders || prefs.InAppEnabled {
		t.Errorf("unexpected preferences: %+v", prefs)
	}
	state.verifyComplete(t)
}
