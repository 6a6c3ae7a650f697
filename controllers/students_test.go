package controllers

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"campus-ministry-api/config"
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

// serveScoped runs one request through a handler with the scope already
// resolved, the way ScopeMiddleware would leave it.
func serveScoped(t *testing.T, db *gorm.DB, scope rls.UserScope, method, path, body string, register func(*gin.Engine)) *httptest.ResponseRecorder {
	t.Helper()
	prev := config.DB
	config.DB = db
	t.Cleanup(func() { config.DB = prev })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", scope.UserID)
		c.Set("email", "leader@example.org")
		c.Set("userScope", scope)
	})
	register(router)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func studentRow(id int64, smallGroupID driver.Value) (columns []string, row []driver.Value) {
	columns = []string{
		"student_id", "first_name", "last_name", "gender",
		"university_id", "small_group_id", "region_id", "status",
	}
	row = []driver.Value{
		id, "Aroon", "Boon", "male", int64(42), smallGroupID, int64(7), "active",
	}
	return columns, row
}

// A row outside the caller's scope and a row that does not exist must be
// indistinguishable from the response alone.
func TestGetStudentForeignRowMatchesMissingRow(t *testing.T) {
	scope := rls.SmallGroupScope(5, 7, 42, 99)

	columns, row := studentRow(21, int64(98)) // sibling group
	foreignSteps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `students` WHERE student_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `small_groups`"),
			columns: []string{"small_group_id"},
			rows:    [][]driver.Value{},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `universities`"),
			columns: []string{"university_id"},
			rows:    [][]driver.Value{},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, foreignSteps)
	defer cleanup()

	foreign := serveScoped(t, db, scope, http.MethodGet, "/students/21", "", func(r *gin.Engine) {
		r.GET("/students/:id", GetStudent)
	})
	state.verifyComplete(t)

	missingSteps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `students` WHERE student_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{},
		},
	}
	db2, state2, cleanup2 := newScriptedGormDB(t, missingSteps)
	defer cleanup2()

	missing := serveScoped(t, db2, scope, http.MethodGet, "/students/404", "", func(r *gin.Engine) {
		r.GET("/students/:id", GetStudent)
	})
	state2.verifyComplete(t)

	if foreign.Code != http.StatusNotFound {
		t.Errorf("foreign row: status %d, want 404", foreign.Code)
	}
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing row: status %d, want 404", missing.Code)
	}
	if !bytes.Equal(foreign.Body.Bytes(), missing.Body.Bytes()) {
		t.Errorf("bodies differ: foreign %q vs missing %q", foreign.Body.String(), missing.Body.String())
	}
}

// The stored region always comes from the university; a caller-supplied
// region_id is ignored, not rejected.
func TestCreateStudentDerivesRegionFromUniversity(t *testing.T) {
	scope := rls.RegionScope(1, 7)

	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT university_id, region_id FROM `universities` WHERE university_id = \\? AND delete_at IS NULL"),
			columns: []string{"university_id", "region_id"},
			rows:    [][]driver.Value{{int64(42), int64(7)}},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO `students`"),
			result:  scriptedResult{lastInsertID: 11, rowsAffected: 1},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	body := `{"first_name":"Aroon","last_name":"Boon","university_id":42,"region_id":999}`
	w := serveScoped(t, db, scope, http.MethodPost, "/students", body, func(r *gin.Engine) {
		r.POST("/students", CreateStudent)
	})
	state.verifyComplete(t)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"region_id":7`) {
		t.Errorf("expected derived region 7 in %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), `"region_id":999`) {
		t.Errorf("caller-supplied region leaked into %s", w.Body.String())
	}
}

// An update moving the student to a university the scope cannot see is a
// scope violation even though the current row is accessible.
func TestUpdateStudentForeignUniversityDenied(t *testing.T) {
	scope := rls.UniversityScope(5, 7, 42)

	columns, row := studentRow(21, nil)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `students` WHERE student_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	w := serveScoped(t, db, scope, http.MethodPut, "/students/21", `{"university_id":43}`, func(r *gin.Engine) {
		r.PUT("/students/:id", UpdateStudent)
	})
	state.verifyComplete(t)

	if w.Code != http.StatusForbidden {
		t.Errorf("status %d, want 403, body %s", w.Code, w.Body.String())
	}
}

// The capability gate answers before any row is touched.
func TestGetStudentsGraduateTrackDenied(t *testing.T) {
	db, state, cleanup := newScriptedGormDB(t, nil)
	defer cleanup()
	defer state.verifyComplete(t)

	w := serveScoped(t, db, rls.GraduateGroupScope(5, 7, 13), http.MethodGet, "/students", "", func(r *gin.Engine) {
		r.GET("/students", GetStudents)
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("status %d, want 403, body %s", w.Code, w.Body.String())
	}
}
