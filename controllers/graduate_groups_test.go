package controllers

import (
	"bytes"
	"database/sql/driver"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"campus-ministry-api/rls"
)

func graduateGroupRow(id, regionID int64) (columns []string, row []driver.Value) {
	columns = []string{"graduate_group_id", "name", "region_id"}
	row = []driver.Value{id, "Alumni North", regionID}
	return columns, row
}

func TestUpdateGraduateGroupRename(t *testing.T) {
	columns, row := graduateGroupRow(13, 7)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `graduate_small_groups` WHERE graduate_group_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `graduate_small_groups` SET"),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	w := serveScoped(t, db, rls.RegionScope(1, 7), http.MethodPut, "/graduate-groups/13", `{"name":"Alumni Northeast"}`, func(r *gin.Engine) {
		r.PUT("/graduate-groups/:id", UpdateGraduateGroup)
	})
	state.verifyComplete(t)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Alumni Northeast") {
		t.Errorf("expected renamed group in %s", w.Body.String())
	}
}

func TestUpdateGraduateGroupForeignRegionCollapsesTo404(t *testing.T) {
	columns, row := graduateGroupRow(13, 8) // another region
	foreignSteps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `graduate_small_groups` WHERE graduate_group_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
	}
	db, state, cleanup := newScriptedGormDB(t, foreignSteps)
	defer cleanup()

	foreign := serveScoped(t, db, rls.RegionScope(1, 7), http.MethodPut, "/graduate-groups/13", `{"name":"X"}`, func(r *gin.Engine) {
		r.PUT("/graduate-groups/:id", UpdateGraduateGroup)
	})
	state.verifyComplete(t)

	missingSteps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `graduate_small_groups` WHERE graduate_group_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{},
		},
	}
	db2, state2, cleanup2 := newScriptedGormDB(t, missingSteps)
	defer cleanup2()

	missing := serveScoped(t, db2, rls.RegionScope(1, 7), http.MethodPut, "/graduate-groups/404", `{"name":"X"}`, func(r *gin.Engine) {
		r.PUT("/graduate-groups/:id", UpdateGraduateGroup)
	})
	state2.verifyComplete(t)

	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("statuses %d/%d, want 404/404", foreign.Code, missing.Code)
	}
	if !bytes.Equal(foreign.Body.Bytes(), missing.Body.Bytes()) {
		t.Errorf("bodies differ: %q vs %q", foreign.Body.String(), missing.Body.String())
	}
}

func TestUpdateGraduateGroupRegionMoveClearsProvince(t *testing.T) {
	columns, row := graduateGroupRow(13, 7)
	steps := []*queryStep{
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `graduate_small_groups` WHERE graduate_group_id = \\? AND delete_at IS NULL"),
			columns: columns,
			rows:    [][]driver.Value{row},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT .* FROM `regions` WHERE region_id = \\? AND delete_at IS NULL"),
			columns: []string{"region_id", "name"},
			rows:    [][]driver.Value{{int64(8), "Northeast"}},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE `graduate_small_groups` SET"),
		},
	}
	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	w := serveScoped(t, db, rls.Superadmin(1), http.MethodPut, "/graduate-groups/13", `{"region_id":8}`, func(r *gin.Engine) {
		r.PUT("/graduate-groups/:id", UpdateGraduateGroup)
	})
	state.verifyComplete(t)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"region_id":8`) {
		t.Errorf("expected moved region in %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), `"province_id"`) {
		t.Errorf("province should have been cleared: %s", w.Body.String())
	}
}
