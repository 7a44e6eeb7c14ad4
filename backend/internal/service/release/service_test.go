package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"iqupdate/backend/internal/domain/servicepack"
	"iqupdate/backend/internal/domain/user"
	"iqupdate/backend/internal/repository"
	"iqupdate/backend/internal/service/access"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testActor struct {
	authenticated bool
	active        bool
	roles         []string
}

func (a testActor) IsAuthenticated() bool { return a.authenticated }
func (a testActor) IsActive() bool        { return a.active }
func (a testActor) HasRole(name string) bool {
	for _, r := range a.roles {
		if r == name {
			return true
		}
	}
	return false
}

var releaser = testActor{authenticated: true, active: true, roles: []string{user.RoleReleaseUser}}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:release_%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&servicepack.ServicePack{}, &servicepack.Detail{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewService(repository.NewServicePackRepository(db), nil), db
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestDeriveVersionNumber(t *testing.T) {
	cases := map[string]int{
		"Version 7.0 0170": 170,
		"Version 7.0 0161": 161,
		"7":                7,
		"Build  42 ":       42,
	}
	for input, want := range cases {
		got, err := DeriveVersionNumber(input)
		if err != nil {
			t.Fatalf("DeriveVersionNumber(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("DeriveVersionNumber(%q) = %d, want %d", input, got, want)
		}
	}

	for _, input := range []string{"", "   ", "Version X", "Version 7.0"} {
		_, err := DeriveVersionNumber(input)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "description" {
			t.Fatalf("DeriveVersionNumber(%q) expected description validation error, got %v", input, err)
		}
	}
}

func TestCreateDerivesVersionNumber(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	pack, err := svc.Create(ctx, releaser, Input{
		Description: "Version 7.0 0170",
		ReleaseDate: "2018-12-31",
		Details: []DetailInput{
			{Language: "de", Contents: "<p>Deutsch</p>"},
			{Language: "EN", Contents: "<p>English</p>"},
		},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if pack.VersionNumber != 170 {
		t.Fatalf("expected version 170, got %d", pack.VersionNumber)
	}
	if pack.ReleaseDate != "2018-12-31" {
		t.Fatalf("unexpected release date %q", pack.ReleaseDate)
	}
	if len(pack.Details) != 2 || pack.Details[1].Language != servicepack.LanguageEN {
		t.Fatalf("unexpected details: %+v", pack.Details)
	}
}

func TestCreateRejectsInvalidInputWithoutPersisting(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input Input
		field string
	}{
		{"non numeric tail", Input{Description: "Version X", ReleaseDate: "2018-12-31"}, "description"},
		{"too long", Input{Description: "Release Version 7.0 170", ReleaseDate: "2018-12-31"}, "description"},
		{"bad date", Input{Description: "Version 7.0 0170", ReleaseDate: "31.12.2018"}, "release_date"},
		{"bad language", Input{Description: "Version 7.0 0170", ReleaseDate: "2018-12-31", Details: []DetailInput{{Language: "fr", Contents: "x"}}}, "details[0].language"},
		{"empty contents", Input{Description: "Version 7.0 0170", ReleaseDate: "2018-12-31", Details: []DetailInput{{Language: "de", Contents: "  "}}}, "details[0].contents"},
	}
	for _, tc := range cases {
		_, err := svc.Create(ctx, releaser, tc.input)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, verr.Field)
		}
	}

	if n := countRows(t, db, &servicepack.ServicePack{}); n != 0 {
		t.Fatalf("expected nothing persisted, found %d packs", n)
	}
}

func TestCreateDuplicateVersion(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, releaser, Input{Description: "Version 7.0 0170", ReleaseDate: "2018-12-31"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, releaser, Input{
		Description: "Build 170",
		ReleaseDate: "2019-01-02",
		Details:     []DetailInput{{Language: "de", Contents: "<p>x</p>"}},
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if n := countRows(t, db, &servicepack.Detail{}); n != 0 {
		t.Fatalf("expected detail insert rolled back, found %d", n)
	}
}

func TestUpdateRederivesVersionAndReplacesDetails(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, releaser, Input{
		Description: "Version 7.0 0161",
		ReleaseDate: "2018-11-30",
		Details: []DetailInput{
			{Language: "de", Contents: "<p>alt</p>"},
			{Language: "en", Contents: "<p>old</p>"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, releaser, created.ID, Input{
		Description:    "Version 7.0 0162",
		ReleaseDate:    "2018-12-01",
		ReplaceDetails: true,
		Details: []DetailInput{
			{ID: created.Details[0].ID, Language: "de", Contents: "<p>neu</p>"},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.VersionNumber != 162 || updated.ReleaseDate != "2018-12-01" {
		t.Fatalf("unexpected pack after update: %+v", updated)
	}
	if len(updated.Details) != 1 || updated.Details[0].Contents != "<p>neu</p>" {
		t.Fatalf("unexpected details after update: %+v", updated.Details)
	}

	kept, err := svc.Update(ctx, releaser, created.ID, Input{Description: "Version 7.0 0163", ReleaseDate: "2018-12-01"})
	if err != nil {
		t.Fatalf("update without details: %v", err)
	}
	if kept.VersionNumber != 163 || len(kept.Details) != 1 {
		t.Fatalf("details should be kept when not replaced: %+v", kept)
	}
}

func TestUpdateRejectsForeignDetail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, releaser, Input{Description: "Version 1", ReleaseDate: "2018-01-01", Details: []DetailInput{{Language: "de", Contents: "a"}}})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := svc.Create(ctx, releaser, Input{Description: "Version 2", ReleaseDate: "2018-02-01"})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	_, err = svc.Update(ctx, releaser, b.ID, Input{
		Description:    "Version 2",
		ReleaseDate:    "2018-02-01",
		ReplaceDetails: true,
		Details:        []DetailInput{{ID: a.Details[0].ID, Language: "de", Contents: "stolen"}},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "details[0].id" {
		t.Fatalf("expected details[0].id validation error, got %v", err)
	}

	if _, err := svc.Update(ctx, releaser, 999, Input{Description: "Version 3", ReleaseDate: "2018-03-01"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascadesDetails(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	pack, err := svc.Create(ctx, releaser, Input{
		Description: "Version 7.0 0161",
		ReleaseDate: "2018-11-30",
		Details: []DetailInput{
			{Language: "de", Contents: "<p>de</p>"},
			{Language: "en", Contents: "<p>en</p>"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, releaser, pack.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := countRows(t, db, &servicepack.Detail{}); n != 0 {
		t.Fatalf("expected details removed, found %d", n)
	}
	if err := svc.Delete(ctx, releaser, pack.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteDetail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	pack, err := svc.Create(ctx, releaser, Input{
		Description: "Version 5",
		ReleaseDate: "2018-05-01",
		Details:     []DetailInput{{Language: "de", Contents: "x"}, {Language: "en", Contents: "y"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.DeleteDetail(ctx, releaser, pack.ID, pack.Details[0].ID); err != nil {
		t.Fatalf("delete detail: %v", err)
	}
	if err := svc.DeleteDetail(ctx, releaser, pack.ID, pack.Details[0].ID); !errors.Is(err, ErrDetailNotFound) {
		t.Fatalf("expected ErrDetailNotFound, got %v", err)
	}
	got, err := svc.Get(ctx, releaser, pack.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Details) != 1 || got.Details[0].Language != servicepack.LanguageEN {
		t.Fatalf("unexpected remaining details: %+v", got.Details)
	}
}

func TestPolicyGatesEveryOperation(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	anonymous := testActor{}
	superuserOnly := testActor{authenticated: true, active: true, roles: []string{user.RoleSuperuser}}
	inactive := testActor{authenticated: true, active: false, roles: []string{user.RoleReleaseUser}}

	input := Input{Description: "Version 9", ReleaseDate: "2019-01-01"}
	if _, err := svc.Create(ctx, anonymous, input); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("anonymous create: expected access.ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Create(ctx, superuserOnly, input); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("superuser create: expected access.ErrForbidden, got %v", err)
	}
	if _, err := svc.List(ctx, inactive); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("inactive list: expected access.ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, nil, 1); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("nil actor delete: expected access.ErrUnauthenticated, got %v", err)
	}
	if n := countRows(t, db, &servicepack.ServicePack{}); n != 0 {
		t.Fatalf("expected no writes, found %d packs", n)
	}
}
