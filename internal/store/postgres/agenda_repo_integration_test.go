package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

func TestPostgresIntegration_BookingLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	coach, client, clientUser := seedCoachAndClient(t, ctx, repo)

	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	err := repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		_, err := tx.CreateRule(ctx, domain.AvailabilityRule{
			CoachID:     coach.ID,
			Weekday:     3,
			StartTime:   domain.MustTimeOfDay("09:00"),
			EndTime:     domain.MustTimeOfDay("11:00"),
			SlotMinutes: 30,
		})
		return err
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rules, err := repo.ListRules(ctx, coach.ID, 3, day)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 1 || rules[0].StartTime.String() != "09:00:00" || rules[0].EndTime.String() != "11:00:00" {
		t.Fatalf("rules = %+v", rules)
	}

	start := time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC)
	var created domain.Booking
	err = repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		if _, err := tx.FindOverlappingBooking(ctx, coach.ID, domain.NewInterval(start, time.Hour)); !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("FindOverlappingBooking err = %v, want ErrNotFound", err)
		}
		b, err := tx.CreateBooking(ctx, domain.Booking{
			CoachID:         coach.ID,
			ClientID:        client.ID,
			StartAt:         start,
			EndAt:           start.Add(time.Hour),
			Status:          domain.BookingStatusConfirmed,
			CreatedByUserID: &clientUser.ID,
		})
		created = b
		return err
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected id to be assigned")
	}

	err = repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		_, err := tx.CreateBooking(ctx, domain.Booking{
			CoachID:  coach.ID,
			ClientID: client.ID,
			StartAt:  start.Add(30 * time.Minute),
			EndAt:    start.Add(90 * time.Minute),
			Status:   domain.BookingStatusConfirmed,
		})
		return err
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("overlapping insert err = %v, want ErrConflict", err)
	}

	window := domain.DayBoundsUTC(day, time.UTC)
	roster, err := repo.ListCoachBookings(ctx, coach.ID, store.BookingFilter{Window: window})
	if err != nil {
		t.Fatalf("ListCoachBookings: %v", err)
	}
	if len(roster) != 1 || roster[0].ID != created.ID {
		t.Fatalf("roster = %+v", roster)
	}
	if roster[0].ClientName == nil || *roster[0].ClientName != "Ana" {
		t.Fatalf("client name = %v", roster[0].ClientName)
	}

	cancelledAt := time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)
	reason := "rain"
	err = repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		b, err := tx.GetBookingForUpdate(ctx, created.ID)
		if err != nil {
			return err
		}
		b.Status = domain.BookingStatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancelledByUserID = &clientUser.ID
		b.CancelReason = &reason
		_, err = tx.CancelBooking(ctx, b)
		return err
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	live, err := repo.ListLiveBookings(ctx, coach.ID, window)
	if err != nil {
		t.Fatalf("ListLiveBookings: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("live bookings after cancel = %d", len(live))
	}

	mine, err := repo.ListClientBookings(ctx, client.ID, store.BookingFilter{Window: window, IncludeCancelled: true})
	if err != nil {
		t.Fatalf("ListClientBookings: %v", err)
	}
	if len(mine) != 1 || mine[0].Status != domain.BookingStatusCancelled || mine[0].CancelledAt == nil || !mine[0].CancelledAt.Equal(cancelledAt) {
		t.Fatalf("client bookings = %+v", mine)
	}

	// The slot is free again once the first booking is cancelled.
	err = repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		_, err := tx.CreateBooking(ctx, domain.Booking{
			CoachID:  coach.ID,
			ClientID: client.ID,
			StartAt:  start,
			EndAt:    start.Add(time.Hour),
			Status:   domain.BookingStatusConfirmed,
		})
		return err
	})
	if err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestPostgresIntegration_ServicesAndExceptions(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coach, _, _ := seedCoachAndClient(t, ctx, repo)

	var first, second domain.Service
	err := repo.InTransaction(ctx, func(ctx context.Context, tx store.AgendaTx) error {
		var err error
		first, err = tx.UpsertService(ctx, domain.Service{Name: "Private lesson", DurationMinutes: 60, Active: true})
		if err != nil {
			return err
		}
		second, err = tx.UpsertService(ctx, domain.Service{Name: "Private lesson", DurationMinutes: 90, Active: false})
		return err
	})
	if err != nil {
		t.Fatalf("UpsertService: %v", err)
	}
	if first.ID != second.ID || second.DurationMinutes != 90 || second.Active {
		t.Fatalf("upsert did not update in place: first=%+v second=%+v", first, second)
	}

	active, err := repo.ListServices(ctx, true)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active services = %+v", active)
	}

	start := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	err = repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		if _, err := tx.CreateException(ctx, domain.AvailabilityException{
			CoachID: coach.ID,
			Kind:    domain.ExceptionKindBlocked,
			StartAt: start,
			EndAt:   start.Add(30 * time.Minute),
		}); err != nil {
			return err
		}
		ex, err := tx.FindOverlappingException(ctx, coach.ID, domain.ExceptionKindBlocked, domain.NewInterval(start.Add(-30*time.Minute), time.Hour))
		if err != nil {
			return err
		}
		if ex.Kind != domain.ExceptionKindBlocked {
			return fmt.Errorf("kind = %s", ex.Kind)
		}
		if _, err := tx.FindOverlappingException(ctx, coach.ID, domain.ExceptionKindExtra, domain.NewInterval(start, time.Hour)); !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("extra lookup err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("exceptions: %v", err)
	}

	coaches, err := repo.ListCoaches(ctx, true)
	if err != nil {
		t.Fatalf("ListCoaches: %v", err)
	}
	if len(coaches) != 1 || coaches[0].ID != coach.ID || coaches[0].FullName == nil || *coaches[0].FullName != "Carla" {
		t.Fatalf("coaches = %+v", coaches)
	}
}

func seedCoachAndClient(t *testing.T, ctx context.Context, repo *AgendaRepo) (domain.Coach, domain.Client, domain.AppUser) {
	t.Helper()

	coachName, clientName := "Carla", "Ana"
	var coach domain.Coach
	var client domain.Client
	var clientUser domain.AppUser
	err := repo.InTransaction(ctx, func(ctx context.Context, tx store.AgendaTx) error {
		coachUser, err := tx.CreateUser(ctx, domain.AppUser{ExternalID: "tg:coach", Role: domain.RoleCoach, Status: domain.UserStatusActive, FullName: &coachName})
		if err != nil {
			return err
		}
		coach = domain.Coach{UserID: coachUser.ID, Timezone: "Europe/Madrid", DefaultLessonMinutes: 60}
		if _, err := tx.(agendaTx).tx.NewInsert().Model(&coach).Exec(ctx); err != nil {
			return err
		}
		clientUser, err = tx.CreateUser(ctx, domain.AppUser{ExternalID: "tg:client", Role: domain.RoleClient, Status: domain.UserStatusActive, FullName: &clientName})
		if err != nil {
			return err
		}
		client, err = tx.CreateClient(ctx, domain.Client{UserID: clientUser.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := repo.GetUserByExternalID(ctx, "tg:client"); err != nil {
		t.Fatalf("GetUserByExternalID: %v", err)
	}
	if _, err := repo.GetUserByExternalID(ctx, "tg:nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user err = %v, want ErrNotFound", err)
	}
	return coach, client, clientUser
}

// openTestRepo migrates a throwaway schema and returns a repository whose
// connections use it as search_path.
func openTestRepo(t *testing.T) *AgendaRepo {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("AGENDA_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set")
	}

	admin, err := Open(context.Background(), Options{DatabaseURL: databaseURL, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(admin)
	})

	schema := "agenda_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = admin.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		return applyMigrations(ctx, tx)
	})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := Open(ctx, Options{DatabaseURL: withSearchPath(databaseURL, schema+",public"), MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open schema: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})
	return NewAgendaRepo(db)
}

func withSearchPath(databaseURL, searchPath string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Scheme != "" {
		q := u.Query()
		q.Set("search_path", searchPath)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return databaseURL + " search_path=" + searchPath
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	const upMarker, downMarker = "-- +goose Up", "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")
	if downIdx := strings.Index(afterUp, downMarker); downIdx >= 0 {
		afterUp = afterUp[:downIdx]
	}
	return strings.TrimSpace(afterUp), nil
}

// normalizeExtensionStatement pins btree_gist to public so that dropping the
// test schema leaves the extension in place for other runs.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") || !strings.Contains(upper, "BTREE_GIST") || strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
