package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE pppoe_clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			customer_id TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			service_name TEXT NOT NULL DEFAULT 'pppoe',
			is_disabled INTEGER NOT NULL DEFAULT 0,
			ip_address TEXT,
			mac_address TEXT,
			address TEXT,
			phone_number TEXT,
			latitude TEXT,
			longitude TEXT,
			device_id INTEGER,
			odp_id INTEGER,
			package_id INTEGER,
			status TEXT NOT NULL DEFAULT 'offline',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	return db
}

func testSubscriber(username string) *Subscriber {
	return &Subscriber{
		Username:   username,
		CustomerID: "26083001",
		FullName:   "Test Customer",
		Password:   "secret",
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sub := testSubscriber("alice01")
	deviceID := int64(3)
	sub.DeviceID = &deviceID

	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sub.ID == 0 {
		t.Fatal("Create() did not populate ID")
	}
	if sub.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", sub.ServiceName, DefaultServiceName)
	}
	if sub.Status != StatusOffline {
		t.Errorf("Status = %q, want %q", sub.Status, StatusOffline)
	}

	t.Run("by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Username != "alice01" || got.CustomerID != "26083001" {
			t.Errorf("unexpected subscriber: %+v", got)
		}
		if got.DeviceID == nil || *got.DeviceID != 3 {
			t.Errorf("DeviceID = %v, want 3", got.DeviceID)
		}
	})

	t.Run("by username", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice01")
		if err != nil {
			t.Fatalf("GetByUsername() error = %v", err)
		}
		if got.ID != sub.ID {
			t.Errorf("ID = %d, want %d", got.ID, sub.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID(9999) = %v, want ErrNotFound", err)
		}
		if _, err := repo.GetByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByUsername(ghost) = %v, want ErrNotFound", err)
		}
	})
}

func TestCreateDuplicateUsername(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testSubscriber("alice01")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testSubscriber("alice01")); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create() = %v, want ErrExists", err)
	}
}

func TestUpdate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sub := testSubscriber("alice01")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		name := "Alice Smith"
		disabled := true
		if err := repo.Update(ctx, sub.ID, UpdateParams{
			FullName:   &name,
			IsDisabled: &disabled,
		}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := repo.GetByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.FullName != "Alice Smith" || !got.IsDisabled {
			t.Errorf("update not applied: %+v", got)
		}
		if got.Username != "alice01" || got.Password != "secret" {
			t.Errorf("untouched fields changed: %+v", got)
		}
	})

	t.Run("empty params is a no-op", func(t *testing.T) {
		if err := repo.Update(ctx, sub.ID, UpdateParams{}); err != nil {
			t.Errorf("Update() with no fields error = %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		name := "nobody"
		err := repo.Update(ctx, 9999, UpdateParams{FullName: &name})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(9999) = %v, want ErrNotFound", err)
		}
	})

	t.Run("rename to taken username", func(t *testing.T) {
		other := testSubscriber("bob02")
		if err := repo.Create(ctx, other); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		taken := "alice01"
		err := repo.Update(ctx, other.ID, UpdateParams{Username: &taken})
		if !errors.Is(err, ErrExists) {
			t.Errorf("Update() to taken username = %v, want ErrExists", err)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sub := testSubscriber("alice01")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateStatus(ctx, sub.ID, StatusOnline); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err := repo.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOnline {
		t.Errorf("Status = %q, want %q", got.Status, StatusOnline)
	}

	if err := repo.UpdateStatus(ctx, sub.ID, "flapping"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("UpdateStatus(invalid) = %v, want ErrInvalidStatus", err)
	}
	if err := repo.UpdateStatus(ctx, 9999, StatusIsolir); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(9999) = %v, want ErrNotFound", err)
	}
}

func TestListByDeviceAndStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	devA, devB := int64(1), int64(2)
	for _, tc := range []struct {
		username string
		device   *int64
		status   Status
	}{
		{"alice01", &devA, StatusOnline},
		{"bob02", &devA, StatusOffline},
		{"carol03", &devB, StatusOnline},
		{"dave04", nil, StatusIsolir},
	} {
		sub := testSubscriber(tc.username)
		sub.DeviceID = tc.device
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create(%s) error = %v", tc.username, err)
		}
		if err := repo.UpdateStatus(ctx, sub.ID, tc.status); err != nil {
			t.Fatalf("UpdateStatus(%s) error = %v", tc.username, err)
		}
	}

	onDevA, err := repo.ListByDevice(ctx, devA)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(onDevA) != 2 {
		t.Errorf("ListByDevice(devA) returned %d, want 2", len(onDevA))
	}

	online, err := repo.ListByStatus(ctx, StatusOnline)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(online) != 2 {
		t.Errorf("ListByStatus(online) returned %d, want 2", len(online))
	}

	count, err := repo.CountByStatus(ctx, StatusIsolir)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountByStatus(isolir) = %d, want 1", count)
	}

	total, err := repo.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll() error = %v", err)
	}
	if total != 4 {
		t.Errorf("CountAll() = %d, want 4", total)
	}
}

func TestDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	sub := testSubscriber("alice01")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, sub.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestDeleteMany(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"alice01", "bob02", "carol03"} {
		sub := testSubscriber(name)
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		ids = append(ids, sub.ID)
	}

	// One real ID twice plus a missing one; duplicates count once.
	deleted, err := repo.DeleteMany(ctx, []int64{ids[0], ids[1], 9999})
	if err != nil {
		t.Fatalf("DeleteMany() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteMany() = %d, want 2", deleted)
	}

	remaining, err := repo.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll() error = %v", err)
	}
	if remaining != 1 {
		t.Errorf("CountAll() = %d, want 1", remaining)
	}

	if deleted, err := repo.DeleteMany(ctx, nil); err != nil || deleted != 0 {
		t.Errorf("DeleteMany(nil) = %d, %v, want 0, nil", deleted, err)
	}
}

func TestNextCustomerID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("first of the day", func(t *testing.T) {
		id, err := repo.NextCustomerID(ctx, day)
		if err != nil {
			t.Fatalf("NextCustomerID() error = %v", err)
		}
		if id != "26083001" {
			t.Errorf("NextCustomerID() = %q, want %q", id, "26083001")
		}
	})

	t.Run("increments past existing", func(t *testing.T) {
		for i, name := range []string{"a", "b", "c"} {
			sub := testSubscriber(name)
			sub.CustomerID = ""
			id, err := repo.NextCustomerID(ctx, day)
			if err != nil {
				t.Fatalf("NextCustomerID() error = %v", err)
			}
			sub.CustomerID = id
			if err := repo.Create(ctx, sub); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			want := []string{"26083001", "26083002", "26083003"}[i]
			if id != want {
				t.Errorf("NextCustomerID() = %q, want %q", id, want)
			}
		}
	})

	t.Run("three digit sequence sorts above two digit", func(t *testing.T) {
		long := testSubscriber("overflow")
		long.CustomerID = "260830100"
		if err := repo.Create(ctx, long); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		id, err := repo.NextCustomerID(ctx, day)
		if err != nil {
			t.Fatalf("NextCustomerID() error = %v", err)
		}
		if id != "260830101" {
			t.Errorf("NextCustomerID() = %q, want %q", id, "260830101")
		}
	})

	t.Run("new day resets sequence", func(t *testing.T) {
		nextDay := day.AddDate(0, 0, 1)
		id, err := repo.NextCustomerID(ctx, nextDay)
		if err != nil {
			t.Fatalf("NextCustomerID() error = %v", err)
		}
		if id != "26083101" {
			t.Errorf("NextCustomerID() = %q, want %q", id, "26083101")
		}
	})
}

func TestNextCustomerIDMalformedSuffix(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	bad := testSubscriber("legacy")
	bad.CustomerID = "260830XX"
	if err := repo.Create(ctx, bad); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	id, err := repo.NextCustomerID(ctx, day)
	if err != nil {
		t.Fatalf("NextCustomerID() error = %v", err)
	}
	if id != "26083001" {
		t.Errorf("NextCustomerID() = %q, want %q", id, "26083001")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusOnline, StatusOffline, StatusIsolir} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("connected") {
		t.Error(`ValidStatus("connected") = true`)
	}
}
