package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	_ "github.com/reznoir/netward/migrations"

	"github.com/reznoir/netward/internal/auth"
	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/infrastructure/config"
	"github.com/reznoir/netward/internal/infrastructure/database"
	"github.com/reznoir/netward/internal/infrastructure/logging"
	"github.com/reznoir/netward/internal/plan"
	"github.com/reznoir/netward/internal/plant"
	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
	syncengine "github.com/reznoir/netward/internal/sync"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testUsername = "admin"
	testPassword = "correct-horse"
)

// stubDialer refuses every dial. API tests exercise the database paths;
// router behaviour is covered by the sync package tests.
type stubDialer struct{}

func (stubDialer) Dial(context.Context, routeros.Params) (routeros.Session, error) {
	return nil, fmt.Errorf("no routers in tests")
}

func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// newTestServer builds a server over a fresh migrated database and
// returns its router. No listener is started.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	logger := testLogger()
	subs := subscriber.NewSQLiteRepository(db.DB)
	devices := device.NewSQLiteRepository(db.DB)
	users := auth.NewSQLiteUserRepository(db.DB)

	engine := syncengine.NewEngine(syncengine.Config{
		Subscribers: subs,
		Devices:     devices,
		Dialer:      stubDialer{},
		Logger:      logger.Logger,
	})

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	if err := users.Create(ctx, &auth.User{
		Username:     testUsername,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	s, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8080},
		WS:     config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 60},
		},
		Logger:      logger,
		Subscribers: subs,
		Devices:     devices,
		Packages:    plan.NewSQLiteRepository(db.DB),
		Plant:       plant.NewSQLiteRepository(db.DB),
		Users:       users,
		Engine:      engine,
		Dialer:      stubDialer{},
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	s.Hub()

	return s, s.buildRouter()
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" {
		t.Fatal("login returned empty token")
	}
	return resp.AccessToken
}

func TestHealthNoAuth(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	_, handler := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		token := login(t, handler)

		rec := doRequest(t, handler, http.MethodGet, "/api/v1/auth/me", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("me = %d", rec.Code)
		}
		var user auth.User
		decodeBody(t, rec, &user)
		if user.Username != testUsername {
			t.Errorf("me username = %q", user.Username)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": testUsername,
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("login with wrong password = %d", rec.Code)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "whatever",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("login with unknown user = %d", rec.Code)
		}
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/clients/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("clients without token = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/clients/", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("clients with garbage token = %d", rec.Code)
	}
}

func TestClientLifecycle(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	var created struct {
		Client subscriber.Subscriber `json:"client"`
	}

	t.Run("create", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/clients/", token, map[string]any{
			"username":  "alice01",
			"password":  "pw-alice",
			"full_name": "Alice",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &created)
		if created.Client.ID == 0 {
			t.Fatal("created client has no ID")
		}
		if created.Client.CustomerID == "" {
			t.Error("created client has no customer ID")
		}
		if created.Client.ServiceName != "pppoe" {
			t.Errorf("service name = %q", created.Client.ServiceName)
		}
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/clients/", token, map[string]any{
			"username": "alice01",
			"password": "other",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("duplicate create = %d", rec.Code)
		}
	})

	path := fmt.Sprintf("/api/v1/clients/%d", created.Client.ID)

	t.Run("get", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get = %d", rec.Code)
		}
		var sub subscriber.Subscriber
		decodeBody(t, rec, &sub)
		if sub.Username != "alice01" {
			t.Errorf("username = %q", sub.Username)
		}
	})

	t.Run("update", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPatch, path, token, map[string]any{
			"full_name":    "Alice Rewired",
			"phone_number": "0812000111",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Client subscriber.Subscriber `json:"client"`
		}
		decodeBody(t, rec, &resp)
		if resp.Client.FullName != "Alice Rewired" {
			t.Errorf("full name = %q", resp.Client.FullName)
		}
		if resp.Client.PhoneNumber == nil || *resp.Client.PhoneNumber != "0812000111" {
			t.Errorf("phone number = %v", resp.Client.PhoneNumber)
		}
	})

	t.Run("toggle status", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, path+"/toggle-status", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle = %d %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Client subscriber.Subscriber `json:"client"`
		}
		decodeBody(t, rec, &resp)
		if !resp.Client.IsDisabled {
			t.Error("client should be disabled after toggle")
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/v1/clients/", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list = %d", rec.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		decodeBody(t, rec, &resp)
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodDelete, path, token, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete = %d", rec.Code)
		}

		rec = doRequest(t, handler, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("get after delete = %d", rec.Code)
		}
	})
}

func TestBulkDelete(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	var ids []int64
	for _, username := range []string{"bulk1", "bulk2", "bulk3"} {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/clients/", token, map[string]any{
			"username": username,
			"password": "pw",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %s = %d", username, rec.Code)
		}
		var resp struct {
			Client subscriber.Subscriber `json:"client"`
		}
		decodeBody(t, rec, &resp)
		ids = append(ids, resp.Client.ID)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/clients/bulk-delete", token, map[string]any{
		"ids": []int64{ids[0], ids[1], 99999},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, rec, &resp)
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}
}

func TestPackageCRUD(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/packages/", token, map[string]any{
		"name":      "Home 20M",
		"price":     150000,
		"bandwidth": "20M/10M",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create package = %d %s", rec.Code, rec.Body.String())
	}
	var pkg plan.Package
	decodeBody(t, rec, &pkg)

	rec = doRequest(t, handler, http.MethodPatch, fmt.Sprintf("/api/v1/packages/%d", pkg.ID), token, map[string]any{
		"name":  "Home 20M",
		"price": 175000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update package = %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/api/v1/packages/%d", pkg.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete package = %d", rec.Code)
	}
}

func TestPlantEndpoints(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/pops/", token, map[string]any{
		"name": "POP Central",
		"code": "POP-C",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pop = %d %s", rec.Code, rec.Body.String())
	}
	var pop plant.POP
	decodeBody(t, rec, &pop)

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/odps/", token, map[string]any{
		"name":   "ODP Central 01",
		"code":   "ODP-C-01",
		"pop_id": pop.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create odp = %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/pops/%d/odps", pop.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list odps by pop = %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 {
		t.Errorf("odp count = %d, want 1", resp.Count)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/devices/", token, map[string]any{
		"name":     "pop-central-01",
		"host":     "10.0.0.1",
		"username": "api",
		"password": "secret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create device = %d %s", rec.Code, rec.Body.String())
	}
	var dev device.Device
	decodeBody(t, rec, &dev)
	if dev.Port != 8728 {
		t.Errorf("port default = %d, want 8728", dev.Port)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Error("password leaked into response")
	}

	t.Run("test connection fails through stub dialer", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/devices/%d/test-connection", dev.ID), token, nil)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("test-connection = %d, want 502", rec.Code)
		}
	})

	t.Run("import fails through stub dialer", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/devices/%d/import", dev.ID), token, nil)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("import = %d, want 502", rec.Code)
		}
	})
}

func TestWSTicketFlow(t *testing.T) {
	s, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/ws-ticket", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ws-ticket = %d", rec.Code)
	}
	var resp struct {
		Ticket string `json:"ticket"`
	}
	decodeBody(t, rec, &resp)
	if resp.Ticket == "" {
		t.Fatal("empty ticket")
	}

	if !s.tickets.validate(resp.Ticket) {
		t.Error("fresh ticket should validate")
	}
	if s.tickets.validate(resp.Ticket) {
		t.Error("ticket should be single-use")
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/ws?ticket=bogus", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ws with bogus ticket = %d", rec.Code)
	}
}

func TestDashboardStats(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/clients/", token, map[string]any{
		"username": "dash1",
		"password": "pw",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d %s", rec.Code, rec.Body.String())
	}
	var resp dashboardResponse
	decodeBody(t, rec, &resp)
	if resp.TotalClients != 1 {
		t.Errorf("total clients = %d, want 1", resp.TotalClients)
	}
	if resp.OfflineClient != 1 {
		t.Errorf("offline clients = %d, want 1", resp.OfflineClient)
	}
}

func TestDashboardStatsManyDarkRouters(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	// More routers than the probe limit, all unreachable; every one must
	// still get its zeroed row.
	const routers = maxDashboardProbes + 4
	for i := 0; i < routers; i++ {
		rec := doRequest(t, handler, http.MethodPost, "/api/v1/devices/", token, map[string]any{
			"name":     fmt.Sprintf("pop-%02d", i),
			"host":     fmt.Sprintf("10.0.0.%d", i+1),
			"username": "api",
			"password": "pw",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create device %d = %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d %s", rec.Code, rec.Body.String())
	}
	var resp dashboardResponse
	decodeBody(t, rec, &resp)
	if len(resp.Devices) != routers {
		t.Fatalf("device rows = %d, want %d", len(resp.Devices), routers)
	}
	for _, row := range resp.Devices {
		if row.Reachable {
			t.Errorf("device %s reported reachable through a refused dial", row.DeviceName)
		}
		if row.Bandwidth != "↓ 0.0 Mbps ↑ 0.0 Mbps" {
			t.Errorf("device %s bandwidth = %q, want zeroed", row.DeviceName, row.Bandwidth)
		}
	}
}

func TestClientTemplateDownload(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/clients/template", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("template = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("template is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(clientSheetName)
	if err != nil || len(rows) != 1 {
		t.Fatalf("template rows = %v, err %v", rows, err)
	}
	if rows[0][0] != "username" {
		t.Errorf("first header = %q", rows[0][0])
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	_, handler := newTestServer(t)
	token := login(t, handler)

	// Build an upload with two new subscribers.
	f := excelize.NewFile()
	if err := prepareClientSheet(f); err != nil {
		t.Fatalf("preparing sheet: %v", err)
	}
	rows := [][]any{
		{"imp1", "pw1", "Customer One", "pppoe", "", "", "Jl. Merdeka 1", "0811", "", "", ""},
		{"imp2", "pw2", "Customer Two", "pppoe", "", "", "", "", "", "", ""},
		{"", "no-username-row", "", "", "", "", "", "", "", "", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(clientSheetName, cell, &row); err != nil {
			t.Fatalf("writing row: %v", err)
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "clients.xlsx")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := f.WriteTo(part); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	var report importReport
	decodeBody(t, rec, &report)
	if report.Created != 2 {
		t.Errorf("created = %d, want 2", report.Created)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}

	// Re-importing the same sheet updates rather than duplicates.
	var buf2 bytes.Buffer
	mw2 := multipart.NewWriter(&buf2)
	part2, _ := mw2.CreateFormFile("file", "clients.xlsx")
	if _, err := f.WriteTo(part2); err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	mw2.Close()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/clients/import", &buf2)
	req.Header.Set("Content-Type", mw2.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("second import = %d", rec.Code)
	}
	decodeBody(t, rec, &report)
	if report.Created != 0 || report.Updated != 2 {
		t.Errorf("second import created=%d updated=%d, want 0/2", report.Created, report.Updated)
	}

	// Export should round-trip both subscribers.
	rec = doRequest(t, handler, http.MethodGet, "/api/v1/clients/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	exported, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer exported.Close()

	exportRows, err := exported.GetRows(clientSheetName)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if len(exportRows) != 3 { // header + 2 subscribers
		t.Fatalf("export rows = %d, want 3", len(exportRows))
	}
	if exportRows[1][0] != "imp1" || exportRows[2][0] != "imp2" {
		t.Errorf("export usernames = %q, %q", exportRows[1][0], exportRows[2][0])
	}
}
