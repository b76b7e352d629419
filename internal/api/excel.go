package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/reznoir/netward/internal/subscriber"
)

// clientSheetName is the worksheet subscribers are read from and written to.
const clientSheetName = "Clients"

// clientColumns is the column order for the template, export, and import.
// device_name is matched against the router registry by name on import.
var clientColumns = []string{
	"username",
	"password",
	"full_name",
	"service_name",
	"ip_address",
	"mac_address",
	"address",
	"phone_number",
	"latitude",
	"longitude",
	"device_name",
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// timeNow is swappable in tests so imports allocate stable customer IDs.
var timeNow = time.Now

// handleClientTemplate serves an empty spreadsheet with the expected
// header row, for operators to fill in and import.
func (s *Server) handleClientTemplate(w http.ResponseWriter, _ *http.Request) {
	f := excelize.NewFile()
	defer f.Close()

	if err := prepareClientSheet(f); err != nil {
		writeInternalError(w, "failed to build template")
		return
	}

	serveWorkbook(w, f, "clients-template.xlsx")
}

// handleExportClients serves all subscribers as a spreadsheet.
func (s *Server) handleExportClients(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscribers.GetAll(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list clients")
		return
	}

	deviceNames, err := s.deviceNamesByID(r)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := prepareClientSheet(f); err != nil {
		writeInternalError(w, "failed to build export")
		return
	}

	for i, sub := range subs {
		deviceName := ""
		if sub.DeviceID != nil {
			deviceName = deviceNames[*sub.DeviceID]
		}
		row := []any{
			sub.Username,
			sub.Password,
			sub.FullName,
			sub.ServiceName,
			strOrEmpty(sub.IPAddress),
			strOrEmpty(sub.MACAddress),
			strOrEmpty(sub.Address),
			strOrEmpty(sub.PhoneNumber),
			strOrEmpty(sub.Latitude),
			strOrEmpty(sub.Longitude),
			deviceName,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			writeInternalError(w, "failed to build export")
			return
		}
		if err := f.SetSheetRow(clientSheetName, cell, &row); err != nil {
			writeInternalError(w, "failed to build export")
			return
		}
	}

	serveWorkbook(w, f, "clients.xlsx")
}

// importReport summarises a spreadsheet import.
type importReport struct {
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	FirstError string `json:"first_error,omitempty"`
}

// handleImportClients reads a spreadsheet upload and upserts one
// subscriber per row, keyed by username.
//
// Import is a database operation only: no secrets are pushed to routers.
// Rows that fail validation are skipped, not fatal, so a single bad line
// does not discard an operator's whole spreadsheet.
func (s *Server) handleImportClients(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "multipart file field 'file' is required")
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		writeBadRequest(w, "not a readable xlsx file")
		return
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		writeBadRequest(w, "spreadsheet has no rows")
		return
	}

	colIndex := headerIndex(rows[0])
	if _, ok := colIndex["username"]; !ok {
		writeBadRequest(w, "spreadsheet is missing the username column")
		return
	}

	deviceIDs, err := s.deviceIDsByName(r)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	report := importReport{}
	for _, row := range rows[1:] {
		if err := s.importClientRow(r, row, colIndex, deviceIDs, &report); err != nil {
			report.Skipped++
			if report.FirstError == "" {
				report.FirstError = err.Error()
			}
		}
	}

	s.logger.Info("spreadsheet import",
		"created", report.Created, "updated", report.Updated, "skipped", report.Skipped)

	writeJSON(w, http.StatusOK, report)
}

// importClientRow upserts one spreadsheet row by username.
func (s *Server) importClientRow(r *http.Request, row []string, colIndex map[string]int, deviceIDs map[string]int64, report *importReport) error {
	ctx := r.Context()

	get := func(col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	username := get("username")
	if username == "" {
		return fmt.Errorf("row missing username")
	}

	var deviceID *int64
	if name := get("device_name"); name != "" {
		id, ok := deviceIDs[name]
		if !ok {
			return fmt.Errorf("unknown device %q", name)
		}
		deviceID = &id
	}

	params := subscriber.UpdateParams{
		FullName:    optional(get("full_name")),
		Password:    optional(get("password")),
		ServiceName: optional(get("service_name")),
		IPAddress:   optional(get("ip_address")),
		MACAddress:  optional(get("mac_address")),
		Address:     optional(get("address")),
		PhoneNumber: optional(get("phone_number")),
		Latitude:    optional(get("latitude")),
		Longitude:   optional(get("longitude")),
		DeviceID:    deviceID,
	}

	existing, err := s.subscribers.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if err := s.subscribers.Update(ctx, existing.ID, params); err != nil {
			return fmt.Errorf("updating %s: %w", username, err)
		}
		report.Updated++
		return nil

	case errors.Is(err, subscriber.ErrNotFound):
		sub := newImportedSubscriber(username, params)
		sub.CustomerID, err = s.subscribers.NextCustomerID(ctx, timeNow())
		if err != nil {
			return fmt.Errorf("allocating customer id: %w", err)
		}
		if err := s.subscribers.Create(ctx, sub); err != nil {
			return fmt.Errorf("creating %s: %w", username, err)
		}
		report.Created++
		return nil

	default:
		return fmt.Errorf("looking up %s: %w", username, err)
	}
}

// newImportedSubscriber builds a subscriber from spreadsheet fields,
// applying the same defaults as a router import.
func newImportedSubscriber(username string, params subscriber.UpdateParams) *subscriber.Subscriber {
	sub := &subscriber.Subscriber{
		Username:    username,
		FullName:    strings.ToUpper(username),
		ServiceName: subscriber.DefaultServiceName,
		Status:      subscriber.StatusOffline,
		IPAddress:   params.IPAddress,
		MACAddress:  params.MACAddress,
		Address:     params.Address,
		PhoneNumber: params.PhoneNumber,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		DeviceID:    params.DeviceID,
	}
	if params.FullName != nil {
		sub.FullName = *params.FullName
	}
	if params.Password != nil {
		sub.Password = *params.Password
	}
	if params.ServiceName != nil {
		sub.ServiceName = *params.ServiceName
	}
	return sub
}

// prepareClientSheet renames the default sheet and writes the header row.
func prepareClientSheet(f *excelize.File) error {
	if err := f.SetSheetName(f.GetSheetName(0), clientSheetName); err != nil {
		return err
	}
	header := make([]any, len(clientColumns))
	for i, col := range clientColumns {
		header[i] = col
	}
	return f.SetSheetRow(clientSheetName, "A1", &header)
}

// serveWorkbook writes the workbook to the response with download headers.
func serveWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := f.WriteTo(w); err != nil {
		// Headers are already sent; nothing useful left to do.
		return
	}
}

// headerIndex maps lowercased header names to their column positions.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			index[name] = i
		}
	}
	return index
}

// deviceNamesByID returns a router ID to name lookup.
func (s *Server) deviceNamesByID(r *http.Request) (map[int64]string, error) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(devices))
	for _, dev := range devices {
		names[dev.ID] = dev.Name
	}
	return names, nil
}

// deviceIDsByName returns a router name to ID lookup.
func (s *Server) deviceIDsByName(r *http.Request) (map[string]int64, error) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(devices))
	for _, dev := range devices {
		ids[dev.Name] = dev.ID
	}
	return ids, nil
}

// optional returns nil for empty strings so blank spreadsheet cells do
// not overwrite existing values.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// strOrEmpty dereferences an optional string for export.
func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
