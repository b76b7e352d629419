package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/reznoir/netward/internal/device"
	"github.com/reznoir/netward/internal/routeros"
	"github.com/reznoir/netward/internal/subscriber"
)

// fakeStore is an in-memory subscriber.Repository with instrumentation
// for concurrency and failure-injection tests.
type fakeStore struct {
	mu     stdsync.Mutex
	subs   map[int64]*subscriber.Subscriber
	nextID int64
	seq    int

	// failStatusIDs makes UpdateStatus fail for the given IDs.
	failStatusIDs map[int64]bool

	// statusDelay stretches UpdateStatus so overlap is observable.
	statusDelay time.Duration

	current       int
	maxConcurrent int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:          make(map[int64]*subscriber.Subscriber),
		failStatusIDs: make(map[int64]bool),
	}
}

func (s *fakeStore) add(sub subscriber.Subscriber) *subscriber.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	if sub.Status == "" {
		sub.Status = subscriber.StatusOffline
	}
	s.subs[sub.ID] = &sub
	return &sub
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *fakeStore) GetByUsername(_ context.Context, username string) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Username == username {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (s *fakeStore) GetAll(_ context.Context) ([]subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscriber.Subscriber
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	return out, nil
}

func (s *fakeStore) ListByDevice(_ context.Context, deviceID int64) ([]subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscriber.Subscriber
	for _, sub := range s.subs {
		if sub.DeviceID != nil && *sub.DeviceID == deviceID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeStore) ListByStatus(_ context.Context, status subscriber.Status) ([]subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscriber.Subscriber
	for _, sub := range s.subs {
		if sub.Status == status {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.Username == sub.Username {
			return subscriber.ErrExists
		}
	}
	s.nextID++
	sub.ID = s.nextID
	if sub.ServiceName == "" {
		sub.ServiceName = subscriber.DefaultServiceName
	}
	if sub.Status == "" {
		sub.Status = subscriber.StatusOffline
	}
	clone := *sub
	s.subs[sub.ID] = &clone
	return nil
}

func (s *fakeStore) Update(_ context.Context, id int64, params subscriber.UpdateParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return subscriber.ErrNotFound
	}
	if params.Username != nil {
		sub.Username = *params.Username
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
	if params.IsDisabled != nil {
		sub.IsDisabled = *params.IsDisabled
	}
	if params.IPAddress != nil {
		sub.IPAddress = params.IPAddress
	}
	if params.MACAddress != nil {
		sub.MACAddress = params.MACAddress
	}
	if params.Address != nil {
		sub.Address = params.Address
	}
	if params.PhoneNumber != nil {
		sub.PhoneNumber = params.PhoneNumber
	}
	if params.Latitude != nil {
		sub.Latitude = params.Latitude
	}
	if params.Longitude != nil {
		sub.Longitude = params.Longitude
	}
	if params.DeviceID != nil {
		sub.DeviceID = params.DeviceID
	}
	if params.ODPID != nil {
		sub.ODPID = params.ODPID
	}
	if params.PackageID != nil {
		sub.PackageID = params.PackageID
	}
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id int64, status subscriber.Status) error {
	s.mu.Lock()
	s.current++
	if s.current > s.maxConcurrent {
		s.maxConcurrent = s.current
	}
	delay := s.statusDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current--

	if s.failStatusIDs[id] {
		return fmt.Errorf("injected failure for %d", id)
	}
	sub, ok := s.subs[id]
	if !ok {
		return subscriber.ErrNotFound
	}
	sub.Status = status
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return subscriber.ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

func (s *fakeStore) DeleteMany(_ context.Context, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs), nil
}

func (s *fakeStore) CountByStatus(_ context.Context, status subscriber.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) NextCustomerID(_ context.Context, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s%02d", now.UTC().Format("060102"), s.seq), nil
}

// fakeRegistry is an in-memory device.Repository.
type fakeRegistry struct {
	devices map[int64]*device.Device
}

func newFakeRegistry(devices ...device.Device) *fakeRegistry {
	r := &fakeRegistry{devices: make(map[int64]*device.Device)}
	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = &d
	}
	return r
}

func (r *fakeRegistry) GetByID(_ context.Context, id int64) (*device.Device, error) {
	dev, ok := r.devices[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	clone := *dev
	return &clone, nil
}

func (r *fakeRegistry) List(_ context.Context) ([]device.Device, error) {
	var out []device.Device
	for _, dev := range r.devices {
		out = append(out, *dev)
	}
	return out, nil
}

func (r *fakeRegistry) Create(_ context.Context, dev *device.Device) error {
	r.devices[dev.ID] = dev
	return nil
}

func (r *fakeRegistry) Update(_ context.Context, dev *device.Device) error {
	r.devices[dev.ID] = dev
	return nil
}

func (r *fakeRegistry) Delete(_ context.Context, id int64) error {
	delete(r.devices, id)
	return nil
}

func (r *fakeRegistry) CountAll(_ context.Context) (int, error) {
	return len(r.devices), nil
}

// fakeSession replays canned replies keyed by command word.
type fakeSession struct {
	mu      stdsync.Mutex
	replies map[string][]map[string]string
	errs    map[string]error
	calls   [][]string
	closed  bool
}

func (s *fakeSession) Run(_ context.Context, words ...string) ([]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, words)
	if err := s.errs[words[0]]; err != nil {
		return nil, err
	}
	return s.replies[words[0]], nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// callsTo returns the sentences run for a given command word.
func (s *fakeSession) callsTo(command string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]string
	for _, call := range s.calls {
		if call[0] == command {
			out = append(out, call)
		}
	}
	return out
}

// fakeDialer hands out sessions keyed by host.
type fakeDialer struct {
	sessions map[string]*fakeSession
	dialErrs map[string]error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		sessions: make(map[string]*fakeSession),
		dialErrs: make(map[string]error),
	}
}

func (d *fakeDialer) sessionFor(host string) *fakeSession {
	if s, ok := d.sessions[host]; ok {
		return s
	}
	s := &fakeSession{
		replies: make(map[string][]map[string]string),
		errs:    make(map[string]error),
	}
	d.sessions[host] = s
	return s
}

func (d *fakeDialer) Dial(_ context.Context, params routeros.Params) (routeros.Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := d.dialErrs[params.Host]; err != nil {
		return nil, err
	}
	return d.sessionFor(params.Host), nil
}

// recordingNotifier captures every delta batch it receives.
type recordingNotifier struct {
	mu      stdsync.Mutex
	batches [][]StatusDelta
}

func (n *recordingNotifier) NotifyStatus(deltas []StatusDelta) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, deltas)
}

func (n *recordingNotifier) all() []StatusDelta {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []StatusDelta
	for _, batch := range n.batches {
		out = append(out, batch...)
	}
	return out
}

// activeRow builds a /ppp/active/print reply row.
func activeRow(name, address string) map[string]string {
	return map[string]string{
		"name":    name,
		"service": "pppoe",
		"address": address,
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

// hasCall reports whether any recorded call contains the given word.
func hasCall(calls [][]string, word string) bool {
	for _, call := range calls {
		for _, w := range call {
			if strings.HasPrefix(w, word) {
				return true
			}
		}
	}
	return false
}
