package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

type memTxKey struct{}

// memStore is an in-memory implementation of every persistence port.
// Transactions are serialized and rolled back on error, like a run lock would.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	vehicles    map[int64]models.Vehicle
	runs        map[int64]models.Run
	stops       map[int64][]models.Stop
	carriages   map[int64]models.Carriage
	seats       map[int64]models.Seat
	fares       []models.Fare
	orders      map[int64]models.Order
	allocations map[int64]models.SeatAllocation
	events      []models.OrderEvent
	lockedRuns  []int64
	nextID      int64

	// onAllocate runs after CreateAllocation, outside the data lock
	onAllocate func(a models.SeatAllocation)
}

func newMemStore() *memStore {
	return &memStore{
		vehicles:    make(map[int64]models.Vehicle),
		runs:        make(map[int64]models.Run),
		stops:       make(map[int64][]models.Stop),
		carriages:   make(map[int64]models.Carriage),
		seats:       make(map[int64]models.Seat),
		orders:      make(map[int64]models.Order),
		allocations: make(map[int64]models.SeatAllocation),
	}
}

func (m *memStore) stores() Stores {
	return Stores{Topology: m, Seats: m, Fares: m, Orders: m, Events: m}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// fixtures

func (m *memStore) addVehicle(name string, stations ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id()
	m.vehicles[id] = models.Vehicle{ID: id, Name: name, FromStation: stations[0], ToStation: stations[len(stations)-1]}
	for i, station := range stations {
		stop := models.Stop{ID: m.id(), VehicleID: id, StationName: station, StationOrder: i + 1, DistanceKm: i * 100}
		if i > 0 {
			arr := fmt.Sprintf("%02d:00", 8+i)
			stop.ArrivalTime = &arr
		}
		if i < len(stations)-1 {
			dep := fmt.Sprintf("%02d:05", 8+i)
			stop.DepartureTime = &dep
		}
		m.stops[id] = append(m.stops[id], stop)
	}
	return id
}

func (m *memStore) addCarriage(vehicleID int64, number int, seatClass string, seatNumbers ...string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	carriageID := m.id()
	m.carriages[carriageID] = models.Carriage{ID: carriageID, VehicleID: vehicleID, CarriageNumber: number, SeatClass: seatClass, SeatCount: len(seatNumbers)}
	ids := make([]int64, 0, len(seatNumbers))
	for _, sn := range seatNumbers {
		seatID := m.id()
		m.seats[seatID] = models.Seat{ID: seatID, CarriageID: carriageID, CarriageNumber: number, SeatNumber: sn, SeatClass: seatClass}
		ids = append(ids, seatID)
	}
	return ids
}

func (m *memStore) addRun(vehicleID int64, date string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	id := m.id()
	m.runs[id] = models.Run{ID: id, VehicleID: vehicleID, DepartureDate: d}
	return id
}

// addFares prices every forward pair of the vehicle's stations for a class
func (m *memStore) addFares(vehicleID int64, seatClass string, perHop float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stops := m.stops[vehicleID]
	for i := range stops {
		for j := i + 1; j < len(stops); j++ {
			m.fares = append(m.fares, models.Fare{
				ID:          m.id(),
				VehicleID:   vehicleID,
				FromStation: stops[i].StationName,
				ToStation:   stops[j].StationName,
				SeatClass:   seatClass,
				Price:       perHop * float64(j-i),
			})
		}
	}
}

// insertAllocation writes an allocation bypassing every check
func (m *memStore) insertAllocation(a models.SeatAllocation) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = m.id()
	m.allocations[a.ID] = a
	return a.ID
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) allocationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocations)
}

func (m *memStore) eventTypes() []models.OrderEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]models.OrderEventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.EventType)
	}
	return types
}

// Transactor

type memSnapshot struct {
	orders      map[int64]models.Order
	allocations map[int64]models.SeatAllocation
	events      []models.OrderEvent
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		orders:      make(map[int64]models.Order, len(m.orders)),
		allocations: make(map[int64]models.SeatAllocation, len(m.allocations)),
		events:      append([]models.OrderEvent(nil), m.events...),
	}
	for k, v := range m.orders {
		snap.orders[k] = v
	}
	for k, v := range m.allocations {
		snap.allocations[k] = v
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.orders = snap.orders
		m.allocations = snap.allocations
		m.events = snap.events
		m.mu.Unlock()
		return err
	}
	return nil
}

// TopologyStore

func (m *memStore) GetVehicle(_ context.Context, vehicleID int64) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memStore) GetRun(_ context.Context, runID int64) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) GetRunByVehicleAndDate(_ context.Context, vehicleID int64, date time.Time) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.VehicleID == vehicleID && r.DateString() == date.Format(models.DateLayout) {
			run := r
			return &run, nil
		}
	}
	return nil, nil
}

func (m *memStore) LockRun(ctx context.Context, runID int64) error {
	if ctx.Value(memTxKey{}) == nil {
		return fmt.Errorf("LockRun called outside a transaction")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return fmt.Errorf("run %d not found", runID)
	}
	m.lockedRuns = append(m.lockedRuns, runID)
	return nil
}

func (m *memStore) ListStops(_ context.Context, vehicleID int64) ([]models.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Stop(nil), m.stops[vehicleID]...), nil
}

func (m *memStore) ListRunsServing(_ context.Context, fromStation, toStation string, date time.Time) ([]models.RunWithVehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RunWithVehicle
	for _, r := range m.runs {
		if r.DateString() != date.Format(models.DateLayout) {
			continue
		}
		route := models.NewRoute(r.VehicleID, m.stops[r.VehicleID])
		from, okFrom := route.OrderOf(fromStation)
		to, okTo := route.OrderOf(toStation)
		if !okFrom || !okTo || from >= to {
			continue
		}
		v := m.vehicles[r.VehicleID]
		out = append(out, models.RunWithVehicle{Run: r, VehicleName: v.Name, Origin: v.FromStation, Terminus: v.ToStation})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SeatStore

func (m *memStore) ListSeats(_ context.Context, vehicleID int64, seatClass string) ([]models.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Seat
	for _, s := range m.seats {
		if m.carriages[s.CarriageID].VehicleID == vehicleID && s.SeatClass == seatClass {
			out = append(out, s)
		}
	}
	// reverse ID order so the service's own seat ordering is what gets tested
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListSeatClasses(_ context.Context, vehicleID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, s := range m.seats {
		if m.carriages[s.CarriageID].VehicleID == vehicleID && !seen[s.SeatClass] {
			seen[s.SeatClass] = true
			out = append(out, s.SeatClass)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) activeAllocations(match func(a models.SeatAllocation) bool) []models.SeatAllocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.SeatAllocation
	for _, a := range m.allocations {
		if a.IsActive && match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListActiveAllocations(_ context.Context, runID int64, seatClass string) ([]models.SeatAllocation, error) {
	return m.activeAllocations(func(a models.SeatAllocation) bool {
		return a.RunID == runID && m.seats[a.SeatID].SeatClass == seatClass
	}), nil
}

func (m *memStore) ListActiveAllocationsForSeat(_ context.Context, runID, seatID int64) ([]models.SeatAllocation, error) {
	return m.activeAllocations(func(a models.SeatAllocation) bool {
		return a.RunID == runID && a.SeatID == seatID
	}), nil
}

func (m *memStore) ListActiveAllocationsForRun(_ context.Context, runID int64) ([]models.SeatAllocation, error) {
	return m.activeAllocations(func(a models.SeatAllocation) bool {
		return a.RunID == runID
	}), nil
}

func (m *memStore) ListRunsWithActiveAllocations(_ context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, a := range m.activeAllocations(func(models.SeatAllocation) bool { return true }) {
		if !seen[a.RunID] {
			seen[a.RunID] = true
			out = append(out, a.RunID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) GetSeat(_ context.Context, seatID int64) (*models.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seats[seatID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// FareStore

func (m *memStore) GetFare(_ context.Context, vehicleID int64, fromStation, toStation, seatClass string) (*models.Fare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fares {
		if f.VehicleID == vehicleID && f.FromStation == fromStation && f.ToStation == toStation && f.SeatClass == seatClass {
			fare := f
			return &fare, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListFaresFrom(_ context.Context, vehicleID int64, fromStation string) ([]models.Fare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Fare
	for _, f := range m.fares {
		if f.VehicleID == vehicleID && f.FromStation == fromStation {
			out = append(out, f)
		}
	}
	return out, nil
}

// OrderStore

func (m *memStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.id()
	order.CreatedAt = time.Now()
	m.orders[order.ID] = *order
	return nil
}

func (m *memStore) CreateAllocation(_ context.Context, allocation *models.SeatAllocation) error {
	m.mu.Lock()
	allocation.ID = m.id()
	allocation.CreatedAt = time.Now()
	m.allocations[allocation.ID] = *allocation
	hook := m.onAllocate
	m.mu.Unlock()

	if hook != nil {
		hook(*allocation)
	}
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) LockOrder(ctx context.Context, orderID int64, active bool) (*models.Order, error) {
	if ctx.Value(memTxKey{}) == nil {
		return nil, fmt.Errorf("LockOrder called outside a transaction")
	}
	o, err := m.GetOrder(ctx, orderID)
	if err != nil || o == nil || o.IsActive != active {
		return nil, err
	}
	return o, nil
}

func (m *memStore) GetAllocationByOrder(_ context.Context, orderID int64) (*models.SeatAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.allocations {
		if a.OrderID == orderID {
			alloc := a
			return &alloc, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %d not found", order.ID)
	}
	stored.Status = order.Status
	stored.IsActive = order.IsActive
	stored.CancelledAt = order.CancelledAt
	m.orders[order.ID] = stored
	return nil
}

func (m *memStore) SetAllocationActive(_ context.Context, orderID int64, active bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.allocations {
		if a.OrderID != orderID {
			continue
		}
		a.IsActive = active
		if active {
			a.DeactivatedAt = nil
		} else {
			a.DeactivatedAt = &at
		}
		m.allocations[id] = a
		return nil
	}
	return fmt.Errorf("seat allocation for order %d not found", orderID)
}

func (m *memStore) GetOrderDetail(ctx context.Context, orderID int64) (*models.OrderDetail, error) {
	o, _ := m.GetOrder(ctx, orderID)
	if o == nil {
		return nil, nil
	}
	return m.detail(*o), nil
}

func (m *memStore) detail(o models.Order) *models.OrderDetail {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := &models.OrderDetail{Order: o}
	d.VehicleName = m.vehicles[o.VehicleID].Name
	d.DepartureDate = m.runs[o.RunID].DepartureDate
	for _, stop := range m.stops[o.VehicleID] {
		if stop.StationName == o.FromStation {
			d.DepartureTime = stop.DepartureTime
		}
	}
	for _, a := range m.allocations {
		if a.OrderID == o.ID {
			seat := m.seats[a.SeatID]
			seatID := seat.ID
			number := seat.SeatNumber
			carriage := seat.CarriageNumber
			d.SeatID, d.SeatNumber, d.CarriageNumber = &seatID, &number, &carriage
		}
	}
	return d
}

func (m *memStore) ListOrders(_ context.Context, filter models.OrderFilter) ([]models.OrderDetail, error) {
	m.mu.Lock()
	var matched []models.Order
	for _, o := range m.orders {
		if o.IsActive != filter.Active {
			continue
		}
		if filter.PassengerName != "" && o.PassengerName != filter.PassengerName {
			continue
		}
		if filter.PassengerID != "" && o.PassengerID != filter.PassengerID {
			continue
		}
		matched = append(matched, o)
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	out := make([]models.OrderDetail, 0, len(matched))
	for _, o := range matched {
		out = append(out, *m.detail(o))
	}
	return out, nil
}

// EventStore

func (m *memStore) AppendEvent(_ context.Context, event *models.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = fmt.Sprintf("evt-%d", m.id())
	event.CreatedAt = time.Now()
	m.events = append(m.events, *event)
	return nil
}

// service wiring

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type testEnv struct {
	store        *memStore
	clock        fixedClock
	topology     *TopologyService
	availability *AvailabilityService
	pricing      *PricingService
	booking      *BookingService
	lifecycle    *OrderLifecycleService
	search       *SearchService
	auditor      *IntegrityAuditor
	tickets      *TicketService
	logs         *test.Hook
}

func newTestEnv(store *memStore) *testEnv {
	logger, logs := test.NewNullLogger()

	clock := fixedClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	stores := store.stores()
	topology := NewTopologyService(store)
	availability := NewAvailabilityService(store, store, topology, logger)
	pricing := NewPricingService(store)

	return &testEnv{
		store:        store,
		clock:        clock,
		topology:     topology,
		availability: availability,
		pricing:      pricing,
		booking:      NewBookingService(store, stores, topology, availability, pricing, clock, logger),
		lifecycle:    NewOrderLifecycleService(store, stores, topology, availability, clock, logger),
		search:       NewSearchService(stores, topology, availability, pricing, clock, logger),
		auditor:      NewIntegrityAuditor(stores, topology, clock, logger),
		tickets:      NewTicketService(store, clock),
		logs:         logs,
	}
}

// breaches returns the entries logged as a broken seat allocation invariant
func (e *testEnv) breaches() []*logrus.Entry {
	var found []*logrus.Entry
	for _, entry := range e.logs.AllEntries() {
		if entry.Data["invariant_breach"] == true {
			found = append(found, entry)
		}
	}
	return found
}

func (e *testEnv) book(runID int64, seatClass, from, to, passenger string) (*models.BookingConfirmation, error) {
	return e.booking.Book(context.Background(), &models.BookRequest{
		RunID:         runID,
		SeatClass:     seatClass,
		FromStation:   from,
		ToStation:     to,
		PassengerName: passenger,
		PassengerID:   "ID-" + passenger,
	})
}
