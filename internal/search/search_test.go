package search

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/you/railticket/internal/cache"
	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/repository"
	"github.com/you/railticket/internal/seats"
	"github.com/you/railticket/internal/stations"
)

type testEnv struct {
	engine    *Engine
	stations  *repository.StationRepository
	schedules *repository.ScheduleRepository
}

func newTestEnv(t *testing.T, autoProvision bool) *testEnv {
	t.Helper()
	database, err := db.Open("sqlite", filepath.Join(t.TempDir(), "search.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}

	stationRepo := repository.NewStationRepository(database)
	scheduleRepo := repository.NewScheduleRepository(database)
	resolver := stations.NewResolver(stationRepo, autoProvision, nil)

	engine := NewEngine(
		resolver,
		scheduleRepo,
		NewGenerator(scheduleRepo, 10, nil),
		cache.New[*models.TicketPage]("tickets", 100, time.Minute, cache.StaleEmpty),
		cache.New[*models.AggregatedPage]("tickets_list", 100, time.Minute, cache.StaleEmpty),
		Options{DefaultPageSize: 10, MaxPageSize: 100},
		nil,
	)
	return &testEnv{engine: engine, stations: stationRepo, schedules: scheduleRepo}
}

func (e *testEnv) station(t *testing.T, name string) *models.Station {
	t.Helper()
	s, err := e.stations.CreateStation(context.Background(), name, models.DeriveCity(name))
	if err != nil {
		t.Fatalf("CreateStation(%s) failed: %v", name, err)
	}
	return s
}

func (e *testEnv) seed(t *testing.T, trainNo string, from, to *models.Station, date, dep, arr string) {
	t.Helper()
	dur, err := models.DurationBetween(dep, arr)
	if err != nil {
		t.Fatal(err)
	}
	err = e.schedules.InsertSchedule(context.Background(), models.ScheduleRow{
		TrainNo:         trainNo,
		TrainType:       trainNo[:1],
		FromStationID:   from.ID,
		ToStationID:     to.ID,
		RunDate:         date,
		DepartureTime:   dep,
		ArrivalTime:     arr,
		DurationMinutes: dur,
	})
	if err != nil {
		t.Fatalf("InsertSchedule(%s) failed: %v", trainNo, err)
	}
}

func today() string {
	return time.Now().Format(models.DateLayout)
}

func TestSearch_SeededTrain(t *testing.T) {
	env := newTestEnv(t, true)
	gz := env.station(t, "广州")
	sz := env.station(t, "深圳")
	env.seed(t, "G9001", gz, sz, today(), "08:00", "10:00")

	page, err := env.engine.Search(context.Background(), models.TicketQuery{From: "广州", To: "深圳", Date: today()})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.Meta.TotalItems < 1 {
		t.Fatalf("totalItems = %d, want >= 1", page.Meta.TotalItems)
	}

	got := page.Data[0]
	if got.TrainNo != "G9001" {
		t.Errorf("trainNo = %s, want G9001", got.TrainNo)
	}
	if got.Duration != "2小时00分钟" {
		t.Errorf("duration = %s", got.Duration)
	}
	if got.ArrivalType != models.ArrivalSameDay {
		t.Errorf("arrivalType = %s", got.ArrivalType)
	}
	if len(got.Seats) != 4 || got.Seats[0].Type != seats.Business {
		t.Errorf("unexpected seats %+v", got.Seats)
	}
}

func TestSearch_FallbackFillsEmptyRoute(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	page, err := env.engine.Search(ctx, models.TicketQuery{From: "甲城", To: "乙城", Date: "2026-11-01"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.Meta.TotalItems != 10 {
		t.Fatalf("totalItems = %d, want 10", page.Meta.TotalItems)
	}
	if page.Meta.TotalPages != 1 || len(page.Data) != 10 {
		t.Errorf("meta = %+v, items = %d", page.Meta, len(page.Data))
	}

	for i, ticket := range page.Data {
		wantType := fallbackTypes[i%len(fallbackTypes)]
		wantNo := wantType + strconv.Itoa(fallbackTrainBase+i)
		if ticket.TrainNo != wantNo {
			t.Errorf("item %d trainNo = %s, want %s", i, ticket.TrainNo, wantNo)
		}
	}

	last := page.Data[9]
	if last.DepartureTime != "20:15" || last.ArrivalTime != "00:15" || last.ArrivalType != models.ArrivalNextDay {
		t.Errorf("last fallback train = %+v", last)
	}
}

func TestSearch_FallbackTrainNumbersStayUnique(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	seen := map[string]bool{}
	for _, date := range []string{"2026-11-01", "2026-11-02"} {
		page, err := env.engine.Search(ctx, models.TicketQuery{From: "甲城", To: "乙城", Date: date})
		if err != nil {
			t.Fatalf("Search(%s) failed: %v", date, err)
		}
		for _, ticket := range page.Data {
			if seen[ticket.TrainNo] {
				t.Errorf("train number %s generated twice", ticket.TrainNo)
			}
			seen[ticket.TrainNo] = true
		}
	}
	if len(seen) != 20 {
		t.Errorf("got %d distinct trains, want 20", len(seen))
	}
}

func TestSearch_FallbackSkipsSeededTrainNumbers(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	from := env.station(t, "甲城")
	other := env.station(t, "丙城")
	// D7101 is what the eleventh batch would mint at row 1
	env.seed(t, "D7101", from, other, "2026-11-30", "07:00", "08:00")

	seen := map[string]bool{"D7101": true}
	for day := 1; day <= 12; day++ {
		date := "2026-12-" + strconv.Itoa(10+day)
		page, err := env.engine.Search(ctx, models.TicketQuery{From: "甲城", To: "乙城", Date: date})
		if err != nil {
			t.Fatalf("Search(%s) failed: %v", date, err)
		}
		if page.Meta.TotalItems != 10 {
			t.Fatalf("Search(%s) totalItems = %d, want 10", date, page.Meta.TotalItems)
		}
		for _, ticket := range page.Data {
			if seen[ticket.TrainNo] {
				t.Errorf("train number %s used twice", ticket.TrainNo)
			}
			seen[ticket.TrainNo] = true
		}
	}
}

func TestSearch_UnknownStationWithoutProvisioning(t *testing.T) {
	env := newTestEnv(t, false)
	env.station(t, "广州")

	page, err := env.engine.Search(context.Background(), models.TicketQuery{From: "广州", To: "火星", Date: today()})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.Meta.TotalItems != 0 || len(page.Data) != 0 {
		t.Errorf("expected empty page, got %+v", page.Meta)
	}
}

func TestSearch_CacheReplay(t *testing.T) {
	env := newTestEnv(t, true)
	gz := env.station(t, "广州")
	sz := env.station(t, "深圳")
	env.seed(t, "G9001", gz, sz, today(), "08:00", "10:00")

	q := models.TicketQuery{From: "广州", To: "深圳", Date: today()}
	first, err := env.engine.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}

	// rows added after the first answer stay hidden until the entry expires
	env.seed(t, "G9003", gz, sz, today(), "09:00", "11:00")

	second, err := env.engine.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("second identical search should replay the cached page")
	}
	if second.Meta.TotalItems != 1 {
		t.Errorf("totalItems = %d, want cached 1", second.Meta.TotalItems)
	}
}

func TestSearch_EmptyAnswerIsRederived(t *testing.T) {
	env := newTestEnv(t, true)
	gz := env.station(t, "广州")
	sz := env.station(t, "深圳")
	date := "2026-11-05"

	// no Z trains exist, even after fallback fills the route
	q := models.TicketQuery{From: "广州", To: "深圳", Date: date, TrainTypes: []string{"Z"}}
	first, err := env.engine.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if first.Meta.TotalItems != 0 {
		t.Fatalf("first totalItems = %d, want 0", first.Meta.TotalItems)
	}

	env.seed(t, "Z99", gz, sz, date, "21:00", "07:00")

	second, err := env.engine.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if second.Meta.TotalItems != 1 || second.Data[0].TrainNo != "Z99" {
		t.Errorf("empty answer was replayed: %+v", second.Meta)
	}
}

func TestSearch_TrainTypeFilter(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	page, err := env.engine.Search(ctx, models.TicketQuery{From: "甲城", To: "乙城", Date: "2026-11-01", TrainTypes: []string{"D"}})
	if err != nil {
		t.Fatal(err)
	}
	if page.Meta.TotalItems != 3 {
		t.Errorf("totalItems = %d, want 3 D trains", page.Meta.TotalItems)
	}
	for _, ticket := range page.Data {
		if !strings.HasPrefix(ticket.TrainNo, "D") {
			t.Errorf("train %s leaked through D filter", ticket.TrainNo)
		}
	}
}

func TestSearch_SeatFilterShrinksPageOnly(t *testing.T) {
	env := newTestEnv(t, true)

	page, err := env.engine.Search(context.Background(), models.TicketQuery{
		From: "甲城", To: "乙城", Date: "2026-11-01", SeatTypes: []string{seats.HardSeat},
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Meta.TotalItems != 10 {
		t.Errorf("totalItems = %d, want uncorrected 10", page.Meta.TotalItems)
	}
	if len(page.Data) != 4 {
		t.Errorf("got %d items, want the 4 K/T trains", len(page.Data))
	}
	for _, ticket := range page.Data {
		if !seats.Has(ticket.Seats, seats.HardSeat) {
			t.Errorf("train %s has no %s", ticket.TrainNo, seats.HardSeat)
		}
	}
}

func TestSearch_PriceSort(t *testing.T) {
	tests := []struct {
		name      string
		seatTypes []string
		category  string
	}{
		{"default category", nil, seats.Second},
		{"requested category", []string{seats.HardSeat}, seats.HardSeat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			page, err := env.engine.Search(context.Background(), models.TicketQuery{
				From: "甲城", To: "乙城", Date: "2026-11-01",
				Sort: models.SortPriceAsc, SeatTypes: tt.seatTypes,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(page.Data) == 0 {
				t.Fatal("no items")
			}

			prev := math.MinInt
			for _, ticket := range page.Data {
				p := offeringPrice(ticket.Seats, tt.category)
				if p < prev {
					t.Errorf("prices not ascending at %s: %d after %d", ticket.TrainNo, p, prev)
				}
				prev = p
			}
		})
	}
}

func TestSearch_MatrixConsistency(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	q := models.TicketQuery{From: "甲城", To: "乙城", Date: "2026-11-01"}

	flat, err := env.engine.Search(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	agg, err := env.engine.SearchAggregated(ctx, q)
	if err != nil {
		t.Fatal(err)
	}

	rows := map[string]models.TicketRow{}
	for _, r := range agg.Data {
		rows[r.TrainNo] = r
		if len(r.Seats) != len(seats.Canonical()) {
			t.Errorf("%s matrix has %d cells, want %d", r.TrainNo, len(r.Seats), len(seats.Canonical()))
		}
	}

	for _, ticket := range flat.Data {
		row, ok := rows[ticket.TrainNo]
		if !ok {
			t.Errorf("train %s missing from aggregated result", ticket.TrainNo)
			continue
		}
		for _, o := range ticket.Seats {
			cell := row.Seats[o.Type]
			if cell.Status != o.Status {
				t.Errorf("%s %s status flat=%s aggregated=%s", ticket.TrainNo, o.Type, o.Status, cell.Status)
			}
			if (cell.Price == nil) != (o.Price == nil) || (cell.Price != nil && *cell.Price != *o.Price) {
				t.Errorf("%s %s price differs", ticket.TrainNo, o.Type)
			}
		}
	}
}

func TestSearchAggregated_Facets(t *testing.T) {
	env := newTestEnv(t, true)
	south := env.station(t, "广州南")
	east := env.station(t, "广州东")
	sz := env.station(t, "深圳北")
	date := "2026-11-03"
	env.seed(t, "G9001", south, sz, date, "08:00", "08:40")
	env.seed(t, "D9002", east, sz, date, "09:00", "10:10")

	page, err := env.engine.SearchAggregated(context.Background(), models.TicketQuery{
		From: "广州", To: "深圳", Date: date, FromStations: []string{"广州东"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if page.Meta.TotalItems != 1 || len(page.Data) != 1 || page.Data[0].TrainNo != "D9002" {
		t.Errorf("station filter not applied: %+v", page.Data)
	}
	if got := page.Filters.DepartureStations; len(got) != 2 {
		t.Errorf("departure facets = %v, want both Guangzhou stations", got)
	}
	if got := page.Filters.ArrivalStations; len(got) != 1 || got[0] != "深圳北" {
		t.Errorf("arrival facets = %v", got)
	}
	if len(page.Filters.SeatTypes) != len(seats.Canonical()) {
		t.Errorf("seat type facets = %v", page.Filters.SeatTypes)
	}
	if page.Data[0].Seats[seats.HardSeat].Status != seats.StatusAbsent {
		t.Error("fast train should report hard seat as absent")
	}
}

func TestSearch_ConcurrentFallbackRunsOnce(t *testing.T) {
	env := newTestEnv(t, true)
	from := env.station(t, "甲城")
	to := env.station(t, "乙城")
	date := "2026-12-01"

	const workers = 8
	var wg sync.WaitGroup
	totals := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// distinct page sizes defeat the result cache
			page, err := env.engine.Search(context.Background(), models.TicketQuery{
				From: "甲城", To: "乙城", Date: date, PageSize: 10 + i,
			})
			errs[i] = err
			if page != nil {
				totals[i] = page.Meta.TotalItems
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if totals[i] != 10 {
			t.Errorf("worker %d saw %d trains, want 10", i, totals[i])
		}
	}

	batches, err := env.schedules.CountFallbackBatches(context.Background(), from.ID, to.ID, date)
	if err != nil {
		t.Fatal(err)
	}
	if batches != 1 {
		t.Errorf("fallback batches = %d, want 1", batches)
	}
}

func TestBuildFallbackRows(t *testing.T) {
	rows := BuildFallbackRows(1, 2, "2026-11-01", "batch", 2, 10)
	if len(rows) != 10 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].TrainNo != "G7020" || rows[3].TrainNo != "T7023" {
		t.Errorf("train numbers = %s, %s", rows[0].TrainNo, rows[3].TrainNo)
	}
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			t.Errorf("row %s invalid: %v", r.TrainNo, err)
		}
		want, _ := models.DurationBetween(r.DepartureTime, r.ArrivalTime)
		if want != r.DurationMinutes {
			t.Errorf("%s duration %d does not match %s-%s", r.TrainNo, r.DurationMinutes, r.DepartureTime, r.ArrivalTime)
		}
	}
}

// blockingStore holds InsertFallbackBatch until release is closed and then
// fails if the flight context was cancelled.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) InsertFallbackBatch(ctx context.Context, batch repository.FallbackBatch, build repository.BatchBuilder) (int, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(build(0)), nil
}

func TestGenerator_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	gen := NewGenerator(store, 10, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		n   int
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		n, err := gen.EnsureNonEmpty(firstCtx, 1, 2, "2026-12-01")
		first <- result{n, err}
	}()
	<-store.entered

	go func() {
		n, err := gen.EnsureNonEmpty(context.Background(), 1, 2, "2026-12-01")
		second <- result{n, err}
	}()
	// let the second caller join the running flight
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(store.release)

	for name, ch := range map[string]chan result{"first": first, "second": second} {
		r := <-ch
		if r.err != nil {
			t.Errorf("%s caller failed: %v", name, r.err)
		}
		if r.n != 10 {
			t.Errorf("%s caller saw %d rows, want 10", name, r.n)
		}
	}
}
