package acled

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/fetcher"
	"github.com/sells-group/acled-ingest/internal/fetcher/mocks"
	"github.com/sells-group/acled-ingest/internal/geo"
	"github.com/sells-group/acled-ingest/internal/schema"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type recordingSink struct {
	saveErr error
	batches [][]schema.Record
}

func (s *recordingSink) Init(context.Context) error { return nil }

func (s *recordingSink) Save(_ context.Context, records []schema.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.batches = append(s.batches, records)
	return nil
}

// fakeAPI serves pages[iso] as consecutive pages, then count 0. status, when
// non-zero, is returned for every request instead.
type fakeAPI struct {
	mu       sync.Mutex
	pages    map[string][]int // iso -> records per page
	status   int
	requests []string // "iso:page"
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	iso, pg := q.Get("iso"), q.Get("page")

	f.mu.Lock()
	f.requests = append(f.requests, iso+":"+pg)
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	n, _ := strconv.Atoi(pg)
	sizes := f.pages[iso]
	if n < 1 || n > len(sizes) {
		_, _ = io.WriteString(w, `{"success":true,"count":0,"data":[]}`)
		return
	}

	rows := make([]string, sizes[n-1])
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"event_id_cnty":"%s-%s-%d","fatalities":"%d","latitude":"33.5","longitude":65.25}`, iso, pg, i, i)
	}
	fmt.Fprintf(w, `{"success":true,"count":%d,"data":[%s]}`, len(rows), strings.Join(rows, ","))
}

func testConfig(url string, regions ...RegionCode) Config {
	return Config{
		URL:     url,
		Email:   "analyst@example.com",
		Key:     "secret-key",
		Regions: regions,
		Dates: DateRange{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newTestSource(t *testing.T, api *fakeAPI, regions ...RegionCode) *Source {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	src, err := NewSource(testConfig(srv.URL, regions...), fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
	require.NoError(t, err)
	return src
}

func TestFetchAndStore_PaginationTerminates(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{"4": {3, 2, 1}}}
	src := newTestSource(t, api, RegionCode{ISO3: "AFG", Code: 4})
	sink := &recordingSink{}

	require.NoError(t, src.FetchAndStore(context.Background(), sink))

	assert.Equal(t, []string{"4:1", "4:2", "4:3", "4:4"}, api.requests)
	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 3)
	assert.Len(t, sink.batches[1], 2)
	assert.Len(t, sink.batches[2], 1)
}

func TestFetchAndStore_EmptyRegion(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{}}
	src := newTestSource(t, api, RegionCode{ISO3: "AFG", Code: 4})
	sink := &recordingSink{}

	require.NoError(t, src.FetchAndStore(context.Background(), sink))
	assert.Equal(t, []string{"4:1"}, api.requests)
	assert.Empty(t, sink.batches)
}

func TestFetchAndStore_RegionsInOrder(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{"368": {1}, "4": {2, 2}}}
	src := newTestSource(t, api,
		RegionCode{ISO3: "IRQ", Code: 368},
		RegionCode{ISO3: "AFG", Code: 4},
	)
	sink := &recordingSink{}

	require.NoError(t, src.FetchAndStore(context.Background(), sink))

	assert.Equal(t, []string{"368:1", "368:2", "4:1", "4:2", "4:3"}, api.requests)
	require.Len(t, sink.batches, 3)
	assert.Equal(t, "368-1-0", sink.batches[0][0]["event_id_cnty"])
	assert.Equal(t, "4-1-0", sink.batches[1][0]["event_id_cnty"])
	assert.Equal(t, "4-2-0", sink.batches[2][0]["event_id_cnty"])
}

func TestFetchAndStore_ProjectsGeometry(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{"4": {1}}}
	src := newTestSource(t, api, RegionCode{ISO3: "AFG", Code: 4})
	sink := &recordingSink{}

	require.NoError(t, src.FetchAndStore(context.Background(), sink))
	require.Len(t, sink.batches, 1)

	rec := sink.batches[0][0]
	pt, err := geo.Decode(rec["geom"].(string))
	require.NoError(t, err)
	assert.Equal(t, 65.25, pt.X())
	assert.Equal(t, 33.5, pt.Y())
}

func TestFetchAndStore_ServerErrorIsFatal(t *testing.T) {
	api := &fakeAPI{status: http.StatusInternalServerError}
	src := newTestSource(t, api,
		RegionCode{ISO3: "AFG", Code: 4},
		RegionCode{ISO3: "IRQ", Code: 368},
	)
	sink := &recordingSink{}

	err := src.FetchAndStore(context.Background(), sink)
	require.Error(t, err)

	var se *fetcher.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, []string{"4:1"}, api.requests)
	assert.Empty(t, sink.batches)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestFetchAndStore_SaveErrorStops(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{"4": {1, 1}}}
	src := newTestSource(t, api, RegionCode{ISO3: "AFG", Code: 4})
	sink := &recordingSink{saveErr: errors.New("db down")}

	err := src.FetchAndStore(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, []string{"4:1"}, api.requests)
}

func TestFetchAndStore_CancelledContext(t *testing.T) {
	api := &fakeAPI{pages: map[string][]int{"4": {1}}}
	src := newTestSource(t, api, RegionCode{ISO3: "AFG", Code: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.FetchAndStore(ctx, &recordingSink{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.requests)
}

func TestFetchAndStore_MissingCoordinatesFails(t *testing.T) {
	f := mocks.NewMockFetcher(t)
	f.On("Download", mock.Anything, mock.Anything).
		Return(io.NopCloser(strings.NewReader(`{"count":1,"data":[{"event_id_cnty":"AFG1","latitude":"1.0"}]}`)), nil).
		Once()

	src, err := NewSource(testConfig("https://api.example.com/acled/read", RegionCode{ISO3: "AFG", Code: 4}), f)
	require.NoError(t, err)

	sink := &recordingSink{}
	err = src.FetchAndStore(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing longitude")
	assert.Empty(t, sink.batches)
}

func TestFetchAndStore_RequestParameters(t *testing.T) {
	f := mocks.NewMockFetcher(t)
	f.On("Download", mock.Anything, mock.MatchedBy(func(u string) bool {
		return strings.Contains(u, "page=1") &&
			strings.Contains(u, "iso=4") &&
			strings.Contains(u, "event_date=2023-01-01%7C2023-12-31") &&
			strings.Contains(u, "event_date_where=BETWEEN") &&
			strings.Contains(u, "key=secret-key") &&
			strings.Contains(u, "email=analyst%40example.com")
	})).Return(io.NopCloser(strings.NewReader(`{"count":0}`)), nil).Once()

	src, err := NewSource(testConfig("https://api.example.com/acled/read", RegionCode{ISO3: "AFG", Code: 4}), f)
	require.NoError(t, err)
	require.NoError(t, src.FetchAndStore(context.Background(), &recordingSink{}))
}

func TestNewSource_Validation(t *testing.T) {
	f := mocks.NewMockFetcher(t)

	_, err := NewSource(Config{}, f)
	assert.Error(t, err)

	_, err = NewSource(Config{URL: "http://x"}, nil)
	assert.Error(t, err)

	_, err = NewSource(Config{URL: "http://x", Types: schema.MustNew(schema.Field{Name: "a"})}, f)
	assert.ErrorIs(t, err, schema.ErrNoGeometry)
}

func TestSource_Regions(t *testing.T) {
	src, err := NewSource(testConfig("http://x", RegionCode{ISO3: "AFG", Code: 4}), mocks.NewMockFetcher(t))
	require.NoError(t, err)

	regions := src.Regions()
	regions[0].ISO3 = "changed"
	assert.Equal(t, "AFG", src.Regions()[0].ISO3)
}
