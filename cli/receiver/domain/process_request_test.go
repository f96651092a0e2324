package domain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/types"
	"github.com/alitagps/tk103/libs/tk103"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	m.Run()
}

type mockSaver struct {
	saved []tk103.Location
	err   error
}

func (ms *mockSaver) Save(loc *tk103.Location) error {
	if ms.err != nil {
		return ms.err
	}
	ms.saved = append(ms.saved, *loc)
	return nil
}

type mockBroker struct {
	published map[string][]byte
}

func newMockBroker() *mockBroker {
	return &mockBroker{published: make(map[string][]byte)}
}

func (mb *mockBroker) Publish(subject string, payload []byte) error {
	mb.published[subject] = payload
	return nil
}

type mockPrimary struct {
	vehicles     map[uint64]*types.Vehicle
	lastFixes    map[uint64][2]float64
	vehicleErrs  map[uint64]error
	lastFixErrs  map[uint64]error
	allVehErr    error
	resolveCalls int
}

func (mp *mockPrimary) FindLastLocation(imei uint64) (float64, float64, error) {
	if err := mp.lastFixErrs[imei]; err != nil {
		return 0, 0, err
	}
	fix := mp.lastFixes[imei]
	return fix[0], fix[1], nil
}

func (mp *mockPrimary) GetVehicle(imei uint64) (*types.Vehicle, error) {
	mp.resolveCalls++
	if err := mp.vehicleErrs[imei]; err != nil {
		return nil, err
	}
	return mp.vehicles[imei], nil
}

func (mp *mockPrimary) GetAllVehicles() ([]types.Vehicle, error) {
	if mp.allVehErr != nil {
		return nil, mp.allVehErr
	}
	var all []types.Vehicle
	for _, v := range mp.vehicles {
		all = append(all, *v)
	}
	return all, nil
}

func newProcessor(saver *mockSaver, b *mockBroker) (*ProcessRequests, *queue.Events) {
	events := queue.NewEvents(10)
	p := &ProcessRequests{
		Requests: queue.NewRequests(10),
		Events:   events,
		Cache:    NewLastLocationCache(),
		Store:    saver,
	}
	if b != nil {
		p.Broker = b
	}
	return p, events
}

// okFrame builds a composite frame holding a single valid BP05 segment with
// the given DM coordinates.
func okFrame(lat, lon string) string {
	return "(" +
		"013612345678" + "BP05" + "000013612345678" + "240101A" +
		lat + "N" + lon + "E" + "000.0" + "123456" + "000.00" +
		"00000000L00000000" + ")"
}

func TestFirstFixHasZeroDistance(t *testing.T) {
	saver := &mockSaver{}
	p, _ := newProcessor(saver, nil)

	p.handle(context.Background(), okFrame("0653.0152", "07957.0689"))

	require.Len(t, saver.saved, 1)
	assert.Zero(t, saver.saved[0].Distance)

	entry, ok := p.Cache.Get(13612345678)
	require.True(t, ok)
	assert.Equal(t, 6+53.0152/60, entry.Latitude)
	assert.Equal(t, 79+57.0689/60, entry.Longitude)
}

func TestSecondFixHasPositiveDistance(t *testing.T) {
	saver := &mockSaver{}
	p, _ := newProcessor(saver, nil)

	p.handle(context.Background(), okFrame("0653.0152", "07957.0689"))
	p.handle(context.Background(), okFrame("0712.0000", "08035.0000"))

	require.Len(t, saver.saved, 2)
	assert.Greater(t, saver.saved[1].Distance, 0.0)
	// Roughly Colombo to Kandy, sanity-bound the great-circle result.
	assert.InDelta(t, 80, saver.saved[1].Distance, 40)

	entry, _ := p.Cache.Get(13612345678)
	assert.Equal(t, 7+12.0/60, entry.Latitude)
}

func TestFixPublishesCoordinatesAndStatus(t *testing.T) {
	saver := &mockSaver{}
	b := newMockBroker()
	p, _ := newProcessor(saver, b)

	p.handle(context.Background(), okFrame("0653.0152", "07957.0689"))

	payload, ok := b.published["COO.13612345678"]
	require.True(t, ok)
	var published tk103.Location
	require.NoError(t, json.Unmarshal(payload, &published))
	assert.Equal(t, tk103.LocationOK, published.Type)
	assert.Equal(t, uint64(13612345678), published.IMEI)

	assert.Equal(t, []byte("1"), b.published["REQSTATUS.13612345678"])
}

func TestNoFixPublishesStatusOnly(t *testing.T) {
	saver := &mockSaver{}
	b := newMockBroker()
	p, _ := newProcessor(saver, b)

	// Frame with the V marker: device has no GPS coverage.
	p.handle(context.Background(), "(013612345678BR00240101V0000.0000N00000.0000E000.0123456000.000000000L)")

	assert.Empty(t, saver.saved)
	assert.Equal(t, []byte("0"), b.published["REQSTATUS.0"])
	assert.NotContains(t, b.published, "COO.0")
}

func TestInvalidFrameIsDropped(t *testing.T) {
	saver := &mockSaver{}
	b := newMockBroker()
	p, events := newProcessor(saver, b)

	p.handle(context.Background(), "")

	assert.Empty(t, saver.saved)
	assert.Empty(t, b.published)
	assert.Zero(t, events.Len())
}

func TestPersistFailureRaisesCriticalEvent(t *testing.T) {
	saver := &mockSaver{err: errors.New("disk on fire")}
	p, events := newProcessor(saver, nil)

	p.handle(context.Background(), okFrame("0653.0152", "07957.0689"))

	msg, err := events.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CriticalServerFailure, msg.Type)
	assert.Contains(t, msg.Text, "disk on fire")
}

func TestLoopSurvivesFailures(t *testing.T) {
	saver := &mockSaver{err: errors.New("down")}
	p, _ := newProcessor(saver, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Requests.Put(ctx, okFrame("0653.0152", "07957.0689")))
	require.NoError(t, p.Requests.Put(ctx, okFrame("0654.0000", "07958.0000")))

	// Both requests must be consumed even though every save fails.
	assert.Eventually(t, func() bool { return p.Requests.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processing loop must stop on cancellation")
	}
}

func TestCacheWarm(t *testing.T) {
	src := &mockPrimary{
		vehicles: map[uint64]*types.Vehicle{
			1: {IMEI: 1, Plate: "CAB-1234"},
			2: {IMEI: 2, Plate: "CAB-5678"},
		},
		lastFixes: map[uint64][2]float64{
			1: {6.9271, 79.8612},
			2: {0, 0}, // never reported, must not be seeded
		},
	}

	cache := NewLastLocationCache()
	require.NoError(t, cache.Warm(src))

	entry, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, 6.9271, entry.Latitude)
	_, ok = cache.Get(2)
	assert.False(t, ok)
}
