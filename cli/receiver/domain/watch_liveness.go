package domain

import (
	"context"
	"strconv"
	"time"

	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/alitagps/tk103/cli/receiver/broker"
	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/source"
	"github.com/alitagps/tk103/cli/receiver/types"
	"github.com/alitagps/tk103/libs/tk103"
)

// offlineThreshold is how long a device may stay silent before it is
// declared offline.
const offlineThreshold = 20 * time.Minute

// WatchLiveness periodically sweeps the last-location cache for devices
// that went silent, resolves their vehicles and raises one DEVICE_DOWN
// event per sweep. The sweep only reads the cache; a stale entry is never
// evicted.
type WatchLiveness struct {
	Cache    *LastLocationCache
	Source   source.Primary
	Broker   broker.Broker // nil when the broker integration is disabled
	Events   *queue.Events
	Interval time.Duration

	ctx           context.Context
	cronScheduler *cron.Cron
}

// Start runs the first sweep synchronously, then schedules the periodic
// sweep. Ticks never overlap: a sweep still running delays the next one.
func (w *WatchLiveness) Start(ctx context.Context) error {
	w.ctx = ctx
	w.cronScheduler = cron.New(cron.WithChain(
		cron.DelayIfStillRunning(cron.PrintfLogger(log.StandardLogger())),
	))

	w.cronScheduler.Schedule(cron.Every(w.Interval), cron.FuncJob(w.Sweep))
	w.cronScheduler.Start()
	log.Infof("Device liveness watch scheduled every %s", w.Interval)

	w.Sweep()
	return nil
}

func (w *WatchLiveness) Stop() {
	if w.cronScheduler != nil {
		<-w.cronScheduler.Stop().Done()
	}
}

// Sweep flags every device whose cached fix is older than the offline
// threshold. Per-device resolution failures are logged and do not abort the
// remainder of the sweep.
func (w *WatchLiveness) Sweep() {
	var offline []types.Vehicle

	for imei, entry := range w.Cache.Snapshot() {
		if time.Since(entry.Timestamp) <= offlineThreshold {
			continue
		}

		vehicle, err := w.Source.GetVehicle(imei)
		if err != nil {
			log.WithField("imei", imei).Errorf("Failed to resolve offline vehicle: %v", err)
			continue
		}
		if vehicle == nil {
			continue
		}

		offline = append(offline, *vehicle)
		if w.Broker != nil {
			payload := []byte(strconv.Itoa(tk103.DeviceOffline))
			if err := w.Broker.Publish(broker.StatusSubject(imei), payload); err != nil {
				log.WithField("imei", imei).Errorf("Failed to publish offline status: %v", err)
			}
		}
	}

	if len(offline) == 0 {
		return
	}

	log.Warnf("Declaring %d devices offline", len(offline))
	msg := types.Message{
		Type:      types.DeviceDown,
		Timestamp: time.Now(),
		Vehicles:  offline,
	}
	if err := w.Events.Put(w.ctx, msg); err != nil {
		log.WithField("err", err).Error("Failed to report offline devices")
	}
}
