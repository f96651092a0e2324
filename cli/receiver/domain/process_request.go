package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alitagps/tk103/cli/receiver/broker"
	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/storage"
	"github.com/alitagps/tk103/cli/receiver/types"
	"github.com/alitagps/tk103/cli/receiver/util"
	"github.com/alitagps/tk103/libs/tk103"
)

// ProcessRequests is the single consumer of the request queue: it decodes
// raw frames, computes inter-fix distances against the cache, persists OK
// fixes and publishes to the broker. One failing request never stops the
// loop.
type ProcessRequests struct {
	Requests *queue.Requests
	Events   *queue.Events
	Cache    *LastLocationCache
	Store    storage.Saver
	Broker   broker.Broker // nil when the broker integration is disabled
}

func (p *ProcessRequests) Run(ctx context.Context) {
	log.Info("Request processor started")
	for {
		frame, err := p.Requests.Take(ctx)
		if err != nil {
			log.Info("Request processor stopped")
			return
		}
		p.handle(ctx, frame)
	}
}

func (p *ProcessRequests) handle(ctx context.Context, frame string) {
	defer func() {
		if r := recover(); r != nil {
			p.critical(ctx, fmt.Errorf("panic while processing request: %v", r))
		}
	}()

	for _, loc := range tk103.Decode(frame) {
		switch loc.Type {
		case tk103.LocationOK:
			if err := p.handleFix(loc); err != nil {
				p.critical(ctx, err)
			}
		case tk103.LocationUnavailable, tk103.LocationUndefined:
			if err := p.publishStatus(loc.IMEI, loc.Type); err != nil {
				p.critical(ctx, err)
			}
		case tk103.InvalidRequest:
			// Not attributable to any device, nothing to do.
		}
	}
}

func (p *ProcessRequests) handleFix(loc tk103.Location) error {
	previous, ok := p.Cache.Get(loc.IMEI)
	if !ok {
		// First fix for this imei: seed the no-prior-fix sentinel so the
		// distance below resolves to zero.
		previous = LastLocation{Timestamp: loc.Timestamp}
		p.Cache.Put(loc.IMEI, previous)
	}

	if previous.HasFix() {
		loc.Distance = util.Distance(previous.Latitude, previous.Longitude, loc.Latitude, loc.Longitude)
	}

	if err := p.Store.Save(&loc); err != nil {
		return fmt.Errorf("failed to persist location for %d: %v", loc.IMEI, err)
	}

	if p.Broker != nil {
		payload, err := json.Marshal(loc)
		if err != nil {
			return fmt.Errorf("failed to serialize location for %d: %v", loc.IMEI, err)
		}
		if err := p.Broker.Publish(broker.CoordinateSubject(loc.IMEI), payload); err != nil {
			return err
		}
		if err := p.publishStatus(loc.IMEI, tk103.LocationOK); err != nil {
			return err
		}
	}

	p.Cache.Put(loc.IMEI, LastLocation{
		Timestamp: loc.Timestamp,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	})
	return nil
}

func (p *ProcessRequests) publishStatus(imei uint64, status int) error {
	if p.Broker == nil {
		return nil
	}
	return p.Broker.Publish(broker.StatusSubject(imei), []byte(strconv.Itoa(status)))
}

func (p *ProcessRequests) critical(ctx context.Context, cause error) {
	log.WithField("err", cause).Error("Request processing failure")
	msg := types.Message{
		Type:      types.CriticalServerFailure,
		Text:      cause.Error(),
		Timestamp: time.Now(),
	}
	if err := p.Events.Put(ctx, msg); err != nil {
		log.WithField("err", err).Error("Failed to report processing failure")
	}
}
