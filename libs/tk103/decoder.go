package tk103

/*
TK103 is a plain-ASCII protocol. Every frame is wrapped in parentheses and
carries a 12-character device id at [1,13) followed by a 4-character command
code at [13,17). A login burst may arrive as one composite frame holding a
BP05 segment immediately followed by BR00 segments that repeat neither the
imei nor a timestamp; the device emits those on a 10 second cadence.
*/

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	CmdLogin              = "BP05"
	CmdHandshakeSignal    = "BP00"
	CmdContinuousFeedback = "BR00"

	cmdLoginResponse           = "AP05"
	cmdHandshakeSignalResponse = "AP01HSO"

	// FeedbackResponse is sent for every BR00 frame. The literal comes from
	// the device vendor's reference server; kept verbatim for wire
	// compatibility.
	FeedbackResponse = "No"

	loginFrameLen    = 93
	feedbackFrameLen = 78

	feedbackCadence = 10 * time.Second
)

// Device id and command offsets within a raw frame, end-exclusive.
const (
	DeviceIDStart = 1
	DeviceIDEnd   = 13
	CommandStart  = 13
	CommandEnd    = 17
)

// noFixMarkers appear only in frames sent by a device that has no GPS fix.
var noFixMarkers = []string{"V", "{", "}", ",,"}

var now = time.Now // for mocking time.Now() in tests

// LoginResponse builds the BP05 acknowledgement for a device id.
func LoginResponse(deviceID string) string {
	return "(" + deviceID + cmdLoginResponse + ")"
}

// HandshakeResponse builds the BP00 acknowledgement for a device id.
func HandshakeResponse(deviceID string) string {
	return "(" + deviceID + cmdHandshakeSignalResponse + ")"
}

// IsValidFrame reports whether the frame carries a usable fix. Any of the
// no-fix markers means the device is reporting without GPS coverage.
func IsValidFrame(frame string) bool {
	for _, m := range noFixMarkers {
		if strings.Contains(frame, m) {
			return false
		}
	}
	return true
}

// Decode turns one raw frame into zero or more locations. A composite frame
// is split on ')' and each segment decoded on its own; a segment failing
// fixed-width validation is logged and skipped without aborting its
// siblings. Frames without a BP05 marker produce nothing.
func Decode(frame string) []Location {
	var locations []Location

	if len(frame) <= 1 {
		return append(locations, Location{Type: InvalidRequest})
	}
	if strings.Contains(frame, "V") {
		return append(locations, Location{Type: LocationUnavailable})
	}
	if strings.Contains(frame, "{") || strings.Contains(frame, "}") || strings.Contains(frame, ",,") {
		return append(locations, Location{Type: LocationUndefined})
	}

	if !strings.Contains(frame, CmdLogin) {
		return locations
	}

	var (
		imei      uint64
		timestamp = now()
	)
	for _, segment := range strings.Split(frame, ")") {
		segment = strings.ReplaceAll(segment, "(", "")
		switch {
		case strings.Contains(segment, CmdLogin):
			decoded, err := decodeLogin(segment)
			if err != nil {
				log.WithField("segment", segment).Warnf("Skipping BP05 segment: %v", err)
				continue
			}
			imei = decoded.IMEI
			timestamp = decoded.Timestamp
			locations = append(locations, decoded)
		case strings.Contains(segment, CmdContinuousFeedback):
			decoded, err := decodeFeedback(segment)
			if err != nil {
				log.WithField("segment", segment).Warnf("Skipping BR00 segment: %v", err)
				continue
			}
			// BR00 segments repeat neither identity nor time: both are
			// carried over from the login segment of the same frame,
			// advancing one cadence tick per segment.
			timestamp = timestamp.Add(feedbackCadence)
			decoded.IMEI = imei
			decoded.Timestamp = timestamp
			locations = append(locations, decoded)
		}
	}
	return locations
}

func decodeLogin(segment string) (Location, error) {
	if len(segment) != loginFrameLen {
		return Location{}, fmt.Errorf("not a BP05 message: got %d characters, want %d", len(segment), loginFrameLen)
	}

	imei, err := strconv.ParseUint(segment[16:31], 10, 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad imei field: %v", err)
	}
	lat, err := parseCoordinate(segment[38:47], 2)
	if err != nil {
		return Location{}, fmt.Errorf("bad latitude field: %v", err)
	}
	lon, err := parseCoordinate(segment[48:58], 3)
	if err != nil {
		return Location{}, fmt.Errorf("bad longitude field: %v", err)
	}
	speed, err := strconv.ParseFloat(segment[59:64], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad speed field: %v", err)
	}
	heading, err := strconv.ParseFloat(segment[70:76], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad heading field: %v", err)
	}

	return Location{
		Type:      LocationOK,
		IMEI:      imei,
		Latitude:  lat,
		Longitude: lon,
		Speed:     speed,
		Heading:   heading,
		Timestamp: now(),
	}, nil
}

func decodeFeedback(segment string) (Location, error) {
	if len(segment) != feedbackFrameLen {
		return Location{}, fmt.Errorf("not a BR00 message: got %d characters, want %d", len(segment), feedbackFrameLen)
	}

	lat, err := parseCoordinate(segment[23:32], 2)
	if err != nil {
		return Location{}, fmt.Errorf("bad latitude field: %v", err)
	}
	lon, err := parseCoordinate(segment[33:43], 3)
	if err != nil {
		return Location{}, fmt.Errorf("bad longitude field: %v", err)
	}
	speed, err := strconv.ParseFloat(segment[45:50], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad speed field: %v", err)
	}
	heading, err := strconv.ParseFloat(segment[56:62], 64)
	if err != nil {
		return Location{}, fmt.Errorf("bad heading field: %v", err)
	}

	return Location{
		Type:      LocationOK,
		Latitude:  lat,
		Longitude: lon,
		Speed:     speed,
		Heading:   heading,
	}, nil
}

// parseCoordinate converts a degrees-minutes field to decimal degrees: the
// first degreeDigits characters are whole degrees, the remainder is minutes.
func parseCoordinate(field string, degreeDigits int) (float64, error) {
	if len(field) <= degreeDigits {
		return 0, fmt.Errorf("coordinate field %q too short", field)
	}
	degrees, err := strconv.ParseFloat(field[:degreeDigits], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(field[degreeDigits:], 64)
	if err != nil {
		return 0, err
	}
	return degrees + minutes/60, nil
}
