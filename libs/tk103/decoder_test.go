package tk103

import (
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLoginSegment assembles a paren-stripped BP05 segment of exactly 93
// characters with the given field values.
func buildLoginSegment(deviceID, imei, lat, lon, speed, heading string) string {
	s := deviceID + // [0,12) device id
		"BP05" + // [12,16) command
		imei + // [16,31) imei
		"240101A" + // [31,38) date + fix validity
		lat + // [38,47) latitude, DM
		"N" + // [47,48) hemisphere
		lon + // [48,58) longitude, DM
		"E" + // [58,59) hemisphere
		speed + // [59,64) speed
		"123456" + // [64,70) time
		heading + // [70,76) heading
		"00000000L00000000"
	return s
}

func buildFeedbackSegment(deviceID, lat, lon, speed, heading string) string {
	s := deviceID + // [0,12) device id
		"BR00" + // [12,16) command
		"240101A" + // [16,23) date + fix validity
		lat + // [23,32) latitude, DM
		"N" + // [32,33) hemisphere
		lon + // [33,43) longitude, DM
		"E0" + // [43,45)
		speed + // [45,50) speed
		"123456" + // [50,56) time
		heading + // [56,62) heading
		"00000000L0000000"
	return s
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	m.Run()
}

func TestSegmentBuildersLength(t *testing.T) {
	require.Len(t, buildLoginSegment("013612345678", "000013612345678", "0653.0152", "07957.0689", "000.0", "000.00"), 93)
	require.Len(t, buildFeedbackSegment("013612345678", "0653.0152", "07957.0689", "000.0", "000.00"), 78)
}

func TestIsValidFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		valid bool
	}{
		{"plain digits", "(013612345678BP05)", true},
		{"no fix marker V", "(013612345678BR00240101V)", false},
		{"opening brace", "{013612345678}", false},
		{"closing brace only", "013612345678}", false},
		{"double comma", "(0136,,123456)", false},
		{"single commas allowed", "(0136,12,3456)", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidFrame(tt.frame))
		})
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantType int
	}{
		{"empty frame", "", InvalidRequest},
		{"single character", "(", InvalidRequest},
		{"no fix", "(013612345678BR00240101V0000.0000N00000.0000E000.0123456000.000000000L)", LocationUnavailable},
		{"opening brace", "(01361234{678BP05)", LocationUndefined},
		{"closing brace", "(01361234}678BP05)", LocationUndefined},
		{"double comma", "(0136123,,678BP05)", LocationUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locations := Decode(tt.frame)
			require.Len(t, locations, 1)
			assert.Equal(t, tt.wantType, locations[0].Type)
			assert.Zero(t, locations[0].IMEI)
			assert.Zero(t, locations[0].Latitude)
			assert.Zero(t, locations[0].Longitude)
		})
	}
}

func TestDecodeNoLoginMarker(t *testing.T) {
	// A frame passing the no-fix checks but holding no BP05 produces nothing.
	assert.Empty(t, Decode("(013612345678BR00240101A0653.0152N07957.0689E0000.0123456000.0000000000L000000)"))
}

func TestDecodeLogin(t *testing.T) {
	segment := buildLoginSegment("013612345678", "000013612345678", "0653.0152", "07957.0689", "023.5", "179.50")
	locations := Decode("(" + segment + ")")
	require.Len(t, locations, 1)

	loc := locations[0]
	assert.Equal(t, LocationOK, loc.Type)
	assert.Equal(t, uint64(13612345678), loc.IMEI)
	assert.Equal(t, 6+53.0152/60, loc.Latitude)
	assert.Equal(t, 79+57.0689/60, loc.Longitude)
	assert.Equal(t, 23.5, loc.Speed)
	assert.Equal(t, 179.50, loc.Heading)
	assert.False(t, loc.Timestamp.IsZero())
}

func TestDecodeCompositeFrame(t *testing.T) {
	t0 := time.Date(2024, time.January, 1, 12, 34, 56, 0, time.UTC)
	oldNow := now
	now = func() time.Time { return t0 }
	defer func() { now = oldNow }()

	login := buildLoginSegment("013612345678", "000013612345678", "0653.0152", "07957.0689", "000.0", "000.00")
	fb1 := buildFeedbackSegment("013612345678", "0654.1000", "07958.2000", "010.0", "090.00")
	fb2 := buildFeedbackSegment("013612345678", "0655.3000", "07959.4000", "020.0", "180.00")

	locations := Decode("(" + login + ")(" + fb1 + ")(" + fb2 + ")")
	require.Len(t, locations, 3)

	for _, loc := range locations {
		assert.Equal(t, LocationOK, loc.Type)
		assert.Equal(t, uint64(13612345678), loc.IMEI)
	}
	assert.Equal(t, t0, locations[0].Timestamp)
	assert.Equal(t, t0.Add(10*time.Second), locations[1].Timestamp)
	assert.Equal(t, t0.Add(20*time.Second), locations[2].Timestamp)

	assert.Equal(t, 6+54.1/60, locations[1].Latitude)
	assert.Equal(t, 79+58.2/60, locations[1].Longitude)
	assert.Equal(t, 10.0, locations[1].Speed)
	assert.Equal(t, 90.0, locations[1].Heading)
}

func TestDecodeSkipsBrokenSegment(t *testing.T) {
	login := buildLoginSegment("013612345678", "000013612345678", "0653.0152", "07957.0689", "000.0", "000.00")
	truncated := "013612345678BR00240101A0653.0152N" // wrong length, must be skipped
	fb := buildFeedbackSegment("013612345678", "0654.1000", "07958.2000", "010.0", "090.00")

	locations := Decode("(" + login + ")(" + truncated + ")(" + fb + ")")
	require.Len(t, locations, 2)
	assert.Equal(t, uint64(13612345678), locations[1].IMEI)
}

func TestDecodeNonNumericImei(t *testing.T) {
	// A non-numeric imei field is a decode failure for that segment, not a
	// zero imei.
	segment := buildLoginSegment("013612345678", "00001361234567X", "0653.0152", "07957.0689", "000.0", "000.00")
	assert.Empty(t, Decode("("+segment+")"))
}

func TestResponses(t *testing.T) {
	assert.Equal(t, "(000000001234AP05)", LoginResponse("000000001234"))
	assert.Equal(t, "(000000001234AP01HSO)", HandshakeResponse("000000001234"))
	assert.Equal(t, "No", FeedbackResponse)
}
