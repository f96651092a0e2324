package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"
)

/*
TK103 frame generator.

Builds a login frame (optionally followed by continuous-feedback segments)
from the given parameters, sends it to a receiver and prints the response.

Usage:
  -device string
    	12-character device id (require)
  -imei int
    	Device imei (require)
  -lat float
    	Latitude in decimal degrees
  -lon float
    	Longitude in decimal degrees
  -speed float
    	Speed
  -heading float
    	Heading
  -feedback int
    	Number of continuous-feedback segments appended to the login frame
  -control string
    	Send a control command (STATUS, SHUTDOWN, PING) instead of a frame
  -server string
    	Receiver address in format <ip>:<port> (default "localhost:5555")
  -timeout int
    	Response waiting time in seconds (default 5)

Example

```
./frame-gen --device 013612345678 --imei 13612345678 --lat 6.9271 --lon 79.8612 --server localhost:5555
```
*/

func main() {
	device := ""
	imei := 0
	lat := 0.0
	lon := 0.0
	speed := 0.0
	heading := 0.0
	feedback := 0
	control := ""
	server := ""
	timeout := 0

	flag.StringVar(&device, "device", "", "12-character device id (require)")
	flag.IntVar(&imei, "imei", 0, "Device imei (require)")
	flag.Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	flag.Float64Var(&lon, "lon", 0, "Longitude in decimal degrees")
	flag.Float64Var(&speed, "speed", 0, "Speed")
	flag.Float64Var(&heading, "heading", 0, "Heading")
	flag.IntVar(&feedback, "feedback", 0, "Number of continuous-feedback segments")
	flag.StringVar(&control, "control", "", "Send a control command (STATUS, SHUTDOWN, PING) instead of a frame")
	flag.StringVar(&server, "server", "localhost:5555", "Receiver address in format <ip>:<port>")
	flag.IntVar(&timeout, "timeout", 5, "Response waiting time in seconds")

	flag.Parse()

	var payload string
	switch {
	case control != "":
		payload = control
	default:
		if len(device) != 12 {
			fmt.Println("A 12-character device id is required, see help (-h)")
			os.Exit(1)
		}
		if imei == 0 {
			fmt.Println("An imei is required, see help (-h)")
			os.Exit(1)
		}
		payload = buildLoginFrame(device, imei, lat, lon, speed, heading)
		for i := 0; i < feedback; i++ {
			payload += buildFeedbackFrame(device, lat, lon, speed, heading)
		}
	}

	conn, err := net.Dial("tcp", server)
	if err != nil {
		fmt.Println("Failed to connect: ", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(payload)); err != nil {
		fmt.Println("Failed to write to the server: ", err)
		os.Exit(1)
	}

	buf := make([]byte, 1024)
	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(timeout) * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		fmt.Println("Failed to read from the server: ", err)
		os.Exit(1)
	}

	fmt.Printf("Response: %s\n", buf[:n])
}

func buildLoginFrame(device string, imei int, lat, lon, speed, heading float64) string {
	now := time.Now().UTC()
	return "(" + device + "BP05" +
		fmt.Sprintf("%015d", imei) +
		now.Format("060102") + "A" +
		formatCoordinate(lat, 2) + "N" +
		formatCoordinate(lon, 3) + "E" +
		fmt.Sprintf("%05.1f", speed) +
		now.Format("150405") +
		fmt.Sprintf("%06.2f", heading) +
		"00000000L00000000" + ")"
}

func buildFeedbackFrame(device string, lat, lon, speed, heading float64) string {
	now := time.Now().UTC()
	return "(" + device + "BR00" +
		now.Format("060102") + "A" +
		formatCoordinate(lat, 2) + "N" +
		formatCoordinate(lon, 3) + "E0" +
		fmt.Sprintf("%05.1f", speed) +
		now.Format("150405") +
		fmt.Sprintf("%06.2f", heading) +
		"00000000L0000000" + ")"
}

// formatCoordinate renders decimal degrees as the fixed-width DM field the
// tracker emits: whole degrees padded to degreeDigits, then minutes with
// four decimals.
func formatCoordinate(value float64, degreeDigits int) string {
	degrees := int(value)
	minutes := (value - float64(degrees)) * 60
	return fmt.Sprintf("%0*d%07.4f", degreeDigits, degrees, minutes)
}
