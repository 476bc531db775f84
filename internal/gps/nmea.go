// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Decoder accumulates NMEA sentences into fixes. RMC completes a fix; GGA
// contributes altitude and satellite data to the next one.
type Decoder struct {
	current Fix
}

// Decode parses one line and returns a fix when the line was an RMC
// sentence. Lines that are not NMEA or fail the checksum are skipped.
func (d *Decoder) Decode(line string) (Fix, bool) {
	line = strings.TrimSpace(line)
	// NMEA sentences usually start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		d.current.Time = m.Time.String()
		d.current.Date = m.Date.String()
		d.current.TimeMillis = fixTime(m.Date, m.Time)
		d.current.Latitude = m.Latitude
		d.current.Longitude = m.Longitude
		d.current.SpeedKnots = m.Speed
		d.current.CourseDeg = m.Course
		d.current.Validity = string(m.Validity)
		return d.current, true

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		d.current.Altitude = m.Altitude
		d.current.Satellites = m.NumSatellites
		d.current.HDOP = m.HDOP
	}
	return Fix{}, false
}

// ReadFixes decodes lines from r and calls fn for every fix until r fails
// or ctx is canceled.
func ReadFixes(ctx context.Context, r io.Reader, fn func(Fix)) error {
	var dec Decoder
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			if f, ok := dec.Decode(line); ok {
				fn(f)
			}
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read nmea: %w", err)
		}
	}
}

// SerialConfig selects the receiver's port.
type SerialConfig struct {
	Port     string
	BaudRate uint
}

// OpenSerial opens the GPS receiver's serial port (8N1).
func OpenSerial(c SerialConfig) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              c.Port,
		BaudRate:              c.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open gps serial port %s: %w", c.Port, err)
	}
	return port, nil
}

// ReadSerial opens the port and streams fixes to fn until ctx is canceled.
func ReadSerial(ctx context.Context, c SerialConfig, fn func(Fix)) error {
	port, err := OpenSerial(c)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()
	return ReadFixes(ctx, port, fn)
}
