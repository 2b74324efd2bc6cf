// Package timinglog stores timing observations as CSV, one row per exchange:
//
//	password,client_mac,ap_mac,iterations,time_us
package timinglog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	dragonfly "github.com/backkem/dragonfly-go"
	"github.com/backkem/dragonfly-go/sidechannel"
)

// ErrMalformedLog indicates a row or header that cannot be parsed
var ErrMalformedLog = errors.New("malformed timing log")

var header = []string{"password", "client_mac", "ap_mac", "iterations", "time_us"}

// Record is one measured derivation
type Record struct {
	Secret      string
	Observation sidechannel.Observation
}

// Write writes the header and all records
func Write(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Secret,
			r.Observation.IDs.Local.String(),
			r.Observation.IDs.Peer.String(),
			strconv.Itoa(r.Observation.Iterations),
			strconv.FormatFloat(float64(r.Observation.Elapsed.Nanoseconds())/1e3, 'f', 1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a log written by Write
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedLog)
	}
	for i, h := range header {
		if rows[0][i] != h {
			return nil, fmt.Errorf("%w: unexpected column %q", ErrMalformedLog, rows[0][i])
		}
	}

	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		ids, err := dragonfly.NewIdentifierPair(row[1], row[2])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedLog, n+1, err)
		}
		iterations, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: iterations: %v", ErrMalformedLog, n+1, err)
		}
		us, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: time: %v", ErrMalformedLog, n+1, err)
		}
		records = append(records, Record{
			Secret: row[0],
			Observation: sidechannel.Observation{
				IDs:        ids,
				Iterations: iterations,
				Elapsed:    time.Duration(us * float64(time.Microsecond)),
			},
		})
	}
	return records, nil
}

// Secrets lists the distinct secrets in order of first appearance
func Secrets(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Secret] {
			seen[r.Secret] = true
			out = append(out, r.Secret)
		}
	}
	return out
}

// Observations returns the observations recorded for one secret
func Observations(records []Record, secret string) []sidechannel.Observation {
	var out []sidechannel.Observation
	for _, r := range records {
		if r.Secret == secret {
			out = append(out, r.Observation)
		}
	}
	return out
}
