package feed

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Candle is one feed record. Time is unix milliseconds.
type Candle struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Valid reports whether the candle carries usable prices. Invalid rows are
// skipped by the runner, not fatal.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Time > 0 && c.High >= c.Low && c.Volume >= 0
}

// Feed is an ordered candle source. The core never assumes where candles
// come from; anything that can iterate records satisfies it.
type Feed interface {
	// Next returns the next candle, false when exhausted.
	Next() (Candle, bool)
}

// SliceFeed replays an in-memory candle slice.
type SliceFeed struct {
	candles []Candle
	i       int
}

func NewSliceFeed(candles []Candle) *SliceFeed {
	return &SliceFeed{candles: candles}
}

func (f *SliceFeed) Next() (Candle, bool) {
	if f.i >= len(f.candles) {
		return Candle{}, false
	}
	c := f.candles[f.i]
	f.i++
	return c, true
}

func (f *SliceFeed) Len() int { return len(f.candles) }

// LoadCSV reads candles from a timestamp,open,high,low,close,volume CSV.
// Timestamps are unix milliseconds or RFC3339. Malformed rows are skipped
// with a warning; a file yielding zero candles is an error.
func LoadCSV(path string, log *zap.SugaredLogger) (*SliceFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var candles []Candle
	var skipped int
	line := 0
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		line++
		c, ok := parseRow(rec)
		if !ok {
			// Header rows land here too; only count body rows as skipped.
			if line > 1 {
				skipped++
				if log != nil {
					log.Warnw("feed_row_skipped", "file", path, "line", line)
				}
			}
			continue
		}
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("feed %s: no valid candles", path)
	}
	if log != nil {
		log.Infow("feed_loaded", "file", path, "candles", len(candles), "skipped", skipped)
	}
	return NewSliceFeed(candles), nil
}

func parseRow(rec []string) (Candle, bool) {
	if len(rec) < 6 {
		return Candle{}, false
	}

	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		t, terr := time.Parse(time.RFC3339, rec[0])
		if terr != nil {
			return Candle{}, false
		}
		ts = t.UnixMilli()
	}

	var vals [5]float64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Candle{}, false
		}
		vals[i] = v
	}

	c := Candle{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	return c, c.Valid()
}
