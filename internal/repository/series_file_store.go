package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
)

const seriesExt = ".json.zst"

// seriesFile is the columnar on-disk layout of a series.
type seriesFile struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Time      []int64   `json:"t"`
	Open      []float64 `json:"o"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Close     []float64 `json:"c"`
	Volume    []float64 `json:"v"`
}

// SeriesFileStore keeps one zstd-compressed file per (instrument, timeframe).
// Files are replaced atomically; concurrent writers resolve to last writer wins.
type SeriesFileStore struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewSeriesFileStore(dir string) (*SeriesFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &SeriesFileStore{dir: dir, enc: enc, dec: dec}, nil
}

var _ repository.SeriesStore = (*SeriesFileStore)(nil)

// Load returns models.ErrDataUnavailable when no file exists.
func (s *SeriesFileStore) Load(_ context.Context, symbol string, tf models.Timeframe) (*models.Series, error) {
	raw, err := os.ReadFile(s.path(symbol, tf))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no cached %s %s", models.ErrDataUnavailable, symbol, tf)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read series: %w", models.ErrPersistenceFailure, err)
	}

	plain, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s %s: %w", models.ErrPersistenceFailure, symbol, tf, err)
	}
	var f seriesFile
	if err := json.Unmarshal(plain, &f); err != nil {
		return nil, fmt.Errorf("%w: decode %s %s: %w", models.ErrPersistenceFailure, symbol, tf, err)
	}
	n := len(f.Time)
	if len(f.Open) != n || len(f.High) != n || len(f.Low) != n || len(f.Close) != n || len(f.Volume) != n {
		return nil, fmt.Errorf("%w: ragged columns in %s %s", models.ErrPersistenceFailure, symbol, tf)
	}

	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   time.Unix(f.Time[i], 0).UTC(),
			Open:   f.Open[i],
			High:   f.High[i],
			Low:    f.Low[i],
			Close:  f.Close[i],
			Volume: f.Volume[i],
		}
	}
	return models.NewSeries(symbol, tf, bars), nil
}

func (s *SeriesFileStore) Save(_ context.Context, series *models.Series) error {
	n := series.Len()
	f := seriesFile{
		Symbol:    series.Symbol,
		Timeframe: string(series.Timeframe),
		Time:      make([]int64, n),
		Open:      series.Opens(),
		High:      series.Highs(),
		Low:       series.Lows(),
		Close:     series.Closes(),
		Volume:    series.Volumes(),
	}
	for i, b := range series.Bars {
		f.Time[i] = b.Time.Unix()
	}

	plain, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", models.ErrPersistenceFailure, series.Symbol, err)
	}
	packed := s.enc.EncodeAll(plain, nil)

	target := s.path(series.Symbol, series.Timeframe)
	tmp, err := os.CreateTemp(s.dir, ".series-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %w", models.ErrPersistenceFailure, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(packed); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", models.ErrPersistenceFailure, target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", models.ErrPersistenceFailure, target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: replace %s: %w", models.ErrPersistenceFailure, target, err)
	}
	return nil
}

// Footprint sums the size of all cached series files.
func (s *SeriesFileStore) Footprint() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), seriesExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func (s *SeriesFileStore) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

func (s *SeriesFileStore) path(symbol string, tf models.Timeframe) string {
	return filepath.Join(s.dir, fileSafe(symbol)+"_"+string(tf)+seriesExt)
}

func fileSafe(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, symbol)
}
