// Package pipeline runs the fetch, bronze, silver and gold stages in order.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/aws/s3"
	"github.com/pilosa/brewery/boltdb"
	"github.com/pilosa/brewery/engine"
	"github.com/pilosa/brewery/gold"
	"github.com/pilosa/brewery/http"
	"github.com/pilosa/brewery/json"
	"github.com/pilosa/brewery/leveldb"
	"github.com/pilosa/brewery/silver"
	"github.com/pilosa/brewery/termstat"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Publisher copies a finished layer somewhere else.
type Publisher interface {
	Publish(ctx context.Context, layer, local string) (int, error)
}

// Main holds the configuration for a pipeline run.
type Main struct {
	URL       string `help:"URL of the breweries API."`
	PerPage   int    `help:"Records to request per page. Zero fetches the URL once without paging."`
	MaxPages  int    `help:"Stop fetching after this many pages. Zero means no limit."`
	Timeout   int    `help:"HTTP timeout in seconds."`
	UserAgent string `help:"User-Agent header sent to the API."`

	RawPath    string `help:"File the raw (bronze) json is written to."`
	SilverPath string `help:"Directory the state partitioned (silver) table is written to."`
	GoldPath   string `help:"Directory the aggregated (gold) table is written to."`

	Concurrency    int    `help:"Number of Parquet files written at once."`
	MaxRowsPerFile int    `help:"Split partitions into files of at most this many rows. Zero means one file per partition."`
	Compression    string `help:"Parquet compression codec: snappy, gzip, zstd or none."`

	LedgerPath    string `help:"Where run history is kept. Empty disables the ledger."`
	LedgerBackend string `help:"Run history store: bolt or leveldb."`

	S3Bucket   string `help:"Publish every layer to this S3 bucket after a successful run. Empty disables publishing."`
	S3Prefix   string `help:"Key prefix for published layers."`
	S3Region   string `help:"AWS region of the S3 bucket."`
	S3Endpoint string `help:"S3 compatible endpoint to publish to instead of AWS."`

	LogPath       string `help:"Log file to write to. Empty means stderr."`
	LogMaxSize    int    `help:"Rotate the log file once it reaches this many megabytes."`
	LogMaxBackups int    `help:"Number of rotated log files to keep. Zero keeps them all."`
	LogFormat     string `help:"Log format: text or json."`
	Verbose       bool   `help:"Enable verbose logging."`
	Stats         bool   `help:"Print running counters to stderr."`

	// Source, Ledger, Publisher and Statter replace the configured ones when
	// set.
	Source    brewery.Source  `flag:"-"`
	Ledger    brewery.Ledger  `flag:"-"`
	Publisher Publisher       `flag:"-"`
	Statter   brewery.Statter `flag:"-"`
	Stderr    io.Writer       `flag:"-"`

	log     brewery.Logger
	stats   brewery.Statter
	ledger  brewery.Ledger
	closers []io.Closer
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		URL:           http.DefaultURL,
		Timeout:       30,
		UserAgent:     "brewery-pipeline",
		RawPath:       "raw_breweries.json",
		SilverPath:    "silver_breweries.parquet",
		GoldPath:      "gold_breweries_aggregated.parquet",
		Concurrency:   4,
		Compression:   "snappy",
		LedgerBackend: "bolt",
		S3Region:      "us-east-1",
		LogMaxSize:    100,
		LogFormat:     "text",
		Stderr:        os.Stderr,
	}
}

func (m *Main) validate() error {
	if m.RawPath == "" || m.SilverPath == "" || m.GoldPath == "" {
		return errors.New("raw, silver and gold paths must all be set")
	}
	if m.Timeout < 0 {
		return errors.Errorf("timeout can't be negative, got %d", m.Timeout)
	}
	switch strings.ToLower(m.LedgerBackend) {
	case "bolt", "leveldb":
	default:
		return errors.Errorf("unknown ledger backend '%s'", m.LedgerBackend)
	}
	switch strings.ToLower(m.LogFormat) {
	case "text", "json", "":
	default:
		return errors.Errorf("unknown log format '%s'", m.LogFormat)
	}
	return nil
}

func (m *Main) setup() (err error) {
	if err := m.validate(); err != nil {
		return errors.Wrap(err, "validating configuration")
	}
	m.closers = m.closers[:0]
	var logOut io.Writer = m.Stderr
	if logOut == nil {
		logOut = os.Stderr
	}
	if m.LogPath != "" {
		lf := &lumberjack.Logger{
			Filename:   m.LogPath,
			MaxSize:    m.LogMaxSize,
			MaxBackups: m.LogMaxBackups,
		}
		m.closers = append(m.closers, lf)
		logOut = lf
	}
	switch {
	case strings.ToLower(m.LogFormat) == "json":
		zl := brewery.NewZapLogger(logOut, m.Verbose)
		m.closers = append(m.closers, syncCloser{zl})
		m.log = zl
	case m.Verbose:
		m.log = brewery.NewVerboseLogger(logOut)
	default:
		m.log = brewery.NewStdLogger(logOut)
	}

	switch {
	case m.Statter != nil:
		m.stats = m.Statter
	case m.Stats:
		ts := termstat.NewCollector(logOut, 2*time.Second)
		m.closers = append(m.closers, ts)
		m.stats = ts
	default:
		m.stats = brewery.NopStatter{}
	}
	return nil
}

// syncCloser flushes a zap logger on teardown.
type syncCloser struct {
	z brewery.ZapLogger
}

func (s syncCloser) Close() error {
	_ = s.z.Sync()
	return nil
}

func (m *Main) teardown() {
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			m.log.Printf("closing: %v", err)
		}
	}
	m.closers = m.closers[:0]
	m.ledger = nil
}

// openLedger returns the configured ledger, or nil when none is configured.
func (m *Main) openLedger() (brewery.Ledger, error) {
	if m.Ledger != nil {
		return m.Ledger, nil
	}
	if m.LedgerPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(m.LedgerPath), 0755); err != nil {
		return nil, errors.Wrap(err, "making ledger directory")
	}
	var l brewery.Ledger
	var err error
	switch strings.ToLower(m.LedgerBackend) {
	case "leveldb":
		l, err = leveldb.NewLedger(m.LedgerPath)
	default:
		l, err = boltdb.NewLedger(m.LedgerPath)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s ledger", m.LedgerBackend)
	}
	m.closers = append(m.closers, l)
	return l, nil
}

func (m *Main) source() brewery.Source {
	if m.Source != nil {
		return m.Source
	}
	return http.NewJSONSource(
		http.WithURL(m.URL),
		http.WithTimeout(time.Duration(m.Timeout)*time.Second),
		http.WithPerPage(m.PerPage),
		http.WithMaxPages(m.MaxPages),
		http.WithUserAgent(m.UserAgent),
		http.WithLogger(m.log),
	)
}

func (m *Main) engineOpts() []engine.Option {
	return []engine.Option{
		engine.OptConcurrency(m.Concurrency),
		engine.OptMaxRowsPerFile(m.MaxRowsPerFile),
		engine.OptCompression(m.Compression),
		engine.OptLogger(m.log),
		engine.OptStatter(m.stats),
	}
}

func (m *Main) publisher() (Publisher, error) {
	if m.Publisher != nil {
		return m.Publisher, nil
	}
	if m.S3Bucket == "" {
		return nil, nil
	}
	p, err := s3.NewPublisher(
		s3.OptPubBucket(m.S3Bucket),
		s3.OptPubPrefix(m.S3Prefix),
		s3.OptPubRegion(m.S3Region),
		s3.OptPubEndpoint(m.S3Endpoint),
		s3.OptPubLogger(m.log),
		s3.OptPubStatter(m.stats),
	)
	return p, errors.Wrap(err, "getting s3 publisher")
}

// Run fetches the breweries and runs every stage after it. It returns
// brewery.ErrNoRecords, with the remaining stages skipped, when the source
// has nothing. The report describes the run whether or not it succeeded and
// is recorded in the ledger if one is configured.
func (m *Main) Run(ctx context.Context) (rep brewery.RunReport, err error) {
	if err := m.setup(); err != nil {
		return rep, errors.Wrap(err, "setting up")
	}
	defer m.teardown()
	rep = brewery.RunReport{ID: uuid.New().String(), Started: time.Now().UTC()}

	m.ledger, err = m.openLedger()
	if err != nil {
		return rep, err
	}
	defer func() {
		rep.Finished = time.Now().UTC()
		if err != nil {
			rep.Err = err.Error()
			m.log.Printf("run %s failed in %s: %v", rep.ID, rep.Stage, err)
		} else {
			m.log.Printf("run %s done in %v", rep.ID, rep.Finished.Sub(rep.Started))
		}
		m.stats.Timing("pipeline.duration", rep.Finished.Sub(rep.Started), 1)
		if m.ledger != nil {
			if lerr := m.ledger.Record(rep); lerr != nil {
				m.log.Printf("recording run %s: %v", rep.ID, lerr)
			}
		}
	}()

	rep.Stage = brewery.StageFetch
	recs, err := m.fetch(ctx)
	if err != nil {
		return rep, err
	}
	rep.Fetched = len(recs)

	rep.Stage = brewery.StageBronze
	if err := m.bronze(recs); err != nil {
		return rep, err
	}

	rep.Stage = brewery.StageSilver
	ss, err := silver.Transform(ctx, m.RawPath, m.SilverPath, m.engineOpts()...)
	if err != nil {
		return rep, errors.Wrap(err, "running silver stage")
	}
	rep.SilverRows, rep.Dropped, rep.Partitions = ss.Written, ss.Dropped, ss.Partitions

	rep.Stage = brewery.StageGold
	gs, err := gold.Aggregate(ctx, m.SilverPath, m.GoldPath, m.engineOpts()...)
	if err != nil {
		return rep, errors.Wrap(err, "running gold stage")
	}
	rep.Groups = gs.Groups

	if err := m.publish(ctx); err != nil {
		return rep, err
	}
	rep.Stage = brewery.StageDone
	return rep, nil
}

func (m *Main) fetch(ctx context.Context) ([]brewery.Record, error) {
	recs, err := m.source().Fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching breweries")
	}
	m.stats.Count("pipeline.records_fetched", int64(len(recs)), 1)
	if len(recs) == 0 {
		m.log.Printf("no records were returned, skipping remaining stages")
		return nil, brewery.ErrNoRecords
	}
	m.log.Printf("fetched %d records", len(recs))
	return recs, nil
}

func (m *Main) bronze(recs []brewery.Record) error {
	if err := json.WriteFile(m.RawPath, recs); err != nil {
		return errors.Wrap(err, "writing bronze file")
	}
	m.log.Printf("bronze: %d records written to %s", len(recs), m.RawPath)
	return nil
}

func (m *Main) publish(ctx context.Context) error {
	p, err := m.publisher()
	if err != nil || p == nil {
		return err
	}
	layers := []struct{ name, path string }{
		{brewery.StageBronze, m.RawPath},
		{brewery.StageSilver, m.SilverPath},
		{brewery.StageGold, m.GoldPath},
	}
	for _, l := range layers {
		if _, err := p.Publish(ctx, l.name, l.path); err != nil {
			return errors.Wrapf(err, "publishing %s layer", l.name)
		}
	}
	return nil
}

// Fetch runs only the fetch and bronze stages and returns the number of
// records written.
func (m *Main) Fetch(ctx context.Context) (int, error) {
	if err := m.setup(); err != nil {
		return 0, errors.Wrap(err, "setting up")
	}
	defer m.teardown()
	recs, err := m.fetch(ctx)
	if err != nil {
		return 0, err
	}
	return len(recs), m.bronze(recs)
}

// Silver runs only the silver stage against the existing bronze file.
func (m *Main) Silver(ctx context.Context) (silver.Stats, error) {
	if err := m.setup(); err != nil {
		return silver.Stats{}, errors.Wrap(err, "setting up")
	}
	defer m.teardown()
	return silver.Transform(ctx, m.RawPath, m.SilverPath, m.engineOpts()...)
}

// Gold runs only the gold stage against the existing silver table.
func (m *Main) Gold(ctx context.Context) (gold.Stats, error) {
	if err := m.setup(); err != nil {
		return gold.Stats{}, errors.Wrap(err, "setting up")
	}
	defer m.teardown()
	return gold.Aggregate(ctx, m.SilverPath, m.GoldPath, m.engineOpts()...)
}

// Runs lists up to limit recorded runs, newest first.
func (m *Main) Runs(limit int) ([]brewery.RunReport, error) {
	if err := m.setup(); err != nil {
		return nil, errors.Wrap(err, "setting up")
	}
	defer m.teardown()
	l, err := m.openLedger()
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errors.New("no ledger is configured")
	}
	return l.Runs(limit)
}
