// Package archive persists periodic whale snapshots to S3 as partitioned
// Parquet files.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "whaleflow/config"
	"whaleflow/internal/models"
	"whaleflow/logger"
)

type whaleParquetRecord struct {
	Address       string  `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Label         string  `parquet:"name=label, type=BYTE_ARRAY, convertedtype=UTF8"`
	AccountValue  float64 `parquet:"name=account_value, type=DOUBLE"`
	TotalNotional float64 `parquet:"name=total_notional, type=DOUBLE"`
	MarginUsed    float64 `parquet:"name=margin_used, type=DOUBLE"`
	Withdrawable  float64 `parquet:"name=withdrawable, type=DOUBLE"`
	Positions     int32   `parquet:"name=positions, type=INT32"`
	SnapshotTime  int64   `parquet:"name=snapshot_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// SnapshotSource yields the current whale list plus its snapshot time.
type SnapshotSource interface {
	List(ctx context.Context) ([]models.WhaleAccount, time.Time, error)
}

// Archiver wakes on a fixed interval, reads the current whale snapshot and
// uploads it as one Parquet file per tick.
type Archiver struct {
	cfg      appconfig.S3Config
	version  string
	source   SnapshotSource
	s3Client *s3.Client

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.Mutex
	running bool

	log *logger.Log
}

// NewArchiver builds the S3 client from configuration. Static credentials
// are optional; the default AWS chain applies when they are absent.
func NewArchiver(cfg *appconfig.Config, src SnapshotSource) (*Archiver, error) {
	if !cfg.Storage.S3.Enabled {
		return nil, fmt.Errorf("s3 storage disabled")
	}
	if src == nil {
		return nil, fmt.Errorf("nil snapshot source provided")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Storage.S3.Region)}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	return &Archiver{
		cfg:      cfg.Storage.S3,
		version:  cfg.Whaleflow.Version,
		source:   src,
		s3Client: s3Client,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}, nil
}

// Start launches the snapshot loop.
func (a *Archiver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("archiver already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	a.log.WithComponent("archiver").WithFields(logger.Fields{
		"interval": a.cfg.SnapshotInterval,
		"bucket":   a.cfg.Bucket,
	}).Info("starting whale snapshot archiver")

	a.wg.Add(1)
	go a.loop()
	return nil
}

// Stop waits for the loop to exit. Cancel the Start context first.
func (a *Archiver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.wg.Wait()
	a.log.WithComponent("archiver").Info("whale snapshot archiver stopped")
}

func (a *Archiver) loop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.snapshot()
		}
	}
}

func (a *Archiver) snapshot() {
	log := a.log.WithComponent("archiver")

	ctx, cancel := context.WithTimeout(a.ctx, 2*time.Minute)
	defer cancel()

	whales, snapshotTime, err := a.source.List(ctx)
	if err != nil {
		log.WithError(err).Warn("skipping snapshot, no whale data")
		return
	}

	data, err := a.createParquet(whales, snapshotTime)
	if err != nil {
		log.WithError(err).Error("failed to create whale parquet")
		return
	}

	key := a.generateS3Key(snapshotTime)
	if err := a.upload(ctx, key, data); err != nil {
		log.WithError(err).WithFields(logger.Fields{"key": key}).Error("failed to upload whale parquet")
		return
	}

	log.WithFields(logger.Fields{
		"s3_key":    key,
		"whales":    len(whales),
		"file_size": len(data),
	}).Info("whale snapshot uploaded")
}

func (a *Archiver) createParquet(whales []models.WhaleAccount, snapshotTime time.Time) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(whaleParquetRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}

	switch strings.ToLower(a.cfg.Compression) {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, whale := range whales {
		rec := whaleParquetRecord{
			Address:       whale.Address,
			Label:         whale.Label,
			AccountValue:  whale.AccountValue,
			TotalNotional: whale.TotalNotional,
			MarginUsed:    whale.MarginUsed,
			Withdrawable:  whale.Withdrawable,
			Positions:     int32(len(whale.Positions)),
			SnapshotTime:  snapshotTime.UnixMilli(),
		}
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.Bytes(), nil
}

func (a *Archiver) generateS3Key(snapshotTime time.Time) string {
	filename := fmt.Sprintf("%s%s_whales.parquet",
		snapshotTime.UTC().Format("20060102150405"),
		uuid.NewString(),
	)
	key := filepath.Join(
		"whales",
		fmt.Sprintf("date=%s", snapshotTime.UTC().Format("2006-01-02")),
		filename,
	)
	return filepath.ToSlash(key)
}

func (a *Archiver) upload(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"compression":       a.cfg.Compression,
			"whaleflow-version": a.version,
		},
	}

	if _, err := a.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload whale parquet: %w", err)
	}
	return nil
}
