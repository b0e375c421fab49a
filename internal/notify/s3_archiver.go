package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ai_orchestrator/internal/utils"
)

// ErrArchiveBufferFull is returned when the archive cannot keep up
var ErrArchiveBufferFull = errors.New("archive buffer full")

// ObjectPutter is the part of the S3 client the archiver uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveConfig configures an S3Archiver
type ArchiveConfig struct {
	Bucket        string
	Prefix        string
	PodName       string
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// S3Archiver buffers events and writes them to S3 as JSON Lines batches
type S3Archiver struct {
	client ObjectPutter
	cfg    ArchiveConfig
	logger *utils.Logger
	now    func() time.Time

	events      chan Event
	stopChan    chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
}

// NewS3Archiver loads the default AWS configuration for region
func NewS3Archiver(ctx context.Context, region string, cfg ArchiveConfig) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3ArchiverWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewS3ArchiverWithClient creates an archiver over an existing client
func NewS3ArchiverWithClient(client ObjectPutter, cfg ArchiveConfig) *S3Archiver {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Minute
	}
	if cfg.PodName == "" {
		cfg.PodName = "orchestrator"
	}
	return &S3Archiver{
		client:      client,
		cfg:         cfg,
		logger:      utils.NewLogger("s3-archiver"),
		now:         time.Now,
		events:      make(chan Event, cfg.BufferSize),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Notify buffers an event without blocking
func (a *S3Archiver) Notify(ctx context.Context, event Event) error {
	select {
	case a.events <- event:
		return nil
	default:
		return ErrArchiveBufferFull
	}
}

// Start runs the flush loop
func (a *S3Archiver) Start(ctx context.Context) {
	go a.run(ctx)
}

// Stop flushes what is buffered and ends the flush loop
func (a *S3Archiver) Stop() error {
	a.stopOnce.Do(func() { close(a.stopChan) })
	<-a.stoppedChan
	return nil
}

func (a *S3Archiver) run(ctx context.Context) {
	defer close(a.stoppedChan)

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, a.cfg.FlushSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if _, err := a.WriteBatch(ctx, batch); err != nil {
			a.logger.Error("Failed to archive batch", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-a.events:
			batch = append(batch, event)
			if len(batch) >= a.cfg.FlushSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-a.stopChan:
			for {
				select {
				case event := <-a.events:
					batch = append(batch, event)
				default:
					flush(context.Background())
					return
				}
			}
		case <-ctx.Done():
			flush(context.Background())
			return
		}
	}
}

// WriteBatch writes events as one JSON Lines object and returns its key.
// Keys look like outcomes/2025/11/30/orchestrator-0-20251130-143022-123456789.jsonl
func (a *S3Archiver) WriteBatch(ctx context.Context, events []Event) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	now := a.now().UTC()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		a.cfg.Prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		a.cfg.PodName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			a.logger.Error("Failed to encode event", "request_id", event.RequestID, "error", err)
			continue
		}
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.logger.Info("Archived batch", "key", key, "count", len(events), "bytes", buf.Len())
	return key, nil
}
