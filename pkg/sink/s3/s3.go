// Package s3 adapts aws-sdk-go-v2's S3 client into a streamgate.Sink:
// each event's serialized frames become one object per frame.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/streamgate/streamgate"
)

// Sink writes each event's serialized frame as an S3 object under
// keyPrefix, named by event id, write time (wall clock) and frame index.
type Sink struct {
	client      *s3.Client
	bucket      string
	keyPrefix   string
	suffix      string
	contentType string
	logger      streamgate.Logger
}

// New builds an S3 Sink. If endpoint is non-empty, path-style addressing
// is used (for S3-compatible stores like MinIO).
func New(ctx context.Context, region, bucket, keyPrefix, accessKey, secretKey, endpoint, suffix, contentType string, logger streamgate.Logger) (*Sink, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...any) (aws.Endpoint, error) {
		if endpoint != "" {
			return aws.Endpoint{PartitionID: "aws", URL: endpoint, SigningRegion: region}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load sdk config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Sink{
		client:      client,
		bucket:      bucket,
		keyPrefix:   keyPrefix,
		suffix:      suffix,
		contentType: contentType,
		logger:      logger,
	}, nil
}

func (s *Sink) OnEvent(ctx context.Context, port string, ev streamgate.Event, ser streamgate.Serializer, startNS int64) ([]streamgate.SinkReply, error) {
	frames, err := ser.SerializeForStream(ev.Payload, ev.IngestNS, ev.StreamID)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: serialize: %w", err)
	}

	ext := s.suffix
	if ext == "" {
		ext = ".json"
	}
	if ext[0] != '.' {
		ext = "." + ext
	}

	for i, f := range frames {
		key := fmt.Sprintf("%s%s_%d_%d%s", s.keyPrefix, ev.EventID, time.Now().UnixNano(), i, ext)
		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(f),
		}
		if ct := strings.TrimSpace(s.contentType); ct != "" {
			input.ContentType = aws.String(ct)
		}
		if _, err := s.client.PutObject(ctx, input); err != nil {
			return nil, fmt.Errorf("s3 sink: put object: %w", err)
		}
	}
	return nil, nil
}

func (s *Sink) OnSignal(ctx context.Context, sig streamgate.Signal, ser streamgate.Serializer) ([]streamgate.SinkReply, error) {
	return nil, nil
}

func (s *Sink) Metrics(timestamp int64) []streamgate.MetricsEvent { return nil }

func (s *Sink) OnStart(ctx context.Context) error                 { return nil }
func (s *Sink) OnPause(ctx context.Context) error                 { return nil }
func (s *Sink) OnResume(ctx context.Context) error                { return nil }
func (s *Sink) OnStop(ctx context.Context) error                  { return nil }
func (s *Sink) OnConnectionLost(ctx context.Context) error        { return nil }
func (s *Sink) OnConnectionEstablished(ctx context.Context) error { return nil }

func (s *Sink) AutoAck() bool      { return true }
func (s *Sink) Asynchronous() bool { return false }

// Ping checks bucket accessibility.
func (s *Sink) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 sink: ping: %w", err)
	}
	return nil
}
