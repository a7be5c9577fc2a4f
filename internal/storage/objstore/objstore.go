// Package objstore implements storage.Adapter over an S3-compatible
// object store, for distributed deployments that need a shared backend
// reachable by every instance (§4.B, §4.H). Every call is wrapped in a
// circuit breaker so a flaky bucket degrades to StorageUnavailable
// instead of hanging the calling goroutine.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"

	"github.com/brainy/brainy/internal/storage"
)

// Config configures the S3 client.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // non-empty selects an S3-compatible endpoint (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
}

// Store is an S3-backed storage.Adapter.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	cb     *gobreaker.CircuitBreaker
}

// New constructs a Store. It does not touch the network until Init or a
// subsequent call is made.
func New(ctx context.Context, cfg Config) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "objstore-" + cfg.Bucket,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})

	return &Store{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), cb: cb}, nil
}

func (s *Store) objectKey(parts ...string) string {
	all := append([]string{s.prefix}, parts...)
	nonEmpty := all[:0]
	for _, p := range all {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// run executes fn through the circuit breaker, translating breaker trips
// and S3 "not found" errors into the storage package's sentinels.
func (s *Store) run(fn func() ([]byte, error)) ([]byte, error) {
	out, err := s.cb.Execute(func() (any, error) {
		data, err := fn()
		if err != nil {
			var nsk *s3.NoSuchKey
			var nf *s3.NotFound
			if errors.As(err, &nsk) || errors.As(err, &nf) {
				return nil, storage.ErrNotFound
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, storage.ErrUnavailable
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, storage.ErrUnavailable
		}
		return nil, storage.ErrUnavailable
	}
	if out == nil {
		return nil, nil
	}
	return out.([]byte), nil
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.run(func() ([]byte, error) {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
		return nil, err
	})
	return err
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.run(func() ([]byte, error) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return nil, err
	})
	return err
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	return s.run(func() ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
}

func (s *Store) del(ctx context.Context, key string) error {
	_, err := s.run(func() ([]byte, error) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		return nil, err
	})
	return err
}

func (s *Store) SaveNoun(ctx context.Context, partition, id string, data []byte) error {
	return s.put(ctx, s.objectKey("nouns", partition, id+".json"), data)
}

func (s *Store) GetNoun(ctx context.Context, partition, id string) ([]byte, error) {
	return s.get(ctx, s.objectKey("nouns", partition, id+".json"))
}

func (s *Store) DeleteNoun(ctx context.Context, partition, id string) error {
	return s.del(ctx, s.objectKey("nouns", partition, id+".json"))
}

// GetNouns performs a cost-aware bounded listing: each call issues at
// most one ListObjectsV2 request, honoring opts.Limit as MaxKeys, rather
// than paging transparently through an entire bucket.
func (s *Store) GetNouns(ctx context.Context, opts storage.ListOptions) (storage.Page, error) {
	prefix := s.objectKey("nouns")
	if opts.Partition != "" {
		prefix = s.objectKey("nouns", opts.Partition)
	}
	limit := int32(opts.Limit)
	if limit <= 0 {
		limit = 1000
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix + "/"),
		MaxKeys: aws.Int32(limit),
	}
	if opts.Cursor != "" {
		input.ContinuationToken = aws.String(opts.Cursor)
	}

	var page storage.Page
	_, err := s.run(func() ([]byte, error) {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			data, gerr := s.get(ctx, key)
			if gerr != nil {
				continue
			}
			id := strings.TrimSuffix(key[strings.LastIndex(key, "/")+1:], ".json")
			page.Items = append(page.Items, storage.Record{ID: id, Data: data})
		}
		page.Pagination.HasMore = aws.ToBool(out.IsTruncated)
		if page.Pagination.HasMore {
			page.Pagination.Cursor = aws.ToString(out.NextContinuationToken)
		}
		page.Pagination.Limit = int(limit)
		return nil, nil
	})
	if err != nil {
		return storage.Page{}, err
	}
	return page, nil
}

func (s *Store) SaveVerb(ctx context.Context, partition, id string, data []byte) error {
	return s.put(ctx, s.objectKey("verbs", partition, id+".json"), data)
}

func (s *Store) GetVerb(ctx context.Context, partition, id string) ([]byte, error) {
	return s.get(ctx, s.objectKey("verbs", partition, id+".json"))
}

type verbIndexFields struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Verb   string `json:"verb"`
}

// scanVerbsBy lists every verb object once and filters client-side.
// Object stores have no secondary index of their own; the distributed
// deployments expected to choose this backend are steered toward
// keeping verb fan-out modest, or toward the sqlite backend when lookup
// volume demands a real index.
func (s *Store) scanVerbsBy(ctx context.Context, match func(verbIndexFields) bool) ([][]byte, error) {
	prefix := s.objectKey("verbs")
	var out [][]byte
	var token *string
	for {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix + "/"), ContinuationToken: token}
		var resp *s3.ListObjectsV2Output
		if _, err := s.run(func() ([]byte, error) {
			o, err := s.client.ListObjectsV2(ctx, input)
			resp = o
			return nil, err
		}); err != nil {
			return nil, err
		}
		for _, obj := range resp.Contents {
			data, err := s.get(ctx, aws.ToString(obj.Key))
			if err != nil {
				continue
			}
			var f verbIndexFields
			if decodeJSON(data, &f) && match(f) {
				out = append(out, data)
			}
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (s *Store) GetVerbsBySource(ctx context.Context, sourceID string) ([][]byte, error) {
	return s.scanVerbsBy(ctx, func(f verbIndexFields) bool { return f.Source == sourceID })
}

func (s *Store) GetVerbsByTarget(ctx context.Context, targetID string) ([][]byte, error) {
	return s.scanVerbsBy(ctx, func(f verbIndexFields) bool { return f.Target == targetID })
}

func (s *Store) GetVerbsByType(ctx context.Context, verbType string) ([][]byte, error) {
	return s.scanVerbsBy(ctx, func(f verbIndexFields) bool { return f.Verb == verbType })
}

func (s *Store) DeleteVerb(ctx context.Context, partition, id string) error {
	return s.del(ctx, s.objectKey("verbs", partition, id+".json"))
}

func (s *Store) SaveMetadata(ctx context.Context, key string, data []byte) error {
	return s.put(ctx, s.objectKey("metadata", key+".json"), data)
}

func (s *Store) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	return s.get(ctx, s.objectKey("metadata", key+".json"))
}

func (s *Store) AppendChange(ctx context.Context, e storage.ChangeEntry) error {
	data := encodeJSON(e)
	name := strconv.FormatInt(e.Timestamp.UnixNano(), 10) + "-" + strconv.FormatUint(e.Sequence, 10) + ".json"
	return s.put(ctx, s.objectKey("index", "changes", name), data)
}

func (s *Store) GetChangesSince(ctx context.Context, t time.Time) ([]storage.ChangeEntry, error) {
	prefix := s.objectKey("index", "changes")
	var out []storage.ChangeEntry
	var token *string
	for {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix + "/"), ContinuationToken: token}
		var resp *s3.ListObjectsV2Output
		if _, err := s.run(func() ([]byte, error) {
			o, err := s.client.ListObjectsV2(ctx, input)
			resp = o
			return nil, err
		}); err != nil {
			return nil, err
		}
		for _, obj := range resp.Contents {
			data, err := s.get(ctx, aws.ToString(obj.Key))
			if err != nil {
				continue
			}
			var ce storage.ChangeEntry
			if decodeJSON(data, &ce) && ce.Timestamp.After(t) {
				out = append(out, ce)
			}
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) CompactChangesBefore(ctx context.Context, t time.Time) error {
	prefix := s.objectKey("index", "changes")
	var token *string
	for {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(prefix + "/"), ContinuationToken: token}
		var resp *s3.ListObjectsV2Output
		if _, err := s.run(func() ([]byte, error) {
			o, err := s.client.ListObjectsV2(ctx, input)
			resp = o
			return nil, err
		}); err != nil {
			return err
		}
		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			data, err := s.get(ctx, key)
			if err != nil {
				continue
			}
			var ce storage.ChangeEntry
			if decodeJSON(data, &ce) && ce.Timestamp.Before(t) {
				_ = s.del(ctx, key)
			}
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return nil
}

func (s *Store) SaveStatistics(ctx context.Context, day string, data []byte) error {
	return s.put(ctx, s.objectKey("index", "statistics_"+day+".json"), data)
}

func (s *Store) GetStatistics(ctx context.Context, day string) ([]byte, error) {
	return s.get(ctx, s.objectKey("index", "statistics_"+day+".json"))
}

func (s *Store) GetStorageStatus(ctx context.Context) (storage.Status, error) {
	_, err := s.run(func() ([]byte, error) {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
		return nil, err
	})
	if err != nil {
		return storage.Status{Healthy: false, Detail: err.Error()}, nil
	}
	return storage.Status{Healthy: true, Detail: s.bucket}, nil
}

// Clear deletes every object under the configured prefix. Intended for
// test fixtures, not production use against a shared bucket.
func (s *Store) Clear(ctx context.Context) error {
	var token *string
	for {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(s.prefix), ContinuationToken: token}
		var resp *s3.ListObjectsV2Output
		if _, err := s.run(func() ([]byte, error) {
			o, err := s.client.ListObjectsV2(ctx, input)
			resp = o
			return nil, err
		}); err != nil {
			return err
		}
		for _, obj := range resp.Contents {
			_ = s.del(ctx, aws.ToString(obj.Key))
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return nil
}
