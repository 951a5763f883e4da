package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner creates presigned GET URLs. *s3.PresignClient implements it.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

const (
	metaFilename  = "original-filename"
	metaCreatedAt = "upload-time"
)

// S3Store stores uploads in S3 or an S3-compatible service.
type S3Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	prefix    string
	maxSize   int64
	urlExpiry time.Duration
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client from static settings. Without keys the
// client sends anonymous requests.
func NewS3Client(opts S3Options) *s3.Client {
	o := s3.Options{
		Region:       opts.Region,
		UsePathStyle: opts.UsePathStyle,
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
			Source:          "tumorscope config",
		}
		o.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(o)
}

// NewS3Store creates an S3 upload store. Keys are prefix+id. When client is
// an *s3.Client, claimed and opened files carry a presigned URL.
func NewS3Store(client S3API, bucket, prefix string, maxSize int64) *S3Store {
	s := &S3Store{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		maxSize:   maxSize,
		urlExpiry: time.Hour,
	}
	if c, ok := client.(*s3.Client); ok {
		s.presigner = s3.NewPresignClient(c)
	}
	return s
}

// WithURLExpiry sets how long presigned URLs are valid.
func (s *S3Store) WithURLExpiry(d time.Duration) *S3Store {
	s.urlExpiry = d
	return s
}

// WithPresigner overrides the presigner.
func (s *S3Store) WithPresigner(p Presigner) *S3Store {
	s.presigner = p
	return s
}

// Save uploads the file under a new random ID.
func (s *S3Store) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	id := uuid.NewString()
	if err := s.SaveAs(ctx, id, filename, contentType, size, r); err != nil {
		return "", err
	}
	return id, nil
}

// SaveAs uploads the file under id.
func (s *S3Store) SaveAs(ctx context.Context, id, filename, contentType string, size int64, r io.Reader) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if s.maxSize > 0 && size > s.maxSize {
		return ErrTooLarge
	}

	// Buffer the body; uploads are capped at a few MiB.
	var buf bytes.Buffer
	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return err
	}
	if s.maxSize > 0 && n > s.maxSize {
		return ErrTooLarge
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			metaFilename:  filename,
			metaCreatedAt: strconv.FormatInt(time.Now().Unix(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", id, err)
	}
	return nil
}

// Open fetches the object without removing it.
func (s *S3Store) Open(ctx context.Context, id string) (*File, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", id, err)
	}

	file := &File{
		ID:          id,
		Filename:    id,
		ContentType: "application/octet-stream",
		Reader:      out.Body,
	}
	if fn, ok := out.Metadata[metaFilename]; ok && fn != "" {
		file.Filename = fn
	}
	if out.ContentType != nil {
		file.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		file.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		file.ModTime = *out.LastModified
	}

	if s.presigner != nil {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(id)),
		}, s3.WithPresignExpires(s.urlExpiry))
		if err == nil {
			file.URL = req.URL
		}
	}

	return file, nil
}

// Claim fetches the object and deletes it when the File is closed.
func (s *S3Store) Claim(ctx context.Context, id string) (*File, error) {
	file, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	file.URL = ""
	file.Reader = &deleteObjectOnClose{
		ReadCloser: file.Reader,
		store:      s,
		key:        s.key(id),
	}
	return file, nil
}

// Cleanup deletes objects under the prefix older than maxAge.
func (s *S3Store) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var toDelete []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				toDelete = append(toDelete, *obj.Key)
			}
		}
	}

	var errs []error
	for _, key := range toDelete {
		if err := s.deleteKey(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

func (s *S3Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// deleteObjectOnClose removes the object once its body is closed.
type deleteObjectOnClose struct {
	io.ReadCloser
	store *S3Store
	key   string
}

func (r *deleteObjectOnClose) Close() error {
	err := r.ReadCloser.Close()
	// The request context is usually gone by the time the body is closed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if derr := r.store.deleteKey(ctx, r.key); err == nil {
		err = derr
	}
	return err
}
