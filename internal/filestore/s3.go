package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is a Store backed by one bucket. Areas are key prefixes.
type S3 struct {
	client s3API
	bucket string
}

// NewS3 creates an S3 store using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "filestore: load aws config")
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// prefix normalizes an area to "area/", or "" for the bucket root.
func prefix(area string) string {
	area = strings.Trim(area, "/")
	if area == "" {
		return ""
	}
	return area + "/"
}

func key(area, name string) string {
	return prefix(area) + name
}

// List returns the objects directly under the area prefix.
func (s *S3) List(ctx context.Context, area string) ([]Entry, error) {
	p := prefix(area)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(p),
		Delimiter: aws.String("/"),
	})

	var entries []Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "filestore: list s3://%s/%s", s.bucket, p)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), p)
			if name == "" || strings.Contains(name, "/") || strings.HasPrefix(name, ".") {
				continue
			}
			entries = append(entries, Entry{Name: name, ModTime: aws.ToTime(obj.LastModified)})
		}
	}
	return entries, nil
}

// Read downloads an object.
func (s *S3) Read(ctx context.Context, area, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(area, name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, eris.Wrapf(ErrNotFound, "s3://%s/%s", s.bucket, key(area, name))
		}
		return nil, eris.Wrapf(err, "filestore: get %s", name)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "filestore: read body %s", name)
	}
	return data, nil
}

// Move copies the object to the destination prefix, then deletes the source.
func (s *S3) Move(ctx context.Context, from, to, name string) error {
	src := key(from, name)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(copySource(s.bucket, src)),
		Key:        aws.String(key(to, name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return eris.Wrapf(ErrNotFound, "s3://%s/%s", s.bucket, src)
		}
		return eris.Wrapf(err, "filestore: copy %s", src)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(src),
	}); err != nil {
		return eris.Wrapf(err, "filestore: delete %s", src)
	}
	return nil
}

// Write uploads an object.
func (s *S3) Write(ctx context.Context, area, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key(area, name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	return eris.Wrapf(err, "filestore: put %s", name)
}

// Exists issues a HeadObject for the key.
func (s *S3) Exists(ctx context.Context, area, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(area, name)),
	})
	if err != nil {
		var (
			nf  *types.NotFound
			nsk *types.NoSuchKey
		)
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return false, nil
		}
		return false, eris.Wrapf(err, "filestore: head %s", name)
	}
	return true, nil
}

// copySource builds the URL-encoded "bucket/key" CopyObject expects.
func copySource(bucket, k string) string {
	segments := strings.Split(k, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
