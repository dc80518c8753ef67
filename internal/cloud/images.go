package cloud

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gosimple/slug"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ImageStore кладёт картинки товаров в S3 бакет.
type ImageStore struct {
	client S3API
	bucket string
	region string
	acl    string
	now    func() time.Time
}

func NewImageStore(client S3API, bucket, region, acl string) *ImageStore {
	if acl == "" {
		acl = string(types.ObjectCannedACLPrivate)
	}
	return &ImageStore{client: client, bucket: bucket, region: region, acl: acl, now: time.Now}
}

// NewS3Client включает path-style адресацию, если задан свой endpoint (LocalStack).
func NewS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
}

// ObjectKey: <slug названия>_<unix time><расширение файла>.
func ObjectKey(productName, filename string, at time.Time) string {
	base := slug.Make(productName)
	if base == "" {
		base = "product"
	}
	return base + "_" + strconv.FormatInt(at.Unix(), 10) + strings.ToLower(filepath.Ext(filename))
}

func (s *ImageStore) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *ImageStore) Upload(ctx context.Context, productName, filename, contentType string, body io.Reader) (string, string, error) {
	at := s.now()
	key := ObjectKey(productName, filename, at)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACL(s.acl),
		Metadata: map[string]string{
			"productName": productName,
			"timestamp":   strconv.FormatInt(at.Unix(), 10),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload image to s3: %w", err)
	}
	return s.URL(key), key, nil
}

func (s *ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from s3: %w", err)
	}
	return nil
}
