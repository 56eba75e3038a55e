package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// s3API is the subset of the S3 client the directory uses
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Directory is a directory capability over the objects directly under a
// bucket prefix
type S3Directory struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Directory loads the default AWS configuration and opens bucket/prefix
func NewS3Directory(ctx context.Context, bucket, prefix string) (*S3Directory, error) {
	if bucket == "" {
		return nil, domain.ValidationError("s3 bucket is required", nil)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, domain.ConfigError("load aws config", err)
	}

	return newS3Directory(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Directory(client s3API, bucket, prefix string) *S3Directory {
	return &S3Directory{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
}

// Location returns the s3:// address
func (d *S3Directory) Location() string {
	return Location{Scheme: SchemeS3, Bucket: d.bucket, Prefix: d.prefix}.String()
}

// List returns object names directly under the prefix, sorted
func (d *S3Directory) List(ctx context.Context) ([]string, error) {
	base := listPrefix(d.prefix)
	p := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(base),
		Delimiter: aws.String("/"),
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(fmt.Sprintf("s3 list bucket=%s prefix=%s", d.bucket, base), err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), base)
			if name != "" && !strings.Contains(name, "/") {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read downloads name
func (d *S3Directory) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	key := applyPrefix(d.prefix, name)
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(fmt.Sprintf("s3 get object bucket=%s key=%s", d.bucket, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("s3 read body key=%s", key), err)
	}
	return data, nil
}

// Write uploads content under name
func (d *S3Directory) Write(ctx context.Context, name string, content []byte) error {
	if err := validName(name); err != nil {
		return err
	}

	key := applyPrefix(d.prefix, name)
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/pdf"),
	})
	if err != nil {
		return mapS3Error(fmt.Sprintf("s3 put object bucket=%s key=%s", d.bucket, key), err)
	}
	return nil
}

// Remove deletes name
func (d *S3Directory) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	key := applyPrefix(d.prefix, name)
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapS3Error(fmt.Sprintf("s3 delete object bucket=%s key=%s", d.bucket, key), err)
	}
	return nil
}

// s3PermissionCodes are API error codes meaning the credential lacks access
var s3PermissionCodes = map[string]bool{
	"AccessDenied":          true,
	"AllAccessDisabled":     true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

func mapS3Error(msg string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && s3PermissionCodes[apiErr.ErrorCode()] {
		return domain.PermissionError(msg, err)
	}
	return domain.IOError(msg, err)
}

var _ domain.Directory = (*S3Directory)(nil)
