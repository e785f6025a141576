// Package logos issues presigned S3 uploads for club logos.
package logos

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"clubhub/internal/apperr"
)

const defaultTTL = 15 * time.Minute

var extensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// Settings configures the bucket and credentials.
type Settings struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	TTL       time.Duration
}

// Upload is a presigned PUT the client performs directly against storage.
type Upload struct {
	Key         string    `json:"key"`
	UploadURL   string    `json:"upload_url"`
	Method      string    `json:"method"`
	ContentType string    `json:"content_type"`
	PublicURL   string    `json:"public_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Presigner signs logo uploads for one bucket.
type Presigner struct {
	client   *s3.PresignClient
	settings Settings
	now      func() time.Time
}

// New builds a presigner with static credentials. A custom endpoint switches
// to path-style addressing for MinIO-compatible stores.
func New(ctx context.Context, st Settings) (*Presigner, error) {
	if st.Bucket == "" {
		return nil, fmt.Errorf("logos: bucket is required")
	}
	if st.TTL <= 0 {
		st.TTL = defaultTTL
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(st.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(st.AccessKey, st.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("logos: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if st.Endpoint != "" {
			o.BaseEndpoint = aws.String(st.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{
		client:   s3.NewPresignClient(client),
		settings: st,
		now:      time.Now,
	}, nil
}

// PresignUpload returns a presigned PUT for a new logo object of the club.
func (p *Presigner) PresignUpload(ctx context.Context, clubID, contentType string) (Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := extensions[contentType]
	if !ok {
		return Upload{}, apperr.Validation("unsupported logo content type %q", contentType)
	}

	key := fmt.Sprintf("clubs/%s/logo-%s.%s", clubID, uuid.NewString(), ext)
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.settings.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.settings.TTL))
	if err != nil {
		return Upload{}, fmt.Errorf("presign logo upload: %w", err)
	}

	return Upload{
		Key:         key,
		UploadURL:   req.URL,
		Method:      req.Method,
		ContentType: contentType,
		PublicURL:   p.publicURL(key),
		ExpiresAt:   p.now().Add(p.settings.TTL).UTC(),
	}, nil
}

func (p *Presigner) publicURL(key string) string {
	if p.settings.Endpoint != "" {
		base := strings.TrimRight(p.settings.Endpoint, "/")
		u, err := url.JoinPath(base, p.settings.Bucket, key)
		if err == nil {
			return u
		}
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.settings.Bucket, p.settings.Region, key)
}
