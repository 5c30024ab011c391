package presign

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const DefaultExpiry = 15 * time.Minute

// Signed is a presigned request: the URL plus headers that were part of the
// signature and must be sent unchanged.
type Signed struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type Presigner struct {
	client *s3.PresignClient
	expiry time.Duration
}

type Options struct {
	Profile string
	Region  string
	Expiry  time.Duration
}

// New loads the shared AWS configuration for the profile.
func New(ctx context.Context, opts Options) (*Presigner, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return NewFromConfig(cfg, opts.Expiry), nil
}

func NewFromConfig(cfg aws.Config, expiry time.Duration, optFns ...func(*s3.Options)) *Presigner {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Presigner{
		client: s3.NewPresignClient(s3.NewFromConfig(cfg, optFns...)),
		expiry: expiry,
	}
}

// IsS3URL reports whether link uses the s3:// scheme.
func IsS3URL(link string) bool {
	return strings.HasPrefix(link, "s3://")
}

// ParseS3URL splits s3://bucket/key (the scheme is optional).
func ParseS3URL(link string) (string, string, error) {
	link = strings.TrimPrefix(link, "s3://")
	parts := strings.SplitN(link, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid S3 object URL %q, expected s3://bucket/key", link)
	}
	return parts[0], parts[1], nil
}

func (p *Presigner) Get(ctx context.Context, link string) (*Signed, error) {
	bucket, key, err := ParseS3URL(link)
	if err != nil {
		return nil, err
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("error presigning GET for s3://%s/%s: %v", bucket, key, err)
	}
	log.Debug().Str("op", "presign/get").Msgf("presigned s3://%s/%s for %s", bucket, key, p.expiry)
	return signed(req.Method, req.URL, req.SignedHeader), nil
}

// Put presigns an upload. contentType is optional; when set it is returned
// in the headers the uploader has to send.
func (p *Presigner) Put(ctx context.Context, link, contentType string) (*Signed, error) {
	bucket, key, err := ParseS3URL(link)
	if err != nil {
		return nil, err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := p.client.PresignPutObject(ctx, input, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("error presigning PUT for s3://%s/%s: %v", bucket, key, err)
	}
	log.Debug().Str("op", "presign/put").Msgf("presigned s3://%s/%s for %s", bucket, key, p.expiry)
	out := signed(req.Method, req.URL, req.SignedHeader)
	if contentType != "" {
		// The object gets whatever Content-Type the uploader sends.
		out.Headers["Content-Type"] = contentType
	}
	return out, nil
}

// signed keeps only headers the caller has to send; Host is set by net/http.
// Keys come back canonical whatever case the SDK used.
func signed(method, url string, header http.Header) *Signed {
	s := &Signed{Method: method, URL: url, Headers: map[string]string{}}
	for k, values := range header {
		key := http.CanonicalHeaderKey(k)
		if key == "Host" || len(values) == 0 {
			continue
		}
		s.Headers[key] = strings.Join(values, ",")
	}
	return s
}
