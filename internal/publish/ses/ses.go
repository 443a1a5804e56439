// Package ses implements a Publisher that relays chunks as email via AWS
// SES v2, for sites where a chat bot is not reachable.
package ses

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// maxSubjectLen bounds the subject derived from the chunk's first line.
const maxSubjectLen = 78

// Config holds the configuration for creating a Publisher.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
	Recipient       string
}

// Publisher sends each chunk as one plain-text email via the AWS SES v2 API.
type Publisher struct {
	sender    string
	recipient string
	client    SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SES Publisher with the given configuration.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		sender:    cfg.Sender,
		recipient: cfg.Recipient,
		client:    sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Publisher with a custom client, used for testing.
func NewWithClient(sender, recipient string, client SendEmailAPI) *Publisher {
	return &Publisher{
		sender:    sender,
		recipient: recipient,
		client:    client,
	}
}

// Publish sends one chunk as a plain-text email. Single attempt; the
// destination's own durability is the retry story here.
func (p *Publisher) Publish(ctx context.Context, text string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.sender),
		Destination: &types.Destination{
			ToAddresses: []string{p.recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subjectFromText(text)),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(text),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := p.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("SES API request failed: %w", err)
	}
	return nil
}

// Name returns the backend name.
func (p *Publisher) Name() string {
	return "ses"
}

// subjectFromText derives an email subject from the chunk's first
// non-empty line.
func subjectFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > maxSubjectLen {
			return string(runes[:maxSubjectLen])
		}
		return line
	}
	return "(no content)"
}
