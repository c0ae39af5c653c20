// Package aws создаёт клиентов AWS SES и SNS из стандартной цепочки учётных данных.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// NewSESClient создаёт клиент SES для региона region.
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	const op = "aws.NewSESClient"
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ses.NewFromConfig(cfg), nil
}

// NewSNSClient создаёт клиент SNS для региона region.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	const op = "aws.NewSNSClient"
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sns.NewFromConfig(cfg), nil
}
