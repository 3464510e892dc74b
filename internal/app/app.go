package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"curiosity/handler"
	"curiosity/internal/config"
	"curiosity/internal/integrations/mistral"
	"curiosity/internal/integrations/paramstore"
	"curiosity/internal/repository"
	"curiosity/internal/usecase"
)

// AWSLoader returns the SDK configuration. It is only called when an SSM key
// parameter or an exchange table is configured.
type AWSLoader func(ctx context.Context) (aws.Config, error)

func DefaultAWSLoader(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// NewHandler wires the request pipeline shared by the Lambda and HTTP entrypoints.
func NewHandler(ctx context.Context, cfg *config.Config, loadAWS AWSLoader) (*handler.Handler, error) {
	var awsCfg *aws.Config
	awsConfig := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := loadAWS(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	keys, err := keySource(cfg, awsConfig)
	if err != nil {
		return nil, err
	}

	client, err := mistral.NewClient(keys,
		mistral.WithBaseURL(cfg.MistralBaseURL),
		mistral.WithTimeout(cfg.UpstreamTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create mistral client: %w", err)
	}

	var recorder usecase.ExchangeRecorder
	if cfg.ExchangeTable != "" {
		c, err := awsConfig()
		if err != nil {
			return nil, err
		}
		log, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.ExchangeTable)
		if err != nil {
			return nil, fmt.Errorf("app: create exchange log: %w", err)
		}
		recorder = log
	}

	svc, err := usecase.NewAskService(client, recorder, cfg.MistralModel)
	if err != nil {
		return nil, fmt.Errorf("app: create ask service: %w", err)
	}
	return handler.NewHandler(svc)
}

// keySource prefers the key from the environment, then the SSM parameter.
// With neither, requests fail with a configuration error rather than startup.
func keySource(cfg *config.Config, awsConfig func() (aws.Config, error)) (mistral.KeySource, error) {
	if cfg.MistralAPIKey != "" {
		return mistral.StaticKey(cfg.MistralAPIKey), nil
	}
	if cfg.MistralKeyParam == "" {
		slog.Warn("MISTRAL_API_KEY not configured")
		return mistral.StaticKey(""), nil
	}

	c, err := awsConfig()
	if err != nil {
		return nil, err
	}
	store, err := paramstore.New(awsssm.NewFromConfig(c))
	if err != nil {
		return nil, fmt.Errorf("app: create paramstore client: %w", err)
	}
	keys, err := mistral.NewParamStoreKey(store, cfg.MistralKeyParam)
	if err != nil {
		return nil, fmt.Errorf("app: create key source: %w", err)
	}
	return keys, nil
}
