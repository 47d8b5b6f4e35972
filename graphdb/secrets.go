// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretResolver turns a secret reference into a credential. Used by the
// Router when a dedicated tenant's routing config stores a Secrets Manager
// ARN instead of an inline password.
type SecretResolver interface {
	Resolve(ctx context.Context, secretARN string) (string, error)
}

// AWSSecretResolver implements SecretResolver using AWS Secrets Manager.
// Resolved values are cached with a TTL so repeated client constructions
// for the same tenant don't hammer the API.
type AWSSecretResolver struct {
	client *secretsmanager.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]secretCacheEntry
}

type secretCacheEntry struct {
	value     string
	expiresAt time.Time
}

// AWSSecretResolverOptions holds options for creating an AWSSecretResolver.
type AWSSecretResolverOptions struct {
	Region   string
	CacheTTL time.Duration
}

// NewAWSSecretResolver creates a Secrets Manager backed resolver.
func NewAWSSecretResolver(ctx context.Context, opts AWSSecretResolverOptions) (*AWSSecretResolver, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretResolver{
		client: secretsmanager.NewFromConfig(cfg),
		ttl:    ttl,
		cache:  make(map[string]secretCacheEntry),
	}, nil
}

// Resolve fetches the secret value. Secrets stored as JSON objects are
// expected to carry the credential under a "password" key; plain string
// secrets are returned as-is.
func (r *AWSSecretResolver) Resolve(ctx context.Context, secretARN string) (string, error) {
	r.mu.RLock()
	entry, ok := r.cache[secretARN]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	result, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret has no string value")
	}

	value := *result.SecretString
	var fields map[string]string
	if err := json.Unmarshal([]byte(value), &fields); err == nil {
		if pw, ok := fields["password"]; ok {
			value = pw
		}
	}

	r.mu.Lock()
	r.cache[secretARN] = secretCacheEntry{value: value, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return value, nil
}
