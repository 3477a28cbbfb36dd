// Package aws holds the EC2 lookups used before provisioning AWS-hosted
// clusters: region validation and least-crowded region selection.
package aws

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedRegion is returned for regions the account cannot use.
var ErrUnsupportedRegion = errors.New("unsupported aws region")

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
}

// ClientFactory returns an EC2 client bound to region.
type ClientFactory func(region string) EC2API

// Credentials are static AWS credentials. Empty keys fall back to the
// default credential chain.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// NewClientFactory loads the AWS configuration once and hands out
// per-region EC2 clients.
func NewClientFactory(ctx context.Context, creds Credentials) (ClientFactory, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return func(region string) EC2API {
		return ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Region = region })
	}, nil
}

// Regions looks up the regions enabled for the account.
type Regions struct {
	clients ClientFactory
	// home is the region used for account-wide queries.
	home string
}

// NewRegions creates a region helper.
func NewRegions(clients ClientFactory) *Regions {
	return &Regions{clients: clients, home: "us-east-1"}
}

// List returns the enabled regions, sorted.
func (r *Regions) List(ctx context.Context) ([]string, error) {
	out, err := r.clients(r.home).DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, reg := range out.Regions {
		if name := aws.ToString(reg.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// Validate checks that region is enabled for the account.
func (r *Regions) Validate(ctx context.Context, region string) error {
	regions, err := r.List(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(regions, region) {
		return fmt.Errorf("%w: %s", ErrUnsupportedRegion, region)
	}
	return nil
}

// LeastCrowded returns the candidate region holding the fewest VPCs.
// An empty candidate list means every enabled region. Ties go to the
// alphabetically first region.
func (r *Regions) LeastCrowded(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		var err error
		if candidates, err = r.List(ctx); err != nil {
			return "", err
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no regions available", ErrUnsupportedRegion)
	}

	counts := make([]int, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, region := range candidates {
		g.Go(func() error {
			n, err := r.vpcCount(gctx, region)
			if err != nil {
				return fmt.Errorf("count vpcs in %s: %w", region, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	sorted := slices.Clone(candidates)
	sort.Strings(sorted)
	best, bestCount := "", -1
	for _, region := range sorted {
		n := counts[slices.Index(candidates, region)]
		if bestCount < 0 || n < bestCount {
			best, bestCount = region, n
		}
	}
	return best, nil
}

func (r *Regions) vpcCount(ctx context.Context, region string) (int, error) {
	client := r.clients(region)
	paginator := ec2.NewDescribeVpcsPaginator(client, &ec2.DescribeVpcsInput{})
	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += len(page.Vpcs)
	}
	return total, nil
}
