package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	regions []string
	vpcs    int
	err     error
}

func (f *fakeEC2) DescribeRegions(context.Context, *ec2.DescribeRegionsInput, ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeRegionsOutput{}
	for _, r := range f.regions {
		out.Regions = append(out.Regions, types.Region{RegionName: aws.String(r)})
	}
	return out, nil
}

func (f *fakeEC2) DescribeVpcs(context.Context, *ec2.DescribeVpcsInput, ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.DescribeVpcsOutput{Vpcs: make([]types.Vpc, f.vpcs)}, nil
}

func factory(perRegion map[string]*fakeEC2) ClientFactory {
	return func(region string) EC2API {
		if c, ok := perRegion[region]; ok {
			return c
		}
		return &fakeEC2{}
	}
}

func TestRegions_Validate(t *testing.T) {
	t.Parallel()

	r := NewRegions(factory(map[string]*fakeEC2{
		"us-east-1": {regions: []string{"us-west-2", "us-east-1", "eu-west-1"}},
	}))

	require.NoError(t, r.Validate(context.Background(), "eu-west-1"))
	assert.ErrorIs(t, r.Validate(context.Background(), "mars-north-1"), ErrUnsupportedRegion)
}

func TestRegions_ListError(t *testing.T) {
	t.Parallel()

	r := NewRegions(factory(map[string]*fakeEC2{"us-east-1": {err: errors.New("denied")}}))
	_, err := r.List(context.Background())
	assert.ErrorContains(t, err, "denied")
}

func TestRegions_LeastCrowded(t *testing.T) {
	t.Parallel()

	r := NewRegions(factory(map[string]*fakeEC2{
		"us-east-1": {regions: []string{"us-east-1", "us-east-2", "us-west-2"}, vpcs: 4},
		"us-east-2": {vpcs: 1},
		"us-west-2": {vpcs: 1},
	}))

	region, err := r.LeastCrowded(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", region)

	region, err = r.LeastCrowded(context.Background(), []string{"us-west-2", "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", region)
}

func TestRegions_LeastCrowdedError(t *testing.T) {
	t.Parallel()

	r := NewRegions(factory(map[string]*fakeEC2{"eu-west-1": {err: errors.New("throttled")}}))
	_, err := r.LeastCrowded(context.Background(), []string{"eu-west-1", "us-east-1"})
	assert.ErrorContains(t, err, "eu-west-1")
}
