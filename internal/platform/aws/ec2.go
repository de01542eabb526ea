package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// ec2API is the subset of the EC2 client diagnostics use.
type ec2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// InstanceInfo is the live view of a provisioned instance.
type InstanceInfo struct {
	InstanceID   string
	State        string // pending, running, stopping, stopped, terminated
	PublicIP     string
	InstanceType string
}

// EC2Client inspects provisioned instances.
type EC2Client struct {
	api ec2API
}

// NewEC2Client creates an EC2 client using the default credential chain.
func NewEC2Client(ctx context.Context, region string) (*EC2Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &EC2Client{api: ec2.NewFromConfig(cfg)}, nil
}

// NewEC2ClientWithAPI creates a client on an injected API, for tests.
func NewEC2ClientWithAPI(api ec2API) *EC2Client {
	return &EC2Client{api: api}
}

// DescribeInstance returns the live state of one instance, or (nil, nil)
// when the instance does not exist.
func (c *EC2Client) DescribeInstance(ctx context.Context, instanceID string) (*InstanceInfo, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			info := &InstanceInfo{
				InstanceID:   aws.ToString(instance.InstanceId),
				PublicIP:     aws.ToString(instance.PublicIpAddress),
				InstanceType: string(instance.InstanceType),
			}
			if instance.State != nil {
				info.State = string(instance.State.Name)
			}
			return info, nil
		}
	}
	return nil, nil
}
