//go:build e2e

package e2e

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// GetAWSConfig returns the shared config pointing at LocalStack.
func GetAWSConfig(t *testing.T) aws.Config {
	t.Helper()
	if awsCfg.Region == "" {
		t.Fatal("AWS config not initialized (TestMain didn't run?)")
	}
	return awsCfg
}

// ProvisionInstance launches a t3.micro with the given tags and returns
// its ID.
func ProvisionInstance(t *testing.T, client *ec2.Client, tags map[string]string) string {
	t.Helper()

	var tagSpec []types.Tag
	for k, v := range tags {
		tagSpec = append(tagSpec, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	out, err := client.RunInstances(context.TODO(), &ec2.RunInstancesInput{
		ImageId:      aws.String("ami-12345678"), // LocalStack accepts any AMI ID
		InstanceType: types.InstanceTypeT3Micro,
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: tagSpec},
		},
	})
	if err != nil {
		t.Fatalf("Failed to provision instance: %v", err)
	}
	id := aws.ToString(out.Instances[0].InstanceId)
	t.Logf("Provisioned instance %s with tags %v", id, tags)
	return id
}

// ProvisionVolume creates a volume that nothing attaches to and returns
// its ID.
func ProvisionVolume(t *testing.T, client *ec2.Client, sizeGB int32) string {
	t.Helper()

	out, err := client.CreateVolume(context.TODO(), &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String("us-east-1a"),
		Size:             aws.Int32(sizeGB),
	})
	if err != nil {
		t.Fatalf("Failed to provision volume: %v", err)
	}
	id := aws.ToString(out.VolumeId)
	t.Logf("Provisioned volume %s (%d GiB, unattached)", id, sizeGB)
	return id
}

// ProvisionOpenSecurityGroup creates a group with SSH open to the world
// and returns its ID.
func ProvisionOpenSecurityGroup(t *testing.T, client *ec2.Client, name string) string {
	t.Helper()

	created, err := client.CreateSecurityGroup(context.TODO(), &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("e2e seed: ssh open to the world"),
	})
	if err != nil {
		t.Fatalf("Failed to create security group: %v", err)
	}
	id := aws.ToString(created.GroupId)

	_, err = client.AuthorizeSecurityGroupIngress(context.TODO(), &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(id),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(22),
		ToPort:     aws.Int32(22),
		CidrIp:     aws.String("0.0.0.0/0"),
	})
	if err != nil {
		t.Fatalf("Failed to authorize ingress: %v", err)
	}
	t.Logf("Provisioned security group %s with 22/tcp open", id)
	return id
}

// BuildBinary compiles the CLI into a temp dir and returns the path.
func BuildBinary(t *testing.T) string {
	t.Helper()

	binPath := filepath.Join(t.TempDir(), "cloudgauge")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/cloudgauge")
	cmd.Dir = "../.."
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Build failed: %s", out)
	}
	return binPath
}
