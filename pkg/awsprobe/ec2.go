package awsprobe

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
	DescribeNatGateways(ctx context.Context, params *ec2.DescribeNatGatewaysInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

func (p *Probes) discoverInstances(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := ec2.NewDescribeInstancesPaginator(p.clients(region).ec2, &ec2.DescribeInstancesInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeInstances", err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
					continue
				}
				rec := inventory.ResourceRecord{
					ID:   aws.ToString(inst.InstanceId),
					Tags: parseTags(inst.Tags),
					Attributes: map[string]any{
						inventory.AttrInstanceClass: string(inst.InstanceType),
					},
				}
				rec.Name = rec.Tags["Name"]
				if inst.State != nil {
					rec.State = string(inst.State.Name)
				}
				if inst.LaunchTime != nil {
					rec.Attributes[inventory.AttrLaunchTime] = *inst.LaunchTime
				}
				if inst.Placement != nil {
					rec.Attributes["AvailabilityZone"] = aws.ToString(inst.Placement.AvailabilityZone)
				}
				if f.Match(rec) {
					out = append(out, rec)
				}
			}
		}
	}
	return out, nil
}

func (p *Probes) discoverVolumes(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := ec2.NewDescribeVolumesPaginator(p.clients(region).ec2, &ec2.DescribeVolumesInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeVolumes", err)
		}
		for _, vol := range page.Volumes {
			rec := inventory.ResourceRecord{
				ID:    aws.ToString(vol.VolumeId),
				State: string(vol.State),
				Tags:  parseTags(vol.Tags),
				Attributes: map[string]any{
					inventory.AttrSizeGB:       int(aws.ToInt32(vol.Size)),
					inventory.AttrStorageClass: string(vol.VolumeType),
					inventory.AttrEncrypted:    aws.ToBool(vol.Encrypted),
				},
			}
			rec.Name = rec.Tags["Name"]
			if vol.CreateTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *vol.CreateTime
			}
			if len(vol.Attachments) > 0 {
				rec.Attributes[inventory.AttrAttachedTo] = aws.ToString(vol.Attachments[0].InstanceId)
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (p *Probes) discoverSnapshots(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := ec2.NewDescribeSnapshotsPaginator(p.clients(region).ec2, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeSnapshots", err)
		}
		for _, snap := range page.Snapshots {
			rec := inventory.ResourceRecord{
				ID:    aws.ToString(snap.SnapshotId),
				State: string(snap.State),
				Tags:  parseTags(snap.Tags),
				Attributes: map[string]any{
					inventory.AttrSizeGB:       int(aws.ToInt32(snap.VolumeSize)),
					inventory.AttrStorageClass: "snapshot",
					inventory.AttrEncrypted:    aws.ToBool(snap.Encrypted),
					"SourceVolume":             aws.ToString(snap.VolumeId),
				},
			}
			rec.Name = rec.Tags["Name"]
			if snap.StartTime != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *snap.StartTime
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// discoverAddresses lists elastic IPs. DescribeAddresses has no paginator;
// accounts hold at most a few hundred. Unassociated addresses get a DNS
// reference annotation so the orphan finding can warn about dangling
// records.
func (p *Probes) discoverAddresses(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	page, err := p.clients(region).ec2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, classify("DescribeAddresses", err)
	}

	var out []inventory.ResourceRecord
	for _, addr := range page.Addresses {
		id := aws.ToString(addr.AllocationId)
		if id == "" {
			id = aws.ToString(addr.PublicIp)
		}
		rec := inventory.ResourceRecord{
			ID:    id,
			State: "allocated",
			Tags:  parseTags(addr.Tags),
			Attributes: map[string]any{
				"PublicIP": aws.ToString(addr.PublicIp),
			},
		}
		rec.Name = rec.Tags["Name"]
		attachedTo := aws.ToString(addr.InstanceId)
		if attachedTo == "" {
			attachedTo = aws.ToString(addr.NetworkInterfaceId)
		}
		if attachedTo != "" {
			rec.Attributes[inventory.AttrAttachedTo] = attachedTo
		} else if referenced, ok := p.dns.lookup(ctx, aws.ToString(addr.PublicIp)); ok {
			rec.Attributes[inventory.AttrDNSReferenced] = referenced
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *Probes) discoverNATGateways(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := ec2.NewDescribeNatGatewaysPaginator(p.clients(region).ec2, &ec2.DescribeNatGatewaysInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeNatGateways", err)
		}
		for _, nat := range page.NatGateways {
			switch nat.State {
			case types.NatGatewayStateDeleted, types.NatGatewayStateDeleting, types.NatGatewayStateFailed:
				continue
			}
			rec := inventory.ResourceRecord{
				ID:    aws.ToString(nat.NatGatewayId),
				State: string(nat.State),
				Tags:  parseTags(nat.Tags),
				Attributes: map[string]any{
					"VpcId":    aws.ToString(nat.VpcId),
					"SubnetId": aws.ToString(nat.SubnetId),
				},
			}
			rec.Name = rec.Tags["Name"]
			for _, ga := range nat.NatGatewayAddresses {
				if ip := aws.ToString(ga.PublicIp); ip != "" {
					rec.Attributes["PublicIP"] = ip
					break
				}
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (p *Probes) discoverSecurityGroups(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.clients(region).ec2, &ec2.DescribeSecurityGroupsInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeSecurityGroups", err)
		}
		for _, group := range page.SecurityGroups {
			rec := inventory.ResourceRecord{
				ID:    aws.ToString(group.GroupId),
				Name:  aws.ToString(group.GroupName),
				State: "active",
				Tags:  parseTags(group.Tags),
				Attributes: map[string]any{
					"VpcId": aws.ToString(group.VpcId),
				},
			}
			if ports := openAdminPorts(group.IpPermissions); len(ports) > 0 {
				rec.Attributes[inventory.AttrOpenAdminPorts] = ports
			}
			if f.Match(rec) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// adminPorts are the remote-admin and datastore ports that should never be
// open to the world.
var adminPorts = []int{22, 3389, 3306, 5432, 6379, 9200, 27017}

// openAdminPorts returns the admin ports an ingress rule set exposes to
// 0.0.0.0/0 or ::/0, sorted.
func openAdminPorts(perms []types.IpPermission) []int {
	open := make(map[int]struct{})
	for _, perm := range perms {
		if !openToWorld(perm) {
			continue
		}
		proto := aws.ToString(perm.IpProtocol)
		if proto == "-1" {
			for _, port := range adminPorts {
				open[port] = struct{}{}
			}
			continue
		}
		if proto != "tcp" {
			continue
		}
		from := aws.ToInt32(perm.FromPort)
		to := aws.ToInt32(perm.ToPort)
		for _, port := range adminPorts {
			if int32(port) >= from && int32(port) <= to {
				open[port] = struct{}{}
			}
		}
	}
	if len(open) == 0 {
		return nil
	}
	out := make([]int, 0, len(open))
	for port := range open {
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}

func openToWorld(perm types.IpPermission) bool {
	for _, r := range perm.IpRanges {
		if aws.ToString(r.CidrIp) == "0.0.0.0/0" {
			return true
		}
	}
	for _, r := range perm.Ipv6Ranges {
		if aws.ToString(r.CidrIpv6) == "::/0" {
			return true
		}
	}
	return false
}

func parseTags(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}

func instanceMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"InstanceId": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricCPU,
			Unit:       "percent",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "AWS/EC2", MetricName: "CPUUtilization", Dimensions: dims},
			NoDataNote: "stopped instances report no CPU datapoints",
		},
		{
			Name:       inventory.MetricMemory,
			Unit:       "percent",
			Statistics: []inventory.Statistic{inventory.StatAverage, inventory.StatMaximum},
			Query:      inventory.MetricQuery{Namespace: "CWAgent", MetricName: "mem_used_percent", Dimensions: dims},
			NoDataNote: "memory metrics require the CloudWatch agent on the instance",
		},
	}
}

func volumeMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	dims := map[string]string{"VolumeId": rec.ID}
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricReadOps,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/EBS", MetricName: "VolumeReadOps", Dimensions: dims},
			NoDataNote: "volume metrics appear only while attached to a running instance",
		},
		{
			Name:       inventory.MetricWriteOps,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/EBS", MetricName: "VolumeWriteOps", Dimensions: dims},
			NoDataNote: "volume metrics appear only while attached to a running instance",
		},
	}
}

func natMetricDefs(rec inventory.ResourceRecord) []inventory.MetricDefinition {
	return []inventory.MetricDefinition{
		{
			Name:       inventory.MetricActiveConnections,
			Unit:       "count",
			Statistics: []inventory.Statistic{inventory.StatTotal},
			Query:      inventory.MetricQuery{Namespace: "AWS/NATGateway", MetricName: "ConnectionEstablishedCount", Dimensions: map[string]string{"NatGatewayId": rec.ID}},
			Period:     24 * time.Hour,
			NoDataNote: "connection metrics appear once traffic flows through the gateway",
		},
	}
}
