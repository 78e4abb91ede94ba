package awsprobe

import (
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
	"github.com/gaugeworks/cloudgauge/pkg/audit/metrics"
)

// Resource type strings. Each maps to one registry entry; adding a type
// means adding a constant, a discover method, and one registration line.
const (
	TypeInstance      inventory.ResourceType = "ec2-instance"
	TypeVolume        inventory.ResourceType = "ebs-volume"
	TypeSnapshot      inventory.ResourceType = "ebs-snapshot"
	TypeAddress       inventory.ResourceType = "elastic-ip"
	TypeNATGateway    inventory.ResourceType = "nat-gateway"
	TypeSecurityGroup inventory.ResourceType = "security-group"
	TypeDatabase      inventory.ResourceType = "rds-instance"
	TypeFunction      inventory.ResourceType = "lambda-function"
	TypeBucket        inventory.ResourceType = "s3-bucket"
	TypeLoadBalancer  inventory.ResourceType = "load-balancer"
	TypeTable         inventory.ResourceType = "dynamodb-table"
	TypeCache         inventory.ResourceType = "cache-cluster"
	TypeKubeCluster   inventory.ResourceType = "eks-cluster"
	TypeECSCluster    inventory.ResourceType = "ecs-cluster"
	TypeRegistry      inventory.ResourceType = "ecr-repository"
	TypeWarehouse     inventory.ResourceType = "redshift-cluster"
	TypeLogGroup      inventory.ResourceType = "log-group"
)

// AllTypes returns every supported resource type.
func AllTypes() []inventory.ResourceType {
	return []inventory.ResourceType{
		TypeInstance, TypeVolume, TypeSnapshot, TypeAddress, TypeNATGateway,
		TypeSecurityGroup, TypeDatabase, TypeFunction, TypeBucket,
		TypeLoadBalancer, TypeTable, TypeCache, TypeKubeCluster,
		TypeECSCluster, TypeRegistry, TypeWarehouse, TypeLogGroup,
	}
}

// regionClients bundles the per-region SDK clients behind narrow
// interfaces so probe tests inject fakes without touching the network.
type regionClients struct {
	ec2      ec2API
	rds      rdsAPI
	lambda   lambdaAPI
	s3       s3API
	elb      elbAPI
	waf      wafAPI
	dynamo   dynamoAPI
	scaling  scalingAPI
	cache    cacheAPI
	eks      eksAPI
	ecs      ecsAPI
	ecr      ecrAPI
	redshift redshiftAPI
	logs     logsAPI
}

// Probes owns the discovery side of the provider: one discover method per
// resource type, all registered through Registry.
type Probes struct {
	sess    *Session
	log     *slog.Logger
	querier metrics.Querier
	dns     *dnsIndex

	mu      sync.Mutex
	regions map[string]*regionClients
}

// NewProbes builds the probe set over one session.
func NewProbes(sess *Session, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Probes{
		sess:    sess,
		log:     log,
		querier: NewMetrics(sess),
		dns:     newDNSIndex(sess, log),
		regions: make(map[string]*regionClients),
	}
}

// clients returns the cached client bundle for a region, building it on
// first use.
func (p *Probes) clients(region string) *regionClients {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rc, ok := p.regions[region]; ok {
		return rc
	}
	cfg := p.sess.ConfigFor(region)
	rc := &regionClients{
		ec2:      ec2.NewFromConfig(cfg),
		rds:      rds.NewFromConfig(cfg),
		lambda:   lambda.NewFromConfig(cfg),
		s3:       s3.NewFromConfig(cfg),
		elb:      elasticloadbalancingv2.NewFromConfig(cfg),
		waf:      wafv2.NewFromConfig(cfg),
		dynamo:   dynamodb.NewFromConfig(cfg),
		scaling:  applicationautoscaling.NewFromConfig(cfg),
		cache:    elasticache.NewFromConfig(cfg),
		eks:      eks.NewFromConfig(cfg),
		ecs:      ecs.NewFromConfig(cfg),
		ecr:      ecr.NewFromConfig(cfg),
		redshift: redshift.NewFromConfig(cfg),
		logs:     cloudwatchlogs.NewFromConfig(cfg),
	}
	p.regions[region] = rc
	return rc
}

// Registry wires every resource type to its probe and metric catalog.
func (p *Probes) Registry() *inventory.ProbeRegistry {
	reg := inventory.NewProbeRegistry()
	reg.MustRegister(inventory.Entry{Type: TypeInstance, Kind: inventory.KindCompute, Discover: p.discoverInstances, MetricDefs: instanceMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeVolume, Kind: inventory.KindVolume, Discover: p.discoverVolumes, MetricDefs: volumeMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeSnapshot, Kind: inventory.KindSnapshot, Discover: p.discoverSnapshots})
	reg.MustRegister(inventory.Entry{Type: TypeAddress, Kind: inventory.KindAddress, Discover: p.discoverAddresses})
	reg.MustRegister(inventory.Entry{Type: TypeNATGateway, Kind: inventory.KindNetwork, Discover: p.discoverNATGateways, MetricDefs: natMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeSecurityGroup, Kind: inventory.KindSecurityGroup, Discover: p.discoverSecurityGroups})
	reg.MustRegister(inventory.Entry{Type: TypeDatabase, Kind: inventory.KindDatabase, Discover: p.discoverDatabases, MetricDefs: databaseMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeFunction, Kind: inventory.KindFunction, Discover: p.discoverFunctions, MetricDefs: functionMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeBucket, Kind: inventory.KindObjectStore, Discover: p.discoverBuckets, MetricDefs: bucketMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeLoadBalancer, Kind: inventory.KindLoadBalancer, Discover: p.discoverLoadBalancers, MetricDefs: loadBalancerMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeTable, Kind: inventory.KindTable, Discover: p.discoverTables, MetricDefs: tableMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeCache, Kind: inventory.KindCache, Discover: p.discoverCacheClusters, MetricDefs: cacheMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeKubeCluster, Kind: inventory.KindCluster, Discover: p.discoverKubeClusters, MetricDefs: kubeClusterMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeECSCluster, Kind: inventory.KindCluster, Discover: p.discoverECSClusters, MetricDefs: ecsClusterMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeRegistry, Kind: inventory.KindRegistry, Discover: p.discoverRepositories})
	reg.MustRegister(inventory.Entry{Type: TypeWarehouse, Kind: inventory.KindWarehouse, Discover: p.discoverWarehouses, MetricDefs: warehouseMetricDefs})
	reg.MustRegister(inventory.Entry{Type: TypeLogGroup, Kind: inventory.KindLogGroup, Discover: p.discoverLogGroups, MetricDefs: logGroupMetricDefs})
	return reg
}
