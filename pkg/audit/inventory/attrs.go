package inventory

// Well-known attribute keys. Probes publish these so the analysis passes can
// read them without knowing provider type strings; probes may add further
// type-specific keys beyond this vocabulary.
const (
	// AttrInstanceClass is the provider size class ("t3.large", "db.r5.xlarge").
	AttrInstanceClass = "InstanceClass"
	// AttrLaunchTime is when a compute resource started (time.Time).
	AttrLaunchTime = "LaunchTime"
	// AttrCreatedAt is the creation timestamp for storage resources (time.Time).
	AttrCreatedAt = "CreatedAt"
	// AttrSizeGB is provisioned storage in gigabytes (numeric).
	AttrSizeGB = "SizeGB"
	// AttrStorageClass is the storage tier ("gp3", "io1", "standard").
	AttrStorageClass = "StorageClass"
	// AttrEncrypted flags at-rest encryption on block storage (bool).
	AttrEncrypted = "Encrypted"
	// AttrPubliclyAccessible flags databases reachable from the internet (bool).
	AttrPubliclyAccessible = "PubliclyAccessible"
	// AttrOpenAdminPorts lists administrative ports open to 0.0.0.0/0 ([]int).
	AttrOpenAdminPorts = "OpenAdminPorts"
	// AttrPublic flags object storage with public access (bool).
	AttrPublic = "Public"
	// AttrInternetFacing flags load balancers with a public scheme (bool).
	AttrInternetFacing = "InternetFacing"
	// AttrWAFProtected flags load balancers with a web ACL association (bool).
	AttrWAFProtected = "WAFProtected"
	// AttrRetentionDays is a log group's retention setting; 0 means unbounded (numeric).
	AttrRetentionDays = "RetentionDays"
	// AttrStoredBytes is stored data volume for log groups and buckets (numeric).
	AttrStoredBytes = "StoredBytes"
	// AttrNodeCount is the node or member count of a cluster (numeric).
	AttrNodeCount = "NodeCount"
	// AttrLifecyclePolicy flags registries with a lifecycle policy (bool).
	AttrLifecyclePolicy = "LifecyclePolicy"
	// AttrDNSReferenced flags addresses referenced by a DNS record (bool).
	AttrDNSReferenced = "DNSReferenced"
	// AttrAutoscaling flags tables with an active scaling policy (bool).
	AttrAutoscaling = "Autoscaling"
	// AttrBillingMode is a table's capacity mode ("PROVISIONED", "PAY_PER_REQUEST").
	AttrBillingMode = "BillingMode"
	// AttrMemoryMB is configured function memory in megabytes (numeric).
	AttrMemoryMB = "MemoryMB"
	// AttrEngine is a database or cache engine name ("postgres", "redis").
	AttrEngine = "Engine"
	// AttrAttachedTo is the instance a volume or address is attached to; empty
	// means unattached.
	AttrAttachedTo = "AttachedTo"
	// AttrMaxConnections is the configured connection ceiling for a database (numeric).
	AttrMaxConnections = "MaxConnections"
)
