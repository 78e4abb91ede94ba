package findings

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// Security check names.
const (
	CheckAdminPorts       = "admin-ports-closed"
	CheckPublicStorage    = "object-storage-private"
	CheckVolumeEncryption = "volumes-encrypted"
	CheckDatabaseExposure = "databases-private"
	CheckKeyRotation      = "access-keys-rotated"
	CheckAuditTrail       = "audit-trail-active"
	CheckWAFCoverage      = "waf-coverage"
)

// checkWeights sets each check's share of the posture score. Exposed admin
// ports weigh the most; they are the fastest path to compromise.
var checkWeights = map[string]int{
	CheckAdminPorts:       25,
	CheckPublicStorage:    20,
	CheckVolumeEncryption: 15,
	CheckDatabaseExposure: 15,
	CheckKeyRotation:      10,
	CheckAuditTrail:       10,
	CheckWAFCoverage:      5,
}

// checkOutcome is one check's contribution to the report: evaluated with a
// result, or skipped with a reason, never both.
type checkOutcome struct {
	result   *CheckResult
	skipped  *SkippedCheck
	findings []Finding
}

func passCheck(name, detail string) checkOutcome {
	return checkOutcome{result: &CheckResult{Check: name, Weight: checkWeights[name], Passed: true, Detail: detail}}
}

func failCheck(name, detail string, fs []Finding) checkOutcome {
	return checkOutcome{
		result:   &CheckResult{Check: name, Weight: checkWeights[name], Passed: false, Detail: detail},
		findings: fs,
	}
}

func skipCheck(name, reason string) checkOutcome {
	return checkOutcome{skipped: &SkippedCheck{Check: name, Reason: reason}}
}

// securityPosture evaluates the weighted checklist and fills the security
// sections of the report. Skipped checks drop out of the denominator so
// missing data never masquerades as a pass or a failure.
func (e *Engine) securityPosture(ctx context.Context, in Inputs, rep *Report) {
	_, span := otel.Tracer(tracerName).Start(ctx, "findings.securityPosture")
	defer span.End()

	outcomes := []checkOutcome{
		checkAdminPorts(in),
		checkPublicStorage(in),
		checkVolumeEncryption(in),
		checkDatabaseExposure(in),
		checkKeyRotation(in),
		checkAuditTrail(in),
		checkWAFCoverage(in),
	}

	var evaluated, passed int
	for _, o := range outcomes {
		if o.skipped != nil {
			rep.SkippedChecks = append(rep.SkippedChecks, *o.skipped)
			continue
		}
		rep.SecurityChecks = append(rep.SecurityChecks, *o.result)
		rep.SecurityFindings = append(rep.SecurityFindings, o.findings...)
		evaluated += o.result.Weight
		if o.result.Passed {
			passed += o.result.Weight
		}
	}

	if evaluated > 0 {
		rep.SecurityScore = int(math.Round(100 * float64(passed) / float64(evaluated)))
	}
	span.SetAttributes(
		attribute.Int("security.score", rep.SecurityScore),
		attribute.Int("security.checks_evaluated", len(rep.SecurityChecks)),
		attribute.Int("security.checks_skipped", len(rep.SkippedChecks)),
	)
}

// checkAdminPorts fails when any security group opens an administrative
// port to the world. Each offender is a critical finding regardless of how
// the rest of the posture scores.
func checkAdminPorts(in Inputs) checkOutcome {
	groups := in.byKind(inventory.KindSecurityGroup)
	if len(groups) == 0 {
		return skipCheck(CheckAdminPorts, "no security groups discovered")
	}
	var fs []Finding
	for _, rec := range groups {
		ports, ok := rec.IntsAttr(inventory.AttrOpenAdminPorts)
		if !ok {
			continue
		}
		ports = filterAdminPorts(ports, in.Security.AdminPorts)
		if len(ports) == 0 {
			continue
		}
		fs = append(fs, Finding{
			Category:       CategorySecurity,
			Severity:       SeverityCritical,
			Rule:           CheckAdminPorts,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s exposes administrative ports %v to 0.0.0.0/0", displayName(rec), ports),
			Recommendation: "restrict the source to a trusted CIDR or a bastion host",
		})
	}
	if len(fs) > 0 {
		return failCheck(CheckAdminPorts, fmt.Sprintf("%d of %d security groups expose admin ports", len(fs), len(groups)), fs)
	}
	return passCheck(CheckAdminPorts, "")
}

// filterAdminPorts keeps the open ports the operator counts as
// administrative. An empty configuration keeps everything discovery found.
func filterAdminPorts(open []int, admin []int32) []int {
	if len(admin) == 0 {
		return open
	}
	keep := make([]int, 0, len(open))
	for _, p := range open {
		for _, a := range admin {
			if p == int(a) {
				keep = append(keep, p)
				break
			}
		}
	}
	return keep
}

func checkPublicStorage(in Inputs) checkOutcome {
	buckets := in.byKind(inventory.KindObjectStore)
	if len(buckets) == 0 {
		return skipCheck(CheckPublicStorage, "no object stores discovered")
	}
	var fs []Finding
	for _, rec := range buckets {
		if public, ok := rec.BoolAttr(inventory.AttrPublic); !ok || !public {
			continue
		}
		fs = append(fs, Finding{
			Category:       CategorySecurity,
			Severity:       SeverityHigh,
			Rule:           CheckPublicStorage,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s allows public access", displayName(rec)),
			Recommendation: "enable the public access block unless the bucket serves a website",
		})
	}
	if len(fs) > 0 {
		return failCheck(CheckPublicStorage, fmt.Sprintf("%d of %d object stores allow public access", len(fs), len(buckets)), fs)
	}
	return passCheck(CheckPublicStorage, "")
}

func checkVolumeEncryption(in Inputs) checkOutcome {
	volumes := in.byKind(inventory.KindVolume)
	if len(volumes) == 0 {
		return skipCheck(CheckVolumeEncryption, "no volumes discovered")
	}
	var fs []Finding
	for _, rec := range volumes {
		if encrypted, ok := rec.BoolAttr(inventory.AttrEncrypted); !ok || encrypted {
			continue
		}
		fs = append(fs, Finding{
			Category:       CategorySecurity,
			Severity:       SeverityMedium,
			Rule:           CheckVolumeEncryption,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s is not encrypted at rest", displayName(rec)),
			Recommendation: "snapshot, copy with encryption, and swap the volume",
		})
	}
	if len(fs) > 0 {
		return failCheck(CheckVolumeEncryption, fmt.Sprintf("%d of %d volumes are unencrypted", len(fs), len(volumes)), fs)
	}
	return passCheck(CheckVolumeEncryption, "")
}

func checkDatabaseExposure(in Inputs) checkOutcome {
	databases := in.byKind(inventory.KindDatabase)
	if len(databases) == 0 {
		return skipCheck(CheckDatabaseExposure, "no databases discovered")
	}
	var fs []Finding
	for _, rec := range databases {
		if public, ok := rec.BoolAttr(inventory.AttrPubliclyAccessible); !ok || !public {
			continue
		}
		fs = append(fs, Finding{
			Category:       CategorySecurity,
			Severity:       SeverityHigh,
			Rule:           CheckDatabaseExposure,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s is publicly accessible", displayName(rec)),
			Recommendation: "disable public accessibility and route through a private subnet",
		})
	}
	if len(fs) > 0 {
		return failCheck(CheckDatabaseExposure, fmt.Sprintf("%d of %d databases are publicly accessible", len(fs), len(databases)), fs)
	}
	return passCheck(CheckDatabaseExposure, "")
}

func checkKeyRotation(in Inputs) checkOutcome {
	if in.Posture == nil {
		return skipCheck(CheckKeyRotation, "account posture unavailable")
	}
	if in.Posture.AccessKeyErr != nil {
		return skipCheck(CheckKeyRotation, in.Posture.AccessKeyErr.Error())
	}
	maxAge := in.Security.AccessKeyMaxAge
	var stale int
	for _, age := range in.Posture.AccessKeyAges {
		if age > maxAge {
			stale++
		}
	}
	if stale == 0 {
		return passCheck(CheckKeyRotation, "")
	}
	f := Finding{
		Category:       CategorySecurity,
		Severity:       SeverityMedium,
		Rule:           CheckKeyRotation,
		Message:        fmt.Sprintf("%d access keys are older than %.0f days", stale, maxAge.Hours()/24),
		Recommendation: "rotate the keys and prefer short-lived role credentials",
	}
	return failCheck(CheckKeyRotation, fmt.Sprintf("%d of %d access keys past rotation age", stale, len(in.Posture.AccessKeyAges)), []Finding{f})
}

func checkAuditTrail(in Inputs) checkOutcome {
	if in.Posture == nil {
		return skipCheck(CheckAuditTrail, "account posture unavailable")
	}
	if in.Posture.AuditTrailErr != nil {
		return skipCheck(CheckAuditTrail, in.Posture.AuditTrailErr.Error())
	}
	if in.Posture.AuditTrailActive {
		return passCheck(CheckAuditTrail, "")
	}
	f := Finding{
		Category:       CategorySecurity,
		Severity:       SeverityHigh,
		Rule:           CheckAuditTrail,
		Message:        "no active audit trail records account activity",
		Recommendation: "enable an account-wide trail with log file validation",
	}
	return failCheck(CheckAuditTrail, "no active trail", []Finding{f})
}

func checkWAFCoverage(in Inputs) checkOutcome {
	balancers := in.byKind(inventory.KindLoadBalancer)
	if len(balancers) == 0 {
		return skipCheck(CheckWAFCoverage, "no load balancers discovered")
	}
	var exposed int
	var fs []Finding
	for _, rec := range balancers {
		if facing, ok := rec.BoolAttr(inventory.AttrInternetFacing); !ok || !facing {
			continue
		}
		exposed++
		if protected, ok := rec.BoolAttr(inventory.AttrWAFProtected); ok && protected {
			continue
		}
		fs = append(fs, Finding{
			Category:       CategorySecurity,
			Severity:       SeverityMedium,
			Rule:           CheckWAFCoverage,
			Resource:       keyOf(rec),
			Message:        fmt.Sprintf("%s faces the internet without a web ACL", displayName(rec)),
			Recommendation: "associate a web ACL with the load balancer",
		})
	}
	if exposed == 0 {
		return passCheck(CheckWAFCoverage, "no internet-facing load balancers")
	}
	if len(fs) > 0 {
		return failCheck(CheckWAFCoverage, fmt.Sprintf("%d of %d internet-facing load balancers lack a web ACL", len(fs), exposed), fs)
	}
	return passCheck(CheckWAFCoverage, "")
}
