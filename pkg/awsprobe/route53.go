package awsprobe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
)

type route53API interface {
	ListHostedZones(ctx context.Context, params *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
}

// dnsIndex holds every record value across the account's hosted zones so
// the address probe can tell releasing an IP would strand a DNS entry. The
// walk runs once per session; zones are global, not regional. Accounts
// without Route 53 access simply skip the annotation.
type dnsIndex struct {
	api  route53API
	log  *slog.Logger
	once sync.Once

	values map[string]struct{}
	ok     bool
}

func newDNSIndex(sess *Session, log *slog.Logger) *dnsIndex {
	return &dnsIndex{
		api: route53.NewFromConfig(sess.ConfigFor("")),
		log: log,
	}
}

// lookup reports whether ip appears in any DNS record. ok is false when the
// index could not be built, which callers treat as "unknown" rather than
// "unreferenced".
func (d *dnsIndex) lookup(ctx context.Context, ip string) (referenced, ok bool) {
	d.once.Do(func() { d.build(ctx) })
	if !d.ok {
		return false, false
	}
	_, referenced = d.values[ip]
	return referenced, true
}

func (d *dnsIndex) build(ctx context.Context) {
	values := make(map[string]struct{})

	zones := route53.NewListHostedZonesPaginator(d.api, &route53.ListHostedZonesInput{})
	for zones.HasMorePages() {
		page, err := zones.NextPage(ctx)
		if err != nil {
			d.log.Warn("dns reference check unavailable", "error", classify("ListHostedZones", err))
			return
		}
		for _, zone := range page.HostedZones {
			records := route53.NewListResourceRecordSetsPaginator(d.api, &route53.ListResourceRecordSetsInput{
				HostedZoneId: zone.Id,
			})
			for records.HasMorePages() {
				rrPage, err := records.NextPage(ctx)
				if err != nil {
					d.log.Warn("dns reference check unavailable",
						"zone", aws.ToString(zone.Name), "error", classify("ListResourceRecordSets", err))
					return
				}
				for _, set := range rrPage.ResourceRecordSets {
					for _, rr := range set.ResourceRecords {
						if v := aws.ToString(rr.Value); v != "" {
							values[v] = struct{}{}
						}
					}
				}
			}
		}
	}

	d.values = values
	d.ok = true
	d.log.Debug("dns reference index built", "values", len(values))
}
