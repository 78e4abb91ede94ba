package awsprobe

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"

	"github.com/gaugeworks/cloudgauge/pkg/audit/faults"
	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

type ecrAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	GetLifecyclePolicy(ctx context.Context, params *ecr.GetLifecyclePolicyInput, optFns ...func(*ecr.Options)) (*ecr.GetLifecyclePolicyOutput, error)
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

func (p *Probes) discoverRepositories(ctx context.Context, region string, f inventory.Filters) ([]inventory.ResourceRecord, error) {
	api := p.clients(region).ecr
	paginator := ecr.NewDescribeRepositoriesPaginator(api, &ecr.DescribeRepositoriesInput{})

	var out []inventory.ResourceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("DescribeRepositories", err)
		}
		for _, repo := range page.Repositories {
			name := aws.ToString(repo.RepositoryName)
			rec := inventory.ResourceRecord{
				ID:    name,
				Name:  name,
				State: "active",
				Attributes: map[string]any{
					inventory.AttrStorageClass: "registry",
					"URI":                      aws.ToString(repo.RepositoryUri),
				},
			}
			if repo.CreatedAt != nil {
				rec.Attributes[inventory.AttrCreatedAt] = *repo.CreatedAt
			}
			if !f.Match(rec) {
				continue
			}
			if hasPolicy, ok := p.repositoryLifecycle(ctx, api, name); ok {
				rec.Attributes[inventory.AttrLifecyclePolicy] = hasPolicy
			}
			if bytes, ok := p.repositorySize(ctx, api, name); ok {
				rec.Attributes[inventory.AttrStoredBytes] = bytes
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *Probes) repositoryLifecycle(ctx context.Context, api ecrAPI, repo string) (has, ok bool) {
	_, err := api.GetLifecyclePolicy(ctx, &ecr.GetLifecyclePolicyInput{RepositoryName: aws.String(repo)})
	if err == nil {
		return true, true
	}
	if faults.ClassOf(classify("GetLifecyclePolicy", err)) == faults.NotFound {
		return false, true
	}
	p.log.Debug("lifecycle policy check failed", "repository", repo, "error", err)
	return false, false
}

// repositorySize sums image sizes across the repository. Layers shared
// between images are counted once per image, so this overstates large
// repositories slightly; it is the only size signal the API offers.
func (p *Probes) repositorySize(ctx context.Context, api ecrAPI, repo string) (float64, bool) {
	var total float64
	paginator := ecr.NewDescribeImagesPaginator(api, &ecr.DescribeImagesInput{RepositoryName: aws.String(repo)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			p.log.Debug("image listing failed", "repository", repo, "error", err)
			return 0, false
		}
		for _, img := range page.ImageDetails {
			total += float64(aws.ToInt64(img.ImageSizeInBytes))
		}
	}
	return total, true
}
