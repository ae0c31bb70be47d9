package remote

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	cachetypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRDS struct {
	out *rds.DescribeDBInstancesOutput
}

func (f *fakeRDS) DescribeDBInstances(ctx context.Context, input *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return f.out, nil
}

type fakeCache struct {
	out *elasticache.DescribeCacheClustersOutput
}

func (f *fakeCache) DescribeCacheClusters(ctx context.Context, input *elasticache.DescribeCacheClustersInput, opts ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error) {
	return f.out, nil
}

func TestDatabases(t *testing.T) {
	d := &Discoverer{rds: &fakeRDS{out: &rds.DescribeDBInstancesOutput{
		DBInstances: []rdstypes.DBInstance{
			{
				DBInstanceIdentifier: aws.String("codecarbon-prod"),
				Engine:               aws.String("postgres"),
				DBInstanceStatus:     aws.String("available"),
				MasterUsername:       aws.String("codecarbon-user"),
				DBName:               aws.String("codecarbon_db"),
				Endpoint: &rdstypes.Endpoint{
					Address: aws.String("codecarbon-prod.abc.eu-west-1.rds.amazonaws.com"),
					Port:    aws.Int32(5432),
				},
			},
		},
	}}}

	dbs, err := d.Databases(context.Background())
	require.NoError(t, err)
	require.Len(t, dbs, 1)

	db := dbs[0]
	assert.Equal(t, "codecarbon-prod", db.ID)
	assert.Equal(t, "postgres", db.Engine)
	assert.Equal(t, int32(5432), db.Port)

	assert.Equal(t, []string{
		"DATABASE_HOST=codecarbon-prod.abc.eu-west-1.rds.amazonaws.com",
		"DATABASE_USER=codecarbon-user",
		"DATABASE_NAME=codecarbon_db",
		"DATABASE_PASS=<secret>",
	}, db.Overrides())
}

func TestCaches(t *testing.T) {
	d := &Discoverer{cache: &fakeCache{out: &elasticache.DescribeCacheClustersOutput{
		CacheClusters: []cachetypes.CacheCluster{
			{
				CacheClusterId:     aws.String("codecarbon-cache"),
				Engine:             aws.String("redis"),
				CacheClusterStatus: aws.String("available"),
				CacheNodes: []cachetypes.CacheNode{
					{Endpoint: &cachetypes.Endpoint{
						Address: aws.String("codecarbon-cache.abc.cache.amazonaws.com"),
						Port:    aws.Int32(6379),
					}},
				},
			},
		},
	}}}

	caches, err := d.Caches(context.Background())
	require.NoError(t, err)
	require.Len(t, caches, 1)
	assert.Equal(t, "codecarbon-cache", caches[0].ID)
	assert.Equal(t, "codecarbon-cache.abc.cache.amazonaws.com", caches[0].Endpoint)
	assert.Equal(t, int32(6379), caches[0].Port)
}
