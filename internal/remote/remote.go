// Package remote discovers managed datastores in the team AWS account
// so a local stack can be pointed at a shared database instead of the
// containerized one. Discovery is read-only; nothing here mutates
// cloud state.
package remote

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// rdsAPI and cacheAPI are the single calls we make against each
// service, behind interfaces so tests fake them.
type rdsAPI interface {
	DescribeDBInstances(ctx context.Context, input *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

type cacheAPI interface {
	DescribeCacheClusters(ctx context.Context, input *elasticache.DescribeCacheClustersInput, opts ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
}

// Database is one discovered relational instance.
type Database struct {
	ID       string
	Engine   string
	Status   string
	Endpoint string
	Port     int32
	User     string
	DBName   string
}

// Cache is one discovered cache cluster.
type Cache struct {
	ID       string
	Engine   string
	Status   string
	Endpoint string
	Port     int32
}

// Discoverer lists remote datastores.
type Discoverer struct {
	rds   rdsAPI
	cache cacheAPI
}

// NewDiscoverer builds a Discoverer against the default AWS credential chain.
func NewDiscoverer(ctx context.Context) (*Discoverer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Discoverer{
		rds:   rds.NewFromConfig(cfg),
		cache: elasticache.NewFromConfig(cfg),
	}, nil
}

// Databases lists the RDS instances visible to the current credentials.
func (d *Discoverer) Databases(ctx context.Context) ([]Database, error) {
	out, err := d.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe RDS instances: %w", err)
	}

	var dbs []Database
	for _, inst := range out.DBInstances {
		db := Database{
			ID:     aws.ToString(inst.DBInstanceIdentifier),
			Engine: aws.ToString(inst.Engine),
			Status: aws.ToString(inst.DBInstanceStatus),
			User:   aws.ToString(inst.MasterUsername),
			DBName: aws.ToString(inst.DBName),
		}
		if inst.Endpoint != nil {
			db.Endpoint = aws.ToString(inst.Endpoint.Address)
			db.Port = aws.ToInt32(inst.Endpoint.Port)
		}
		dbs = append(dbs, db)
	}
	return dbs, nil
}

// Caches lists the ElastiCache clusters visible to the current credentials.
func (d *Discoverer) Caches(ctx context.Context) ([]Cache, error) {
	out, err := d.cache.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{
		ShowCacheNodeInfo: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe cache clusters: %w", err)
	}

	var caches []Cache
	for _, cluster := range out.CacheClusters {
		c := Cache{
			ID:     aws.ToString(cluster.CacheClusterId),
			Engine: aws.ToString(cluster.Engine),
			Status: aws.ToString(cluster.CacheClusterStatus),
		}
		for _, node := range cluster.CacheNodes {
			if node.Endpoint != nil {
				c.Endpoint = aws.ToString(node.Endpoint.Address)
				c.Port = aws.ToInt32(node.Endpoint.Port)
				break
			}
		}
		caches = append(caches, c)
	}
	return caches, nil
}

// Overrides renders the environment lines that would point the local
// stack at the discovered database. The password never leaves AWS, so
// it stays a placeholder for the operator to fill in.
func (db Database) Overrides() []string {
	return []string{
		fmt.Sprintf("DATABASE_HOST=%s", db.Endpoint),
		fmt.Sprintf("DATABASE_USER=%s", db.User),
		fmt.Sprintf("DATABASE_NAME=%s", db.DBName),
		"DATABASE_PASS=<secret>",
	}
}
