package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/patrickmn/go-cache"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/config"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

// CostAPI is the subset of the Cost Explorer client used here.
type CostAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

type CostExplorerClient struct {
	client CostAPI
	cache  *cache.Cache
}

// CostQuery asks for one metric over an inclusive day range.
type CostQuery struct {
	Range       timeutil.Range
	Granularity string
	MetricType  string
	RecordTypes []string
	GroupBy     []types.GroupDefinition
	TagFilters  []config.TagFilter
}

type CostResult struct {
	Groups []CostGroup
	Total  float64
}

type CostGroup struct {
	Keys   []string
	Amount float64
	Unit   string
}

// TimePeriod converts the inclusive range into Cost Explorer's date
// interval, whose end date is exclusive.
func (q *CostQuery) TimePeriod() *types.DateInterval {
	return &types.DateInterval{
		Start: aws.String(q.Range.From.Format(timeutil.DateFormat)),
		End:   aws.String(timeutil.AddDays(q.Range.To, 1).Format(timeutil.DateFormat)),
	}
}

func (q *CostQuery) cacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s", q.Range.From.Format(timeutil.DateFormat),
		q.Range.To.Format(timeutil.DateFormat), q.Granularity, q.MetricType)
	fmt.Fprintf(&b, "|%v", q.RecordTypes)
	for _, g := range q.GroupBy {
		fmt.Fprintf(&b, "|%s:%s", g.Type, aws.ToString(g.Key))
	}
	for _, tf := range q.TagFilters {
		fmt.Fprintf(&b, "|%s=%v", tf.TagKey, tf.TagValues)
	}
	return b.String()
}

func buildFilter(recordTypes []string, tagFilters []config.TagFilter) *types.Expression {
	if len(recordTypes) == 0 {
		recordTypes = []string{"Usage"}
	}

	baseFilter := &types.Expression{
		Dimensions: &types.DimensionValues{
			Key:    types.DimensionRecordType,
			Values: recordTypes,
		},
	}

	if len(tagFilters) == 0 {
		return baseFilter
	}

	var allFilters []types.Expression
	allFilters = append(allFilters, *baseFilter)

	for _, tf := range tagFilters {
		tagFilter := types.Expression{
			Tags: &types.TagValues{
				Key:          aws.String(tf.TagKey),
				Values:       tf.TagValues,
				MatchOptions: []types.MatchOption{types.MatchOptionEquals},
			},
		}
		allFilters = append(allFilters, tagFilter)
	}

	return &types.Expression{
		And: allFilters,
	}
}

// NewCostExplorerClient assumes the account's role and caches results for
// cacheTTL. A zero TTL disables caching.
func NewCostExplorerClient(ctx context.Context, accountId string, assumedRoleName string, cacheTTL time.Duration) (*CostExplorerClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}

	stsClient := sts.NewFromConfig(awsCfg)
	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountId, assumedRoleName)
	creds := stscreds.NewAssumeRoleProvider(stsClient, roleARN)
	awsCfg.Credentials = aws.NewCredentialsCache(creds)

	return NewWithAPI(costexplorer.NewFromConfig(awsCfg), cacheTTL), nil
}

// NewWithAPI wraps an existing Cost Explorer API implementation.
func NewWithAPI(api CostAPI, cacheTTL time.Duration) *CostExplorerClient {
	c := &CostExplorerClient{client: api}
	if cacheTTL > 0 {
		c.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return c
}

func (c *CostExplorerClient) GetCostAndUsage(ctx context.Context, query *CostQuery) (*CostResult, error) {
	key := query.cacheKey()
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached.(*CostResult), nil
		}
	}

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod:  query.TimePeriod(),
		Granularity: types.Granularity(query.Granularity),
		Metrics:     []string{query.MetricType},
		GroupBy:     query.GroupBy,
		Filter:      buildFilter(query.RecordTypes, query.TagFilters),
	}

	var result CostResult

	for {
		page, err := c.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, classify(err)
		}

		for _, resultByTime := range page.ResultsByTime {
			// Handle grouped results
			for _, group := range resultByTime.Groups {
				metric, ok := group.Metrics[query.MetricType]
				if !ok || metric.Amount == nil {
					continue
				}
				amount, err := strconv.ParseFloat(*metric.Amount, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "parsing cost amount %q", *metric.Amount)
				}
				result.Groups = append(result.Groups, CostGroup{
					Keys:   group.Keys,
					Amount: amount,
					Unit:   aws.ToString(metric.Unit),
				})
			}

			// Handle ungrouped results (Total)
			if len(resultByTime.Groups) == 0 && resultByTime.Total != nil {
				if metric, ok := resultByTime.Total[query.MetricType]; ok && metric.Amount != nil {
					amount, err := strconv.ParseFloat(*metric.Amount, 64)
					if err != nil {
						return nil, errors.Wrapf(err, "parsing total amount %q", *metric.Amount)
					}
					result.Total += amount
				}
			}
		}

		if page.NextPageToken == nil {
			break
		}
		input.NextPageToken = page.NextPageToken
	}

	if c.cache != nil {
		c.cache.Set(key, &result, cache.DefaultExpiration)
	}
	return &result, nil
}

// ErrThrottled marks Cost Explorer rate limiting, which is worth retrying
// on the next poll rather than alerting on.
var ErrThrottled = errors.New("cost explorer throttled")

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "LimitExceededException", "ThrottlingException":
			return errors.Mark(errors.Wrap(err, "fetching cost data"), ErrThrottled)
		}
		return errors.Wrapf(err, "fetching cost data (%s)", apiErr.ErrorCode())
	}
	return errors.Wrap(err, "fetching cost data")
}
