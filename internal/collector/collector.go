package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/aws"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/config"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/selection"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

const (
	windowPrimary    = "primary"
	windowComparison = "comparison"
)

// SelectionSource exposes the committed selection the collector reports on.
type SelectionSource interface {
	Snapshot() selection.Snapshot
}

// CostFetcher runs one cost query for one account.
type CostFetcher interface {
	GetCostAndUsage(ctx context.Context, query *aws.CostQuery) (*aws.CostResult, error)
}

// window is one concrete range the collector fetches costs for.
type window struct {
	name   string
	period string
	rng    timeutil.Range
}

type CostCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*prometheus.GaugeVec
	awsClients map[string]CostFetcher
	config     *config.Config
	source     SelectionSource
	logger     *slog.Logger
	refreshCh  chan struct{}

	// Internal metrics
	scrapeErrors     prometheus.Counter
	scrapeDuration   prometheus.Histogram
	selectionChanges *prometheus.CounterVec
	boundaries       *prometheus.GaugeVec
}

// New builds a collector with one assumed-role Cost Explorer client per
// configured account.
func New(ctx context.Context, cfg *config.Config, source SelectionSource, logger *slog.Logger) (*CostCollector, error) {
	clients := make(map[string]CostFetcher)
	for _, account := range cfg.TargetAWSAccounts {
		client, err := aws.NewCostExplorerClient(ctx, account.AccountId, account.AssumedRoleName, cfg.CacheTTL)
		if err != nil {
			return nil, errors.Wrapf(err, "creating AWS client for %s", account.AccountId)
		}
		clients[account.AccountId] = client
	}
	return NewWithClients(cfg, source, clients, logger), nil
}

// NewWithClients builds a collector over existing fetchers keyed by account id.
func NewWithClients(cfg *config.Config, source SelectionSource, clients map[string]CostFetcher, logger *slog.Logger) *CostCollector {
	c := &CostCollector{
		metrics:    make(map[string]*prometheus.GaugeVec),
		awsClients: clients,
		config:     cfg,
		source:     source,
		logger:     logger,
		refreshCh:  make(chan struct{}, 1),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aws_cost_dashboard_scrape_errors_total",
			Help: "Total number of scrape errors",
		}),
		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aws_cost_dashboard_scrape_duration_seconds",
			Help:    "Duration of cost data scraping",
			Buckets: prometheus.DefBuckets,
		}),
		selectionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aws_cost_dashboard_selection_changes_total",
			Help: "Committed selection changes by kind",
		}, []string{"kind"}),
		boundaries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aws_cost_dashboard_selection_boundary_timestamp_seconds",
			Help: "Boundaries of the committed selection ranges",
		}, []string{"window", "bound"}),
	}

	// Init metrics from config
	for _, metricCfg := range cfg.Metrics {
		labels := buildLabelNames(cfg, &metricCfg)
		c.metrics[metricCfg.MetricName] = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricCfg.MetricName,
				Help: metricCfg.MetricDescription,
			},
			labels,
		)
	}

	return c
}

// Implement prometheus.Describe
func (c *CostCollector) Describe(ch chan<- *prometheus.Desc) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, metric := range c.metrics {
		metric.Describe(ch)
	}
	c.scrapeErrors.Describe(ch)
	c.scrapeDuration.Describe(ch)
	c.selectionChanges.Describe(ch)
	c.boundaries.Describe(ch)
}

// Implement prometheus.Collector
func (c *CostCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, metric := range c.metrics {
		metric.Collect(ch)
	}
	c.scrapeErrors.Collect(ch)
	c.scrapeDuration.Collect(ch)
	c.selectionChanges.Collect(ch)
	c.boundaries.Collect(ch)
}

// OnPeriodChange implements selection.PeriodHandler.
func (c *CostCollector) OnPeriodChange(p selection.PeriodSelection) {
	c.selectionChanges.WithLabelValues("period").Inc()
	c.logger.Info("period changed", "period", p.Name(), "range", p.Range.String())
	c.requestRefresh()
}

// OnComparisonChange implements selection.ComparisonHandler.
func (c *CostCollector) OnComparisonChange(cmp selection.ComparisonSelection) {
	c.selectionChanges.WithLabelValues("comparison").Inc()
	c.logger.Info("comparison changed", "enabled", cmp.Enabled, "mode", cmp.Mode)
	c.requestRefresh()
}

// RefreshRequests delivers a signal after the committed selection changed.
// Bursts of changes collapse into one pending signal.
func (c *CostCollector) RefreshRequests() <-chan struct{} {
	return c.refreshCh
}

func (c *CostCollector) requestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// windows returns the ranges to fetch for the committed selection.
func (c *CostCollector) windows() []window {
	snap := c.source.Snapshot()
	p := snap.Period
	ws := []window{{name: windowPrimary, period: p.Name(), rng: p.Range}}
	if cmp := snap.Comparison; cmp.Enabled && cmp.Range != nil {
		ws = append(ws, window{name: windowComparison, period: p.Name(), rng: *cmp.Range})
	}
	return ws
}

// accountResults holds the fetched results for one account
type accountResults struct {
	account config.AWSAccount
	results map[string]map[string]*aws.CostResult // window -> metric name -> result
}

// Refresh fetches costs for every account over the committed primary range
// and, when enabled, the comparison range.
func (c *CostCollector) Refresh(ctx context.Context) error {
	timer := prometheus.NewTimer(c.scrapeDuration)
	defer timer.ObserveDuration()

	ws := c.windows()

	// Fetch all accounts in parallel (without holding the lock)
	var wg sync.WaitGroup
	resultsCh := make(chan accountResults, len(c.config.TargetAWSAccounts))
	errCh := make(chan error, len(c.config.TargetAWSAccounts))

	for _, account := range c.config.TargetAWSAccounts {
		wg.Add(1)
		go func(acc config.AWSAccount) {
			defer wg.Done()
			results, err := c.fetchAccountCosts(ctx, acc, ws)
			if err != nil {
				c.logger.Error("failed to fetch costs",
					"account", acc.AccountId,
					"throttled", errors.Is(err, aws.ErrThrottled),
					"error", err)
				c.scrapeErrors.Inc()
				errCh <- err
				return
			}
			resultsCh <- accountResults{account: acc, results: results}
		}(account)
	}

	wg.Wait()
	close(resultsCh)
	close(errCh)

	// Collect all results
	var allResults []accountResults
	for r := range resultsCh {
		allResults = append(allResults, r)
	}

	// Now atomically reset and update all metrics
	c.mu.Lock()
	for _, metric := range c.metrics {
		metric.Reset()
	}
	c.boundaries.Reset()
	for _, w := range ws {
		c.boundaries.WithLabelValues(w.name, "from").Set(float64(w.rng.From.Unix()))
		c.boundaries.WithLabelValues(w.name, "to").Set(float64(w.rng.To.Unix()))
	}
	for _, ar := range allResults {
		for _, w := range ws {
			for _, metricCfg := range c.config.Metrics {
				if result, ok := ar.results[w.name][metricCfg.MetricName]; ok {
					c.updateMetrics(ar.account, &metricCfg, w, result)
				}
			}
		}
	}
	c.mu.Unlock()

	// Collect errors
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Newf("%d accounts failed to fetch", len(errs))
	}

	return nil
}

func (c *CostCollector) fetchAccountCosts(ctx context.Context, account config.AWSAccount, ws []window) (map[string]map[string]*aws.CostResult, error) {
	client, ok := c.awsClients[account.AccountId]
	if !ok {
		return nil, errors.Newf("no client found for account %s", account.AccountId)
	}

	results := make(map[string]map[string]*aws.CostResult)
	for _, w := range ws {
		results[w.name] = make(map[string]*aws.CostResult)
		for _, metricCfg := range c.config.Metrics {
			query := buildQuery(&metricCfg, w.rng)
			result, err := client.GetCostAndUsage(ctx, query)
			if err != nil {
				return nil, errors.Wrapf(err, "metric %s (%s)", metricCfg.MetricName, w.name)
			}
			results[w.name][metricCfg.MetricName] = result
		}
	}

	return results, nil
}

func buildQuery(metricCfg *config.MetricConfig, rng timeutil.Range) *aws.CostQuery {
	var groupBy []types.GroupDefinition
	if metricCfg.GroupBy != nil && metricCfg.GroupBy.Enabled {
		for _, g := range metricCfg.GroupBy.Groups {
			groupBy = append(groupBy, types.GroupDefinition{
				Type: types.GroupDefinitionType(g.Type),
				Key:  awssdk.String(g.Key),
			})
		}
	}

	return &aws.CostQuery{
		Range:       rng,
		Granularity: metricCfg.Granularity,
		MetricType:  metricCfg.MetricType,
		RecordTypes: metricCfg.RecordTypes,
		GroupBy:     groupBy,
		TagFilters:  metricCfg.TagFilters,
	}
}

// updateMetrics sets the gauges for one window. Grouped results are summed
// per label set, since a DAILY query returns one group entry per day.
func (c *CostCollector) updateMetrics(account config.AWSAccount, metricCfg *config.MetricConfig, w window, result *aws.CostResult) {
	gauge := c.metrics[metricCfg.MetricName]

	if metricCfg.GroupBy == nil || !metricCfg.GroupBy.Enabled {
		labels := buildLabelValues(account, metricCfg, w, nil)
		gauge.WithLabelValues(labels...).Set(result.Total)
		return
	}

	var mergedMinorCost float64
	mergeEnabled := metricCfg.GroupBy.MergeMinorCost != nil &&
		metricCfg.GroupBy.MergeMinorCost.Enabled

	for _, group := range sumGroups(result.Groups) {
		if mergeEnabled && group.Amount < metricCfg.GroupBy.MergeMinorCost.Threshold {
			mergedMinorCost += group.Amount
			continue
		}

		labels := buildLabelValues(account, metricCfg, w, group.Keys)
		gauge.WithLabelValues(labels...).Set(group.Amount)
	}

	if mergedMinorCost > 0 {
		mergedKeys := make([]string, len(metricCfg.GroupBy.Groups))
		for i := range mergedKeys {
			mergedKeys[i] = metricCfg.GroupBy.MergeMinorCost.TagValue
		}
		labels := buildLabelValues(account, metricCfg, w, mergedKeys)
		gauge.WithLabelValues(labels...).Set(mergedMinorCost)
	}
}

func sumGroups(groups []aws.CostGroup) []aws.CostGroup {
	index := make(map[string]int)
	var out []aws.CostGroup
	for _, g := range groups {
		key := fmt.Sprint(g.Keys)
		if i, ok := index[key]; ok {
			out[i].Amount += g.Amount
			continue
		}
		index[key] = len(out)
		out = append(out, g)
	}
	return out
}
