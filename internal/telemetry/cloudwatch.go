package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sony/gobreaker/v2"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Dimension names.
const (
	DimMethod   = "Method"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"
	DimOutcome  = "Outcome"
	DimLevel    = "Level"
	DimFrom     = "FromLevel"
	DimTo       = "ToLevel"
)

const (
	defaultBatchSize     = 20
	defaultFlushInterval = 10 * time.Second
	defaultMaxPending    = 5000
	putTimeout           = 5 * time.Second
)

// CloudWatchCollector buffers metric datums in memory and ships them in
// batches, so recording never blocks a request on the network.
//
// Metrics emitted:
//   - RequestCount: Dims {Method, Endpoint, Status}
//   - RequestLatency: Dims {Method, Endpoint}, milliseconds
//   - InvestmentOutcome: Dims {Outcome, Level}
//   - MembershipUpgrade: Dims {FromLevel, ToLevel}
//
// PutMetricData runs behind a circuit breaker. Batches rejected while the
// breaker is open are dropped. When the buffer is full new datums are dropped.
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	breaker   *gobreaker.CircuitBreaker[*cloudwatch.PutMetricDataOutput]

	batchSize     int
	flushInterval time.Duration
	maxPending    int
	now           func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	dropped int

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// CloudWatchOption is a functional option for configuring a CloudWatchCollector.
type CloudWatchOption func(*CloudWatchCollector)

// WithBatchSize sets the number of datums sent per PutMetricData call.
func WithBatchSize(n int) CloudWatchOption {
	return func(c *CloudWatchCollector) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithFlushInterval sets how often buffered datums are shipped.
func WithFlushInterval(d time.Duration) CloudWatchOption {
	return func(c *CloudWatchCollector) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// WithMaxPending bounds the number of buffered datums.
func WithMaxPending(n int) CloudWatchOption {
	return func(c *CloudWatchCollector) {
		if n > 0 {
			c.maxPending = n
		}
	}
}

// NewCloudWatchCollector creates a collector publishing to namespace. Call
// Start to run the background flush loop and Close to drain it.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger, opts ...CloudWatchOption) *CloudWatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CloudWatchCollector{
		client:        client,
		namespace:     namespace,
		logger:        logger,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		maxPending:    defaultMaxPending,
		now:           time.Now,
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*cloudwatch.PutMetricDataOutput](gobreaker.Settings{
		Name:        "cloudwatch",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("metrics circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// Start runs the flush loop in a new goroutine. It is safe to call once;
// later calls are ignored.
func (c *CloudWatchCollector) Start() {
	c.startOnce.Do(func() {
		go c.loop()
	})
}

func (c *CloudWatchCollector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-c.kick:
		case <-c.stop:
			return
		}
		if err := c.Flush(context.Background()); err != nil {
			c.logger.Error("failed to flush metrics", "error", err.Error())
		}
	}
}

// Close stops the flush loop and ships whatever is still buffered.
func (c *CloudWatchCollector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}

		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		defer cancel()
		err = c.Flush(ctx)
	})
	return err
}

// Pending returns the number of buffered datums.
func (c *CloudWatchCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dropped returns the number of datums discarded because the buffer was full
// or because their batch could not be delivered.
func (c *CloudWatchCollector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Flush ships every buffered datum. Batches that fail are dropped and their
// errors joined into the result.
func (c *CloudWatchCollector) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	var errs []error
	for start := 0; start < len(batch); start += c.batchSize {
		end := min(start+c.batchSize, len(batch))
		chunk := batch[start:end]

		putCtx, cancel := context.WithTimeout(ctx, putTimeout)
		_, err := c.breaker.Execute(func() (*cloudwatch.PutMetricDataOutput, error) {
			return c.client.PutMetricData(putCtx, &cloudwatch.PutMetricDataInput{
				Namespace:  aws.String(c.namespace),
				MetricData: chunk,
			})
		})
		cancel()

		if err != nil {
			c.mu.Lock()
			c.dropped += len(chunk)
			c.mu.Unlock()
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				c.logger.Warn("metrics batch dropped, circuit breaker open", "datums", len(chunk))
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordRequest implements core.MetricsCollector.
func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ts := aws.Time(c.now())
	c.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  ts,
			Dimensions: []cwtypes.Dimension{
				dimension(DimMethod, method),
				dimension(DimEndpoint, endpoint),
				dimension(DimStatus, status),
			},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRequestLatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Timestamp:  ts,
			Dimensions: []cwtypes.Dimension{
				dimension(DimMethod, method),
				dimension(DimEndpoint, endpoint),
			},
		},
	)
}

// RecordInvestment implements membership.Metrics.
func (c *CloudWatchCollector) RecordInvestment(outcome, level string) {
	c.add(cwtypes.MetricDatum{
		MetricName: aws.String(MetricInvestmentOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(c.now()),
		Dimensions: []cwtypes.Dimension{
			dimension(DimOutcome, outcome),
			dimension(DimLevel, level),
		},
	})
}

// RecordUpgrade implements membership.Metrics.
func (c *CloudWatchCollector) RecordUpgrade(from, to string) {
	c.add(cwtypes.MetricDatum{
		MetricName: aws.String(MetricMembershipUpgrade),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(c.now()),
		Dimensions: []cwtypes.Dimension{
			dimension(DimFrom, from),
			dimension(DimTo, to),
		},
	})
}

func (c *CloudWatchCollector) add(datums ...cwtypes.MetricDatum) {
	c.mu.Lock()
	room := c.maxPending - len(c.pending)
	if room < len(datums) {
		c.dropped += len(datums) - max(room, 0)
		datums = datums[:max(room, 0)]
	}
	c.pending = append(c.pending, datums...)
	full := len(c.pending) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
