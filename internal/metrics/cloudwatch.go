package metrics

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"whaleflow/logger"
)

type cloudWatchState struct {
	client    *cloudwatch.Client
	namespace string
}

var cwState atomic.Pointer[cloudWatchState]

// InitCloudWatch initialises the CloudWatch client using the provided region
// and namespace. If region is empty it falls back to the AWS_REGION
// environment variable. When the client cannot be created the function logs
// a warning and mirroring stays disabled.
func InitCloudWatch(region, namespace string) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	if namespace == "" {
		namespace = "Whaleflow"
	}

	cwState.Store(&cloudWatchState{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
	})

	log.WithFields(logger.Fields{"region": region, "namespace": namespace}).Info("initialized CloudWatch client")
}

// StartCloudWatchMirror publishes the drained counter snapshot every
// interval until the context is cancelled. It is a no-op when InitCloudWatch
// did not succeed.
func StartCloudWatchMirror(ctx context.Context, interval time.Duration) {
	if cwState.Load() == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				publishDrained(context.Background())
				return
			case <-ticker.C:
				publishDrained(ctx)
			}
		}
	}()
}

func publishDrained(ctx context.Context) {
	state := cwState.Load()
	if state == nil {
		return
	}

	drained := drainMirror()
	if len(drained) == 0 {
		return
	}

	log := logger.GetLogger().WithComponent("cloudwatch")

	data := make([]cwtypes.MetricDatum, 0, len(drained))
	for key, value := range drained {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(key.name),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("series"), Value: aws.String(key.dimension)},
			},
			Unit:  cwtypes.StandardUnitCount,
			Value: aws.Float64(value),
		})
	}

	// PutMetricData accepts at most 20 datums per call.
	for start := 0; start < len(data); start += 20 {
		end := start + 20
		if end > len(data) {
			end = len(data)
		}
		if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(state.namespace),
			MetricData: data[start:end],
		}); err != nil {
			log.WithError(err).Warn("failed to publish CloudWatch metrics")
			return
		}
	}
}
