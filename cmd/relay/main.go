// Command relay runs the dynamo-stream change-data-capture relay: it polls
// one or more DynamoDB Streams and fans each cycle's ordered record batch
// out to webhook destinations registered over its control plane.
//
// Its shape follows the teacher's own daemon entrypoints (cmd/authn/main.go:
// parse flags and environment, load configuration, install a signal
// handler, start a background log-flush loop, serve until killed).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaicoh/dynamo-stream/backend/ddb"
	"github.com/kaicoh/dynamo-stream/cmn/nlog"
	"github.com/kaicoh/dynamo-stream/config"
	"github.com/kaicoh/dynamo-stream/httpapi"
	"github.com/kaicoh/dynamo-stream/registry"
	"github.com/kaicoh/dynamo-stream/stats"
)

var build string

func init() {
	nlog.InitFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "relay (build %s): dynamo-stream change-data-capture relay\n", build)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	installSignalHandler()
	go logFlush()

	cfg, err := config.Load()
	if err != nil {
		nlog.Errorf("relay: %v", err)
		os.Exit(1)
	}

	awsCfg, err := loadAWSConfig(context.Background(), cfg.EndpointURL)
	if err != nil {
		nlog.Errorf("relay: loading AWS config: %v", err)
		os.Exit(1)
	}

	be := ddb.New(awsCfg)
	metrics := stats.New()
	metrics.MustRegister(prometheus.DefaultRegisterer)

	reg := registry.New(be, http.DefaultClient, metrics)
	preload(reg, cfg.Entries)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpapi.NewHandler(reg).Mux())

	addr := fmt.Sprintf(":%d", cfg.Port)
	nlog.Infof("relay: listening on %s (build %s)", addr, build)
	if err := http.ListenAndServe(addr, mux); err != nil {
		nlog.Errorf("relay: server failed: %v", err)
		nlog.Flush()
		os.Exit(1)
	}
}

// preload registers every statically configured destination before the
// first control-plane request ever arrives (SPEC_FULL.md §Environment).
// A preload failure is logged, not fatal: one bad entry should not keep an
// otherwise-healthy relay from starting.
func preload(reg *registry.Registry, entries []config.Entry) {
	for _, e := range entries {
		if _, err := reg.AddListener(context.Background(), e.TableName, e.URL); err != nil {
			nlog.Errorf("relay: preloading %s -> %s: %v", e.TableName, e.URL, err)
		}
	}
}

// loadAWSConfig resolves the SDK's default config chain, overriding the
// DynamoDB/DynamoDB Streams endpoint when DYNAMODB_ENDPOINT_URL is set
// (local testing against DynamoDB Local, per SPEC_FULL.md).
func loadAWSConfig(ctx context.Context, endpointURL string) (aws.Config, error) {
	if endpointURL == "" {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpointURL}, nil
		},
	)
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithEndpointResolverWithOptions(resolver))
}

func logFlush() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Flush()
		os.Exit(0)
	}()
}
