// bulkbench is a load generator for the bulk engine. It runs against the
// in-memory store, which makes it a deterministic stress harness: the store's
// transaction age and size ceilings are real, so the adaptive machinery is
// exercised the same way it would be against a cluster.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/docker/go-units"
	"github.com/juju/ratelimit"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/pingcap-incubator/tinybulk/config"
	"github.com/pingcap-incubator/tinybulk/kv/bulk"
	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/kv/storage/memstore"
	"github.com/pingcap-incubator/tinybulk/log"
)

var (
	configPath string
	count      int
	valueSize  int
	initStep   int
	maxStep    int
	txnBytes   int
	rateMB     int64
)

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		c := config.NewDefaultConfig()
		if initStep > 0 {
			c.InitStep = initStep
		}
		if maxStep > 0 {
			c.MaxStep = maxStep
		}
		return c, c.Validate()
	}
	return config.Load(configPath)
}

func newStore() *memstore.Store {
	s := memstore.New()
	if txnBytes > 0 {
		s.MaxTxnBytes = txnBytes
	}
	return s
}

func genPairs(n, vsize int) []storage.KeyValue {
	rng := rand.New(rand.NewSource(42))
	pairs := make([]storage.KeyValue, n)
	for i := range pairs {
		v := make([]byte, vsize)
		rng.Read(v)
		pairs[i] = storage.KeyValue{
			Key:   []byte(fmt.Sprintf("bench/%012d", i)),
			Value: v,
		}
	}
	return pairs
}

// genTimer turns progress callbacks into per-generation latency samples.
type genTimer struct {
	last    time.Time
	samples []float64
}

func newGenTimer() *genTimer {
	return &genTimer{last: time.Now()}
}

func (g *genTimer) tick(int64) {
	now := time.Now()
	g.samples = append(g.samples, float64(now.Sub(g.last).Microseconds()))
	g.last = now
}

func (g *genTimer) report() {
	if len(g.samples) == 0 {
		return
	}
	p50, _ := stats.Percentile(g.samples, 50)
	p99, _ := stats.Percentile(g.samples, 99)
	max, _ := stats.Max(g.samples)
	fmt.Printf("generations: %d, latency p50 %s, p99 %s, max %s\n",
		len(g.samples),
		time.Duration(p50)*time.Microsecond,
		time.Duration(p99)*time.Microsecond,
		time.Duration(max)*time.Microsecond)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := newStore()
	defer s.Close()
	pairs := genPairs(count, valueSize)

	timer := newGenTimer()
	start := time.Now()
	n, err := bulk.Write(cmd.Context(), s, pairs,
		bulk.WithConfig(cfg),
		bulk.WithProgress(timer.tick))
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	bytesTotal := int64(0)
	for _, kv := range pairs {
		bytesTotal += int64(len(kv.Key) + len(kv.Value))
	}
	fmt.Printf("loaded %d pairs (%s) in %v, %s/s\n",
		n, units.BytesSize(float64(bytesTotal)), elapsed.Round(time.Millisecond),
		units.BytesSize(float64(bytesTotal)/elapsed.Seconds()))
	timer.report()
	return nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := newStore()
	defer s.Close()
	if _, err := bulk.Write(cmd.Context(), s, genPairs(count, valueSize), bulk.WithConfig(cfg)); err != nil {
		return err
	}

	opts := []bulk.Option{bulk.WithConfig(cfg)}
	if rateMB > 0 {
		rate := float64(rateMB) * float64(units.MiB)
		opts = append(opts, bulk.WithRateLimit(ratelimit.NewBucketWithRate(rate, int64(rate))))
	}

	timer := newGenTimer()
	opts = append(opts, bulk.WithProgress(timer.tick))
	r, err := storage.PrefixRange([]byte("bench/"))
	if err != nil {
		return err
	}
	var bytesTotal int64
	start := time.Now()
	n, err := bulk.ExportRange(cmd.Context(), s, r,
		func(_ int64, kvs []storage.KeyValue) error {
			for _, kv := range kvs {
				bytesTotal += int64(len(kv.Key) + len(kv.Value))
			}
			return nil
		}, opts...)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d entries (%s) in %v, %s/s\n",
		n, units.BytesSize(float64(bytesTotal)), elapsed.Round(time.Millisecond),
		units.BytesSize(float64(bytesTotal)/elapsed.Seconds()))
	timer.report()
	return nil
}

func runAgg(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := newStore()
	defer s.Close()

	rng := rand.New(rand.NewSource(42))
	values := make([]int64, count)
	for i := range values {
		values[i] = int64(rng.Intn(1000))
	}

	type sumCount struct {
		sum   int64
		count int64
	}
	start := time.Now()
	avg, err := bulk.Aggregate(cmd.Context(), s, bulk.FromSlice(values), sumCount{},
		func(acc sumCount, _ storage.ReadTxn, chunk []int64) (sumCount, error) {
			for _, v := range chunk {
				acc.sum += v
				acc.count++
			}
			return acc, nil
		},
		func(acc sumCount) float64 {
			if acc.count == 0 {
				return 0
			}
			return float64(acc.sum) / float64(acc.count)
		},
		bulk.WithConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("aggregated %d values in %v, average %.3f\n", count, time.Since(start).Round(time.Millisecond), avg)
	return nil
}

func main() {
	root := &cobra.Command{
		Use:          "bulkbench",
		Short:        "Benchmark driver for the tinybulk engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a toml config file")
	root.PersistentFlags().IntVar(&count, "count", 100000, "number of items")
	root.PersistentFlags().IntVar(&valueSize, "value-size", 64, "value size in bytes")
	root.PersistentFlags().IntVar(&initStep, "init-step", 0, "initial chunk size (0 = default)")
	root.PersistentFlags().IntVar(&maxStep, "max-step", 0, "chunk size ceiling (0 = default)")
	root.PersistentFlags().IntVar(&txnBytes, "txn-bytes", 0, "store transaction byte ceiling (0 = default)")

	loadCmd := &cobra.Command{Use: "load", Short: "bulk-write random pairs", RunE: runLoad}
	scanCmd := &cobra.Command{Use: "scan", Short: "stream a key range", RunE: runScan}
	scanCmd.Flags().Int64Var(&rateMB, "rate", 0, "export throttle in MiB/s (0 = unlimited)")
	aggCmd := &cobra.Command{Use: "agg", Short: "fold an aggregate over values", RunE: runAgg}
	root.AddCommand(loadCmd, scanCmd, aggCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
