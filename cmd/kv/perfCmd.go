package kv

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/resp/client"
	"github.com/ValentinKolb/mKV/resp/common"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the server",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}

	perfRequests  = 10000
	perfClients   = 10
	perfValueSize = 64
	perfKeySpread = 100
	perfSkip      = make([]string, 0)
)

func init() {
	key := "requests"
	perfCmd.Flags().Int(key, 10000, util.WrapString("Total number of requests per benchmark"))

	key = "clients"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent client connections"))

	key = "value-size"
	perfCmd.Flags().Int(key, 64, util.WrapString("Size of the value for set benchmarks (in bytes)"))

	key = "keys"
	perfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))

	key = "skip"
	perfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	perfRequests = viper.GetInt("requests")
	perfClients = viper.GetInt("clients")
	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = viper.GetInt("keys")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func shouldSkip(name string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

// runBenchmark spreads the configured number of requests over the
// configured number of connections and records per-request latency
func runBenchmark(name string, op func(c *client.Client, key string) error) error {
	if shouldSkip(name) {
		fmt.Printf("%-10s skipped\n", name)
		return nil
	}

	// One connection per worker, the client is strictly sequential
	clients := make([]*client.Client, perfClients)
	for i := range clients {
		c, err := client.Connect(*util.GetClientConfig())
		if err != nil {
			return err
		}
		defer c.Close()
		clients[i] = c
	}

	timer := metrics.NewTimer()
	defer timer.Stop()

	perWorker := perfRequests / perfClients

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	start := time.Now()
	for i, c := range clients {
		wg.Add(1)
		go func(worker int, c *client.Client) {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				key := fmt.Sprintf("__perf:%d", (worker*perWorker+n)%perfKeySpread)

				opStart := time.Now()
				err := op(c, key)
				timer.UpdateSince(opStart)

				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
			}
		}(i, c)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		return fmt.Errorf("benchmark %s failed: %v", name, firstErr)
	}

	snapshot := timer.Snapshot()
	fmt.Printf("%-10s %8d ops %10.0f ops/sec   mean %8s   p50 %8s   p95 %8s   p99 %8s\n",
		name,
		snapshot.Count(),
		float64(snapshot.Count())/elapsed.Seconds(),
		time.Duration(snapshot.Mean()).Round(time.Microsecond),
		time.Duration(snapshot.Percentile(0.50)).Round(time.Microsecond),
		time.Duration(snapshot.Percentile(0.95)).Round(time.Microsecond),
		time.Duration(snapshot.Percentile(0.99)).Round(time.Microsecond))
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Requests: %d, Clients: %d, Value Size: %d bytes\n\n", perfRequests, perfClients, perfValueSize)

	value := make([]byte, perfValueSize)
	for i := range value {
		value[i] = byte('a' + i%26)
	}

	if err := runBenchmark("set", func(c *client.Client, key string) error {
		return c.Set(key, value)
	}); err != nil {
		return err
	}

	if err := runBenchmark("get", func(c *client.Client, key string) error {
		_, _, err := c.Get(key)
		return err
	}); err != nil {
		return err
	}

	if err := runBenchmark("ping", func(c *client.Client, _ string) error {
		_, err := c.Ping(nil)
		return err
	}); err != nil {
		return err
	}

	return runBenchmark("publish", func(c *client.Client, _ string) error {
		_, err := c.Publish("__perf:events", value)
		return err
	})
}
