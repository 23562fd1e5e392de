package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shimrun/shimrun/internal/errdefs"
	"github.com/shimrun/shimrun/internal/instance"
	"github.com/shimrun/shimrun/internal/metrics"
	"github.com/shimrun/shimrun/internal/rootdir"
	"github.com/shimrun/shimrun/internal/workload"
	"github.com/shimrun/shimrun/pkg/logging"
)

var (
	cfgFile      string
	namespace    string
	stateRoot    string
	logLevel     string
	outputFormat string

	logger *logging.Logger

	lifecycleOnce sync.Once
	lifecycle     *metrics.Lifecycle
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shimrun",
	Short: "Process-lifecycle shim for container workloads",
	Long: `shimrun answers lifecycle verbs (run, kill, delete, state) for container
instances and launches each workload through a pluggable executor chain:
natively via fork+exec, or under an alternate runtime engine selected by the
workload's dispatch annotation.`,
	SilenceUsage: true,
	// fail() already reports to stderr; without this cobra prints the same
	// error a second time.
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shimrun/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "orchestrator namespace")
	rootCmd.PersistentFlags().StringVar(&stateRoot, "root", "", "state root directory (default derived from the bundle's options.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json or yaml")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".shimrun"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("SHIMRUN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if namespace == "default" && viper.GetString("namespace") != "" {
			namespace = viper.GetString("namespace")
		}
		if stateRoot == "" {
			stateRoot = viper.GetString("root")
		}
		if viper.GetString("log_level") != "" && logLevel == "info" {
			logLevel = viper.GetString("log_level")
		}
	}

	logger = logging.New(logging.ParseLevel(logLevel), false)
}

// lifecycleMetrics registers the lifecycle collectors once per process.
func lifecycleMetrics() *metrics.Lifecycle {
	lifecycleOnce.Do(func() {
		lifecycle = metrics.NewLifecycle(prometheus.DefaultRegisterer)
	})
	return lifecycle
}

// buildChain assembles the executor chain: configured engines in order,
// with the native executor as the catch-all terminating the chain.
func buildChain() *workload.Chain {
	type engineConfig struct {
		Name    string   `mapstructure:"name"`
		Command []string `mapstructure:"command"`
	}
	var engines []engineConfig
	if err := viper.UnmarshalKey("engines", &engines); err != nil {
		logger.Warn("ignoring invalid engines configuration", map[string]interface{}{"error": err.Error()})
	}

	var executors []workload.Executor
	for _, e := range engines {
		executors = append(executors, workload.NewSpawnExecutor(
			workload.NewCommandEngine(e.Name, e.Command...)))
	}
	executors = append(executors, workload.NativeExecutor{})
	return workload.NewChain(executors...)
}

// newInstance builds the controller for one instance from the shared flags.
func newInstance(id, bundle, stdin, stdout, stderr string) (*instance.Instance, error) {
	return instance.New(id, instance.Config{
		Bundle:    bundle,
		Namespace: namespace,
		Root:      stateRoot,
		Stdin:     stdin,
		Stdout:    stdout,
		Stderr:    stderr,
		Limits:    workloadLimits(),
		Chain:     buildChain(),
		Logger:    logger,
		Metrics:   lifecycleMetrics(),
	})
}

// newRootedInstance builds the controller for a verb addressing an existing
// instance, with the state root already resolved.
func newRootedInstance(id, bundle, root string) (*instance.Instance, error) {
	return instance.New(id, instance.Config{
		Bundle:    bundle,
		Namespace: namespace,
		Root:      root,
		Chain:     buildChain(),
		Logger:    logger,
		Metrics:   lifecycleMetrics(),
	})
}

// resolvedRoot returns the state root for commands that operate without a
// bundle (list, serve).
func resolvedRoot() string {
	if stateRoot != "" {
		return stateRoot
	}
	return filepath.Join(rootdir.DefaultRoot, namespace)
}

// instanceRoot resolves the state root for verbs that address an existing
// instance: an explicit --root wins, otherwise it is derived from the
// bundle's options.json. One of the two must be given.
func instanceRoot(bundle string) (string, error) {
	if stateRoot != "" {
		return resolvedRoot(), nil
	}
	if bundle == "" {
		return "", fmt.Errorf("%w: either --bundle or --root is required", errdefs.ErrInvalidArgument)
	}
	return rootdir.Resolve(bundle, namespace)
}

func fail(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}
