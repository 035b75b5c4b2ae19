package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/parallelorc/internal/backend"
	"github.com/harrison/parallelorc/internal/backend/cloudbatch"
	"github.com/harrison/parallelorc/internal/backend/cluster"
	"github.com/harrison/parallelorc/internal/backend/container"
	"github.com/harrison/parallelorc/internal/backend/memory"
	"github.com/harrison/parallelorc/internal/config"
	"github.com/harrison/parallelorc/internal/dag"
	"github.com/harrison/parallelorc/internal/logger"
	"github.com/harrison/parallelorc/internal/models"
	"github.com/harrison/parallelorc/internal/objectstore"
	"github.com/harrison/parallelorc/internal/planner"
	"github.com/harrison/parallelorc/internal/runhistory"
	"github.com/harrison/parallelorc/internal/scheduler"
	"github.com/harrison/parallelorc/internal/worker"
)

// maxSaneExecutors is the threshold above which --max-executors triggers a
// sanity warning rather than a hard error, mirroring config.py's executor
// count validation in the system this was distilled from.
const maxSaneExecutors = 100

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <requirements>",
		Short: "Plan and execute a task graph against an execution backend",
		Long: `run hands requirements to the planner, then schedules the resulting
task graph against the selected execution backend.

Exactly one backend flag may be given; --threading is the default when
none is specified.

Examples:
  parallelorc run requirements.yaml
  parallelorc run requirements.yaml --max-executors 8 --output-dir ./out
  parallelorc run requirements.yaml --cluster --max-retries 5
  parallelorc run requirements.yaml --cloud-batch --cloud-batch-bucket my-bucket \
    --cloud-batch-job-queue q --cloud-batch-job-definition d
  parallelorc run requirements.yaml --containers --container-image alpine:3`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .parallelorc/config.yaml)")
	cmd.Flags().Int("max-executors", -1, "Maximum number of concurrent tasks (-1 = use config)")
	cmd.Flags().String("output-dir", "", "Directory for task output, logs, and state")
	cmd.Flags().Int("max-retries", -1, "Maximum retry attempts per task (-1 = use config)")
	cmd.Flags().Bool("dry-run", false, "Validate the plan and print execution order without running it")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for log files")

	cmd.Flags().Bool("threading", false, "Use the in-process threading backend (default)")
	cmd.Flags().Bool("cluster", false, "Use the local HPC-style cluster backend")
	cmd.Flags().Bool("cloud-cluster", false, "Use the cluster backend against a shared/remote scheduler")
	cmd.Flags().Bool("cloud-batch", false, "Use the managed cloud batch backend")
	cmd.Flags().Bool("containers", false, "Use the local containers backend")

	cmd.Flags().String("cluster-workdir", "", "Cluster backend: state directory (default: <output-dir>/.cluster_state)")

	cmd.Flags().String("cloud-batch-bucket", "", "Cloud batch backend: S3 bucket for state and results")
	cmd.Flags().String("cloud-batch-prefix", "", "Cloud batch backend: key prefix under the bucket")
	cmd.Flags().String("cloud-batch-region", "", "Cloud batch backend: AWS region")
	cmd.Flags().String("cloud-batch-job-queue", "", "Cloud batch backend: AWS Batch job queue")
	cmd.Flags().String("cloud-batch-job-definition", "", "Cloud batch backend: AWS Batch job definition")
	cmd.Flags().Int("cloud-batch-vcpus", 0, "Cloud batch backend: vCPUs per job (0 = use config)")
	cmd.Flags().Int("cloud-batch-memory", 0, "Cloud batch backend: memory (MiB) per job (0 = use config)")
	cmd.Flags().Int("cloud-batch-timeout", 0, "Cloud batch backend: per-job timeout in seconds (0 = use config)")

	cmd.Flags().String("container-image", "", "Containers backend: image to run each task in")
	cmd.Flags().String("container-network", "", "Containers backend: docker network to attach containers to")

	cmd.MarkFlagsMutuallyExclusive("threading", "cluster", "cloud-cluster", "cloud-batch", "containers")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	requirements := args[0]

	cfg, err := loadAndMergeConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.MaxExecutors > maxSaneExecutors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: --max-executors %d is unusually high; this likely exceeds any backend's real capacity\n", cfg.MaxExecutors)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	var log logger.Logger = consoleLog
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("init file logger: %w", err)
		}
		defer fileLog.Close()
		log = multiLogger{consoleLog, fileLog}
	}

	p := planner.NewStaticPlanner()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	taskCount, plan, err := p.Plan(ctx, requirements, cfg.MaxExecutors)
	if err != nil {
		return fmt.Errorf("plan requirements: %w", err)
	}

	if cfg.DryRun {
		return printDryRun(cmd, plan)
	}

	consoleLog.ApplyConsoleConfig(taskCount, cfg.Console.EnableColor, cfg.Console.EnableProgressBar, cfg.Console.CompactMode, cfg.Console.ShowDurations)

	runID := uuid.NewString()[:8]
	runCtx := &models.RunContext{
		RunID:        runID,
		OutputDir:    cfg.OutputDir,
		Requirements: requirements,
		Plan:         plan,
	}
	if err := os.MkdirAll(runCtx.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	b, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	log.LogRunStart(runID, taskCount)

	opts := scheduler.Options{
		PollInterval: cfg.PollInterval,
		WaitCeiling:  cfg.WaitCeiling,
		Retry:        toRetryPolicy(cfg.Retry),
	}

	started := time.Now()
	summary, runErr := scheduler.Run(ctx, runCtx, b, opts)
	finished := time.Now()

	if summary != nil {
		log.LogSummary(summary)
		if storeErr := recordRunHistory(ctx, runID, requirements, cfg.Backend, summary, started, finished); storeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to record run history: %v\n", storeErr)
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary != nil && !summary.Success {
		os.Exit(1)
	}
	return nil
}

func loadAndMergeConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = ".parallelorc/config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	maxExecutors, _ := cmd.Flags().GetInt("max-executors")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var maxExecutorsPtr *int
	if maxExecutors >= 0 {
		maxExecutorsPtr = &maxExecutors
	}
	var outputDirPtr *string
	if outputDir != "" {
		outputDirPtr = &outputDir
	}
	var maxRetriesPtr *int
	if maxRetries >= 0 {
		maxRetriesPtr = &maxRetries
	}
	var dryRunPtr *bool
	if dryRun {
		dryRunPtr = &dryRun
	}

	backendName := selectedBackendName(cmd, cfg.Backend)
	cfg.MergeWithFlags(maxExecutorsPtr, outputDirPtr, &backendName, dryRunPtr, maxRetriesPtr)

	if logLevel, _ := cmd.Flags().GetString("log-level"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logDir, _ := cmd.Flags().GetString("log-dir"); logDir != "" {
		cfg.LogDir = logDir
	}

	if v, _ := cmd.Flags().GetString("cluster-workdir"); v != "" {
		cfg.Cluster.WorkDir = v
	}
	if v, _ := cmd.Flags().GetString("cloud-batch-bucket"); v != "" {
		cfg.CloudBatch.Bucket = v
	}
	if v, _ := cmd.Flags().GetString("cloud-batch-prefix"); v != "" {
		cfg.CloudBatch.Prefix = v
	}
	if v, _ := cmd.Flags().GetString("cloud-batch-region"); v != "" {
		cfg.CloudBatch.Region = v
	}
	if v, _ := cmd.Flags().GetString("cloud-batch-job-queue"); v != "" {
		cfg.CloudBatch.JobQueue = v
	}
	if v, _ := cmd.Flags().GetString("cloud-batch-job-definition"); v != "" {
		cfg.CloudBatch.JobDefinition = v
	}
	if v, _ := cmd.Flags().GetInt("cloud-batch-vcpus"); v > 0 {
		cfg.CloudBatch.VCPUs = v
	}
	if v, _ := cmd.Flags().GetInt("cloud-batch-memory"); v > 0 {
		cfg.CloudBatch.Memory = v
	}
	if v, _ := cmd.Flags().GetInt("cloud-batch-timeout"); v > 0 {
		cfg.CloudBatch.Timeout = v
	}
	if v, _ := cmd.Flags().GetString("container-image"); v != "" {
		cfg.Container.Image = v
	}
	if v, _ := cmd.Flags().GetString("container-network"); v != "" {
		cfg.Container.Network = v
	}

	return cfg, nil
}

// selectedBackendName maps the CLI's five mutually-exclusive backend flags
// onto the four implemented backend packages. --cloud-cluster uses the
// same cluster backend as --cluster: both submit scripts through the
// ExternalJobScheduler abstraction, and nothing in this implementation
// distinguishes a shared on-prem scheduler from a cloud-hosted one at that
// interface. Falls back to the existing config value (itself defaulted to
// "memory", which backs --threading) when no flag is set.
func selectedBackendName(cmd *cobra.Command, fallback string) string {
	if on, _ := cmd.Flags().GetBool("threading"); on {
		return "memory"
	}
	if on, _ := cmd.Flags().GetBool("cluster"); on {
		return "cluster"
	}
	if on, _ := cmd.Flags().GetBool("cloud-cluster"); on {
		return "cluster"
	}
	if on, _ := cmd.Flags().GetBool("cloud-batch"); on {
		return "cloudbatch"
	}
	if on, _ := cmd.Flags().GetBool("containers"); on {
		return "container"
	}
	return fallback
}

func toRetryPolicy(r config.RetryConfig) scheduler.RetryPolicy {
	return scheduler.RetryPolicy{
		MaxRetries:         r.MaxRetries,
		BaseDelay:          r.BaseDelay,
		ExponentialBackoff: r.ExponentialBackoff,
		BackoffMultiplier:  r.BackoffMultiplier,
	}
}

func buildBackend(cfg *config.Config) (backend.Backend, error) {
	retry := toRetryPolicy(cfg.Retry)

	switch cfg.Backend {
	case "memory":
		return memory.New(worker.NewEchoExecutor(), retry), nil

	case "cluster":
		b := cluster.New(cluster.NewShellScheduler(), clusterCommandFunc(cfg.Cluster.WorkDir), retry)
		b.PollInterval = cfg.PollInterval
		b.WaitCeiling = cfg.WaitCeiling
		b.WorkDir = cfg.Cluster.WorkDir
		return b, nil

	case "cloudbatch":
		store, err := objectstore.NewS3Store(cfg.CloudBatch.Bucket, cfg.CloudBatch.Region)
		if err != nil {
			return nil, fmt.Errorf("init cloud batch object store: %w", err)
		}
		jobs, err := cloudbatch.NewAWSBatchJobService(cfg.CloudBatch.Region)
		if err != nil {
			return nil, fmt.Errorf("init cloud batch job service: %w", err)
		}
		b := cloudbatch.New(store, jobs, cloudbatch.Config{
			Bucket:        cfg.CloudBatch.Bucket,
			Prefix:        cfg.CloudBatch.Prefix,
			Region:        cfg.CloudBatch.Region,
			JobQueue:      cfg.CloudBatch.JobQueue,
			JobDefinition: cfg.CloudBatch.JobDefinition,
			VCPUs:         cfg.CloudBatch.VCPUs,
			Memory:        cfg.CloudBatch.Memory,
			Timeout:       cfg.CloudBatch.Timeout,
		}, retry)
		b.PollInterval = cfg.PollInterval
		b.WaitCeiling = cfg.WaitCeiling
		return b, nil

	case "container":
		return container.New(container.Config{
			Image:   cfg.Container.Image,
			Network: cfg.Container.Network,
		}, retry), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// clusterCommandFunc builds the shell command a cluster job script runs: a
// re-invocation of this same binary's hidden __run-task subcommand, which
// executes the worker body out of process and writes its result to the
// path the cluster backend expects it at. workDir overrides the default
// <output-dir>/.cluster_state state directory when non-empty, mirroring
// the Backend.WorkDir override applied in buildBackend.
func clusterCommandFunc(workDir string) cluster.CommandFunc {
	return func(task models.Task, runCtx *models.RunContext) string {
		exe, err := os.Executable()
		if err != nil {
			exe = "parallelorc"
		}
		stateDir := workDir
		if stateDir == "" {
			stateDir = filepath.Join(runCtx.OutputDir, ".cluster_state")
		}
		resultFile := filepath.Join(stateDir, "results", task.ID+".json")
		return fmt.Sprintf("%q __run-task --task-id %q --output-dir %q --result-file %q",
			exe, task.ID, runCtx.OutputDir, resultFile)
	}
}

func printDryRun(cmd *cobra.Command, plan *models.Plan) error {
	if err := dag.Validate(plan); err != nil {
		return err
	}

	waves, err := dag.TopologicalOrder(plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "plan validated: %d task(s), %d wave(s)\n", len(plan.Tasks), len(waves))
	for i, wave := range waves {
		fmt.Fprintf(out, "  wave %d: %v\n", i+1, wave)
	}
	return nil
}

func recordRunHistory(ctx context.Context, runID, requirements, backendName string, summary *models.RunSummary, started, finished time.Time) error {
	dbPath, err := config.GetRunHistoryDBPath()
	if err != nil {
		return err
	}

	store, err := runhistory.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.RecordRun(ctx, runID, requirements, backendName, summary, started, finished)
}

// multiLogger fans every Logger call out to each of its members in order.
type multiLogger []logger.Logger

func (m multiLogger) LogTrace(msg string) {
	for _, l := range m {
		l.LogTrace(msg)
	}
}

func (m multiLogger) LogDebug(msg string) {
	for _, l := range m {
		l.LogDebug(msg)
	}
}

func (m multiLogger) LogInfo(msg string) {
	for _, l := range m {
		l.LogInfo(msg)
	}
}

func (m multiLogger) LogWarn(msg string) {
	for _, l := range m {
		l.LogWarn(msg)
	}
}

func (m multiLogger) LogError(msg string) {
	for _, l := range m {
		l.LogError(msg)
	}
}

func (m multiLogger) LogRunStart(runID string, totalTasks int) {
	for _, l := range m {
		l.LogRunStart(runID, totalTasks)
	}
}

func (m multiLogger) LogWaveStart(waveIndex int, taskIDs []string) {
	for _, l := range m {
		l.LogWaveStart(waveIndex, taskIDs)
	}
}

func (m multiLogger) LogTaskStart(task models.Task) {
	for _, l := range m {
		l.LogTaskStart(task)
	}
}

func (m multiLogger) LogTaskRetry(taskID string, attempt int, delay time.Duration, cause error) {
	for _, l := range m {
		l.LogTaskRetry(taskID, attempt, delay, cause)
	}
}

func (m multiLogger) LogTaskResult(result models.Result, state models.TaskState) {
	for _, l := range m {
		l.LogTaskResult(result, state)
	}
}

func (m multiLogger) LogSummary(summary *models.RunSummary) {
	for _, l := range m {
		l.LogSummary(summary)
	}
}

func (m multiLogger) Close() error {
	var firstErr error
	for _, l := range m {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
