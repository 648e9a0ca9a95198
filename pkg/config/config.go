// Package config loads the orchestrator's configuration from environment
// variables, with an optional YAML file for the static worker list.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the controller needs at startup.
type Config struct {
	// ListenAddr is the HTTP facade's bind address.
	ListenAddr string
	// OpsAddr is the bind address for the internal operational server
	// (component-level /health, /ready, /live, /metrics), kept off the
	// facade's own address so a process supervisor can probe it without
	// sharing a port with algorithm traffic.
	OpsAddr string

	// RabbitMQEndpoint is loaded for parity with the documented environment
	// surface; nothing in this tree reads it. The task-queue broker itself
	// is an external collaborator this engine never dials directly (see
	// SPEC_FULL.md §11).
	RabbitMQEndpoint string

	// WorkerCallTimeout bounds a single C1 RPC (CELERY_TASKS_TIMEOUT).
	WorkerCallTimeout time.Duration
	// RunUDFTimeout bounds a runUDF call specifically, which can run
	// substantially longer than a metadata call (CELERY_RUN_UDF_TASK_TIMEOUT).
	RunUDFTimeout time.Duration

	// SMPCEnabled turns on the external SMPC cluster path for
	// secure-transfer outputs.
	SMPCEnabled bool
	// SMPCOptional is loaded from smpc_optional; nothing in this tree reads
	// it, so it does not let an algorithm turn SMPC off.
	SMPCOptional bool
	// SMPCCoordinatorURL is the SMPC cluster's job-submission endpoint.
	SMPCCoordinatorURL string

	// LandscapeUpdateInterval is the landscape aggregator's scan period T.
	LandscapeUpdateInterval time.Duration

	// ProtectLocalData, when true, asks every worker to materialize
	// dataset views through its restricted public-user DB role, so no
	// algorithm step can use a view's row count to reconstruct an exact
	// local count. Passed to the controller and forwarded on every
	// CreateDataModelViewsRequest as PublicUser.
	ProtectLocalData bool
	// MinimumRowCount is the minimum number of rows a view must contain to
	// be usable, enforced by CreateView's checkMinRows argument.
	MinimumRowCount int

	// WorkersFile, if set, is a YAML file listing the static worker
	// addresses the landscape aggregator polls (used when no discovery
	// source is configured).
	WorkersFile string

	// CleanerGracePeriod is how long the cleaner waits after a context is
	// released before sweeping it.
	CleanerGracePeriod time.Duration
	// CleanerSweepInterval is how often the background drain loop runs.
	CleanerSweepInterval time.Duration
	// CleanerDBPath is the bbolt file backing the durable cleanup backlog.
	CleanerDBPath string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development, and binds each setting to its documented
// bare env var name (RABBITMQ_ENDPOINT, SMPC_ENABLED, ...).
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("ops_addr", ":9090")
	v.SetDefault("rabbitmq_endpoint", "")
	v.SetDefault("celery_tasks_timeout", 10)
	v.SetDefault("celery_run_udf_task_timeout", 60)
	v.SetDefault("smpc_enabled", false)
	v.SetDefault("smpc_optional", true)
	v.SetDefault("smpc_coordinator_url", "")
	v.SetDefault("node_landscape_aggregator_update_interval", 30)
	v.SetDefault("protect_local_data", true)
	v.SetDefault("minimum_row_count", 10)
	v.SetDefault("workers_file", "")
	v.SetDefault("cleaner_grace_period_seconds", 60)
	v.SetDefault("cleaner_sweep_interval_seconds", 30)
	v.SetDefault("cleaner_db_path", "fedmesh-cleaner.db")

	for env, key := range map[string]string{
		"LISTEN_ADDR":                                "listen_addr",
		"OPS_ADDR":                                    "ops_addr",
		"RABBITMQ_ENDPOINT":                           "rabbitmq_endpoint",
		"CELERY_TASKS_TIMEOUT":                        "celery_tasks_timeout",
		"CELERY_RUN_UDF_TASK_TIMEOUT":                 "celery_run_udf_task_timeout",
		"SMPC_ENABLED":                                "smpc_enabled",
		"SMPC_OPTIONAL":                                "smpc_optional",
		"SMPC_COORDINATOR_URL":                        "smpc_coordinator_url",
		"NODE_LANDSCAPE_AGGREGATOR_UPDATE_INTERVAL":   "node_landscape_aggregator_update_interval",
		"PROTECT_LOCAL_DATA":                          "protect_local_data",
		"MINIMUM_ROW_COUNT":                           "minimum_row_count",
		"WORKERS_FILE":                                "workers_file",
		"CLEANER_GRACE_PERIOD_SECONDS":                "cleaner_grace_period_seconds",
		"CLEANER_SWEEP_INTERVAL_SECONDS":              "cleaner_sweep_interval_seconds",
		"CLEANER_DB_PATH":                             "cleaner_db_path",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{
		ListenAddr:              v.GetString("listen_addr"),
		OpsAddr:                 v.GetString("ops_addr"),
		RabbitMQEndpoint:        v.GetString("rabbitmq_endpoint"),
		WorkerCallTimeout:       time.Duration(v.GetInt("celery_tasks_timeout")) * time.Second,
		RunUDFTimeout:           time.Duration(v.GetInt("celery_run_udf_task_timeout")) * time.Second,
		SMPCEnabled:             v.GetBool("smpc_enabled"),
		SMPCOptional:            v.GetBool("smpc_optional"),
		SMPCCoordinatorURL:      v.GetString("smpc_coordinator_url"),
		LandscapeUpdateInterval: time.Duration(v.GetInt("node_landscape_aggregator_update_interval")) * time.Second,
		ProtectLocalData:        v.GetBool("protect_local_data"),
		MinimumRowCount:         v.GetInt("minimum_row_count"),
		WorkersFile:             v.GetString("workers_file"),
		CleanerGracePeriod:      time.Duration(v.GetInt("cleaner_grace_period_seconds")) * time.Second,
		CleanerSweepInterval:    time.Duration(v.GetInt("cleaner_sweep_interval_seconds")) * time.Second,
		CleanerDBPath:           v.GetString("cleaner_db_path"),
	}

	if cfg.SMPCEnabled && cfg.SMPCCoordinatorURL == "" {
		return nil, fmt.Errorf("SMPC_COORDINATOR_URL is required when SMPC_ENABLED=true")
	}

	return cfg, nil
}
