package sandbox

import "github.com/prometheus/client_golang/prometheus"

// Prometheus 指标：观测模拟环境的脚本执行、部署与重置
var (
	sandboxScriptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_sandbox_scripts_total",
		Help: "Total number of scripts executed, labeled by final state.",
	}, []string{"state"})
	sandboxScriptDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "svm_sandbox_script_duration_seconds",
		Help:    "Duration of script executions.",
		Buckets: prometheus.DefBuckets,
	})
	sandboxAbortsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_sandbox_aborts_total",
		Help: "Total number of aborted scripts, labeled by failure kind.",
	}, []string{"kind"})
	sandboxModulesDeployed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "svm_sandbox_modules_deployed_total",
		Help: "Total number of modules deployed into the sandbox.",
	})
	sandboxStateResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "svm_sandbox_state_resets_total",
		Help: "Total number of sandbox state resets.",
	})
)

func init() {
	prometheus.MustRegister(
		sandboxScriptsTotal,
		sandboxScriptDuration,
		sandboxAbortsTotal,
		sandboxModulesDeployed,
		sandboxStateResets,
	)
}
