package pipeline

import (
	"github.com/CZERTAINLY/runway/internal/model"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// registry is implemented by worker.Worker and the test environments of the
// SDK
type registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// Register adds the workflow and activities of kind to r
func Register(r registry, kind model.Kind, acts *Activities) {
	switch kind {
	case model.KindShell:
		r.RegisterWorkflow(ShellWorkflow)
		r.RegisterActivity(acts.ValidateCommand)
		r.RegisterActivity(acts.RunCommand)
		r.RegisterActivity(acts.FormatOutput)
	case model.KindNmap:
		r.RegisterWorkflow(ScanWorkflow)
		r.RegisterActivity(acts.ValidateScan)
		r.RegisterActivity(acts.RunScan)
		r.RegisterActivity(acts.ParseScan)
	}
}

// Workers returns one worker per enabled kind, each polling its task queue.
// The workers are not started.
func Workers(c client.Client, cfg model.Config, acts *Activities) []worker.Worker {
	var ret []worker.Worker
	if cfg.Shell.Enabled {
		w := worker.New(c, cfg.Shell.TaskQueue, worker.Options{})
		Register(w, model.KindShell, acts)
		ret = append(ret, w)
	}
	if cfg.Nmap.Enabled {
		w := worker.New(c, cfg.Nmap.TaskQueue, worker.Options{})
		Register(w, model.KindNmap, acts)
		ret = append(ret, w)
	}
	return ret
}

// Workflow returns the workflow function of kind
func Workflow(kind model.Kind) any {
	if kind == model.KindNmap {
		return ScanWorkflow
	}
	return ShellWorkflow
}
