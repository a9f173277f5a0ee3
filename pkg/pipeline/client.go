package pipeline

import (
	"github.com/OFFIS-RIT/coordnet/internal/notify"
)

const defaultParallelBuilders = 5

// PipelineClient runs the network construction pipeline. It holds the
// settings that are shared by all runs, such as how many builders may run
// in parallel and where completion notices go.
//
// A PipelineClient should be created using NewPipelineClient.
type PipelineClient struct {
	parallelBuilders int
	notifier         notify.Publisher
}

// NewPipelineClientParams defines the configuration parameters for creating
// a new PipelineClient.
//
// ParallelBuilders controls how many network builders run at the same time.
// Notifier is optional; when set every completed run is announced.
type NewPipelineClientParams struct {
	ParallelBuilders int
	Notifier         notify.Publisher
}

// NewPipelineClient creates and returns a new PipelineClient configured
// with the provided parameters.
//
// Example:
//
//	client := pipeline.NewPipelineClient(pipeline.NewPipelineClientParams{
//		ParallelBuilders: 5,
//	})
//	result, err := client.Run(ctx, cfg, family, tables, storage)
func NewPipelineClient(params NewPipelineClientParams) *PipelineClient {
	parallel := params.ParallelBuilders
	if parallel <= 0 {
		parallel = defaultParallelBuilders
	}
	return &PipelineClient{
		parallelBuilders: parallel,
		notifier:         params.Notifier,
	}
}
