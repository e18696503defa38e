package metrics

/*
Labels and so on for metrics used in the promoter.
*/

const (
	LabelMethod    = "method"
	LabelRoute     = "route"
	LabelSuccess   = "success"
	LabelLayer     = "layer"
	LabelCluster   = "cluster"
	LabelNamespace = "namespace"

	// Labels for pipeline metrics
	LabelPipeline = "pipeline"
	LabelTrigger  = "trigger"
	LabelOutcome  = "outcome"
)
