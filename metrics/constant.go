package metrics

const (
	Namespace           = "governor"
	GovernanceSubsystem = "governance"
	APISubsystem        = "api"
)

const (
	LabelFlavor   = "flavor"
	LabelRevote   = "revote"
	LabelFrom     = "from"
	LabelTo       = "to"
	LabelEndpoint = "endpoint"
	LabelMethod   = "method"
	LabelStatus   = "status"
)
