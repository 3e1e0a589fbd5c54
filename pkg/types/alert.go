package types

// AlertType is the severity of an outward notification.
type AlertType string

const (
	AlertInfo  AlertType = "info"
	AlertError AlertType = "error"
)

// BuildStage identifies where in the build/deploy pipeline a deployment
// alert was raised.
type BuildStage string

const (
	StageBuilding  BuildStage = "building"
	StageDeploying BuildStage = "deploying"
	StageComplete  BuildStage = "complete"
)

// StageStatus is the progress of a single pipeline stage.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
)

// Alert is a generic user-visible event: command, start and build
// failures, plus informational notices.
type Alert struct {
	Type        AlertType
	Title       string
	Description string
	Content     string
}

// DatabaseAlert notifies the consumer of a migration file write or a SQL
// query that the engine defers to the live-connection owner.
type DatabaseAlert struct {
	Alert
	Source string
}

// DeploymentAlert reports build and deploy progress.
type DeploymentAlert struct {
	Alert
	Stage        BuildStage
	BuildStatus  StageStatus
	DeployStatus StageStatus
	URL          string
	Source       string
}

// AlertSink is the consumer-provided callback surface. All three channels
// are independent and fire-and-forget; a nil function disables its
// channel. Callbacks run on their own goroutines and must not assume any
// ordering relative to action execution.
type AlertSink struct {
	OnAlert      func(Alert)
	OnDatabase   func(DatabaseAlert)
	OnDeployment func(DeploymentAlert)
}
