package notification

// Type classifies a notification for the dashboards.
type Type string

const (
	TypeApproval    Type = "approval"
	TypeRejection   Type = "rejection"
	TypeReminder    Type = "reminder"
	TypeSystem      Type = "system"
	TypeAchievement Type = "achievement"
	TypeApplication Type = "application"
	TypeInterview   Type = "interview"
	TypeJob         Type = "job"
)

// Priority controls how prominently a notification is shown.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)
