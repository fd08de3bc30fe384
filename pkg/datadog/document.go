package datadog

import (
	"github.com/markuskont/go-sigma-datadog"
)

// static document values
const (
	ProductSecurityMonitoring = "security_monitoring"
	DetectionMethodThreshold  = "threshold"
	GroupByUserArn            = "@userIdentity.arn"
	CaseCondition             = "a > 0"

	EvaluationWindow  = 3600
	KeepAlive         = 3600
	MaxSignalDuration = 86400
)

// RuleDocument is a security monitoring detection rule
// Field order follows the import format
type RuleDocument struct {
	Product []string `json:"product"`
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
	Queries []Query  `json:"queries"`
	Options Options  `json:"options"`
	Cases   []Case   `json:"cases"`
}

// Query is a single search query of a detection rule
type Query struct {
	Name           string   `json:"name"`
	Query          string   `json:"query"`
	GroupByFields  []string `json:"groupByFields"`
	DistinctFields []string `json:"distinctFields"`
	Aggregation    string   `json:"aggregation"`
}

// Options holds detection method and timing settings, values in seconds
type Options struct {
	DetectionMethod   string `json:"detectionMethod"`
	EvaluationWindow  int    `json:"evaluationWindow"`
	KeepAlive         int    `json:"keepAlive"`
	MaxSignalDuration int    `json:"maxSignalDuration"`
}

// Case maps a query condition to signal status
type Case struct {
	Status        string   `json:"status"`
	Notifications []string `json:"notifications"`
	Name          string   `json:"name"`
	Condition     string   `json:"condition"`
}

// Assemble builds rule document from metadata and compiled query
func Assemble(meta sigma.RuleMetadata, query string) *RuleDocument {
	return &RuleDocument{
		Product: []string{ProductSecurityMonitoring},
		Name:    MapName(meta.Title),
		Message: MapMessage(meta.ID, meta.Falsepositives, meta.Description),
		Tags:    MapTags(meta.Tags),
		Source:  meta.LogsourceService,
		Queries: []Query{
			{
				Name:           "",
				Query:          query,
				GroupByFields:  []string{GroupByUserArn},
				DistinctFields: []string{},
				Aggregation:    "",
			},
		},
		Options: Options{
			DetectionMethod:   DetectionMethodThreshold,
			EvaluationWindow:  EvaluationWindow,
			KeepAlive:         KeepAlive,
			MaxSignalDuration: MaxSignalDuration,
		},
		Cases: []Case{
			{
				Status:        MapLevel(meta.Level),
				Notifications: []string{},
				Name:          "",
				Condition:     CaseCondition,
			},
		},
	}
}
