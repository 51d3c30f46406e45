package memory

import "time"

const (
	TransferFormat = "AIX-1.0"
	TransferType   = "pattern_learning_insights"
)

// TransferRecord is the versioned hand-off document for one entity. Field
// names are part of the wire contract.
type TransferRecord struct {
	Format    string       `json:"format"`
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Data      TransferData `json:"data"`
}

type TransferData struct {
	Entity          TransferEntity   `json:"entity"`
	Travel          TransferTravel   `json:"travel"`
	Patterns        []PatternSummary `json:"patterns"`
	Recommendations []Recommendation `json:"recommendations"`
	Confidence      float64          `json:"confidence"`
	Metadata        TransferMetadata `json:"metadata"`
}

type TransferEntity struct {
	ID               string      `json:"id"`
	Observations     int         `json:"observations"`
	Messages         int         `json:"messages"`
	InteractionStyle string      `json:"interaction_style"`
	Preferences      Preferences `json:"preferences"`
}

type TransferTravel struct {
	Categories []CategorySummary `json:"categories"`
	Budget     BudgetSummary     `json:"budget"`
}

type TransferMetadata struct {
	TotalObservations int64 `json:"total_observations"`
	PatternsDetected  int64 `json:"patterns_detected"`
	TravelInsights    int64 `json:"travel_insights"`
	KnowledgeItems    int   `json:"knowledge_items"`
}

func buildTransfer(in Insight, user *userView, stats Stats, now time.Time) TransferRecord {
	entity := TransferEntity{
		ID:               in.EntityID,
		Observations:     in.Observations,
		InteractionStyle: "neutral",
	}
	if user != nil {
		entity.Messages = user.Messages
		entity.InteractionStyle = user.Style
		entity.Preferences = user.Preferences
	}
	return TransferRecord{
		Format:    TransferFormat,
		Type:      TransferType,
		Timestamp: now,
		Data: TransferData{
			Entity: entity,
			Travel: TransferTravel{
				Categories: in.Categories,
				Budget:     in.Budget,
			},
			Patterns:        in.Patterns,
			Recommendations: in.Recommendations,
			Confidence:      in.Confidence,
			Metadata: TransferMetadata{
				TotalObservations: stats.Observations,
				PatternsDetected:  stats.PatternsDetected,
				TravelInsights:    stats.TravelInsights,
				KnowledgeItems:    stats.KnowledgeItems,
			},
		},
	}
}
