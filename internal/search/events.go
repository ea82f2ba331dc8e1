package search

import "github.com/kromahlusenii-ops/civic-voices-sub003/models"

// EventType names one entry in the closed stream-event vocabulary.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventPlatformStarted    EventType = "platform_started"
	EventPlatformComplete   EventType = "platform_complete"
	EventPlatformError      EventType = "platform_error"
	EventStats              EventType = "stats"
	EventAIAnalysisStarted  EventType = "ai_analysis_started"
	EventAIAnalysisComplete EventType = "ai_analysis_complete"
	EventAIAnalysisError    EventType = "ai_analysis_error"
	EventComplete           EventType = "complete"
)

// Event is one typed progress message. Each event type has its own payload
// struct so payload shapes are checked at compile time.
type Event interface {
	EventType() EventType
}

// Sink receives orchestrator events in emission order. Implementations must
// be safe for concurrent use: platform tasks emit from separate goroutines.
type Sink interface {
	Send(Event) error
}

// ConnectedEvent is the first event on every stream, echoing the validated
// request back to the client.
type ConnectedEvent struct {
	SearchID   string            `json:"searchId"`
	Query      string            `json:"query"`
	Sources    []models.Platform `json:"sources"`
	TimeFilter string            `json:"timeFilter"`
	Language   string            `json:"language,omitempty"`
	Sort       models.Sort       `json:"sort"`
}

func (ConnectedEvent) EventType() EventType { return EventConnected }

// PlatformStartedEvent marks one platform task beginning.
type PlatformStartedEvent struct {
	Platform models.Platform `json:"platform"`
}

func (PlatformStartedEvent) EventType() EventType { return EventPlatformStarted }

// PlatformCompleteEvent carries one platform's normalized posts.
type PlatformCompleteEvent struct {
	Platform models.Platform `json:"platform"`
	Posts    []models.Post   `json:"posts"`
	Count    int             `json:"count"`
}

func (PlatformCompleteEvent) EventType() EventType { return EventPlatformComplete }

// PlatformErrorEvent reports one platform's unrecoverable failure after
// retries are exhausted. The overall search continues.
type PlatformErrorEvent struct {
	Platform models.Platform `json:"platform"`
	Error    string          `json:"error"`
}

func (PlatformErrorEvent) EventType() EventType { return EventPlatformError }

// StatsEvent is emitted exactly once, after every platform task settles.
type StatsEvent struct {
	TotalPosts  int                       `json:"totalPosts"`
	Platforms   map[models.Platform]int   `json:"platforms"`
	Credibility models.CredibilitySummary `json:"credibility"`
	TimeRange   models.TimeRange          `json:"timeRange"`
}

func (StatsEvent) EventType() EventType { return EventStats }

// AIAnalysisStartedEvent marks the optional enrichment step beginning.
type AIAnalysisStartedEvent struct{}

func (AIAnalysisStartedEvent) EventType() EventType { return EventAIAnalysisStarted }

// AIAnalysisCompleteEvent carries the finished analysis.
type AIAnalysisCompleteEvent struct {
	Analysis *models.AIAnalysis `json:"analysis"`
}

func (AIAnalysisCompleteEvent) EventType() EventType { return EventAIAnalysisComplete }

// AIAnalysisErrorEvent reports a failed or timed-out enrichment. It never
// prevents the complete event.
type AIAnalysisErrorEvent struct {
	Error string `json:"error"`
}

func (AIAnalysisErrorEvent) EventType() EventType { return EventAIAnalysisError }

// CompleteEvent is guaranteed to be the last event on the stream.
type CompleteEvent struct {
	Posts      []models.Post      `json:"posts"`
	Summary    models.Summary     `json:"summary"`
	Query      string             `json:"query"`
	Sort       models.Sort        `json:"sort"`
	AIAnalysis *models.AIAnalysis `json:"aiAnalysis,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

func (CompleteEvent) EventType() EventType { return EventComplete }
