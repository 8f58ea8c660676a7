package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	UserID string

	// Extraction
	SchemaJSON string
	RecordJSON string

	// Analysis
	ProfileJSON string

	// Suggestion
	Pattern  string
	Recent   []string
	Rejected []string
	MaxWords int

	// Query summary
	FilterJSON    string
	DocumentsJSON string
}
