package restore

import "strings"

// Transition is the state change a milestone line triggers
type Transition struct {
	Status   Status
	Progress int
	Message  string
}

// Milestone pairs a phrase emitted by the restore script with the transition it triggers
type Milestone struct {
	Phrase     string
	Transition Transition
}

// Milestones is the ordered rule table used by the default classifier.
// Phrases match the restore script's own log vocabulary, so matching is case-sensitive.
var Milestones = []Milestone{
	{Phrase: "Downloading backup", Transition: Transition{StatusDownloading, 10, "Downloading backup from GCS..."}},
	{Phrase: "Extracting xbstream", Transition: Transition{StatusExtracting, 30, "Extracting backup files..."}},
	{Phrase: "Preparing backup", Transition: Transition{StatusPreparing, 50, "Preparing backup (applying logs)..."}},
	{Phrase: "Copying restored data", Transition: Transition{StatusImporting, 70, "Importing database..."}},
	{Phrase: "Starting database with restored data", Transition: Transition{StatusStartingServices, 90, "Starting database container..."}},
}

// Classifier maps a single line of script output to an optional transition.
// Each line is evaluated independently: the classifier keeps no state and
// does not enforce forward-only progression.
type Classifier struct {
	rules []Milestone
}

// NewClassifier creates a classifier over the given rules, in priority order.
// A nil rule set falls back to Milestones.
func NewClassifier(rules []Milestone) *Classifier {
	if rules == nil {
		rules = Milestones
	}
	return &Classifier{rules: rules}
}

// Classify returns the transition of the first rule whose phrase occurs in line
func (c *Classifier) Classify(line string) (Transition, bool) {
	for _, rule := range c.rules {
		if strings.Contains(line, rule.Phrase) {
			return rule.Transition, true
		}
	}
	return Transition{}, false
}
