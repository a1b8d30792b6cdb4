// internal/ledger/history.go
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
)

// HistoryFile is the validation history file name.
const HistoryFile = "validation-history.json"

// Validation attempt results.
const (
	ResultApproved = "approved"
	ResultRejected = "rejected"
)

// Attempt is one validation attempt. The history is append-only.
type Attempt struct {
	Timestamp       string `json:"timestamp"`
	Result          string `json:"result"`
	RejectedIndices []int  `json:"rejected_indices"`
	Summary         string `json:"summary"`
}

type history struct {
	Attempts []Attempt `json:"attempts"`
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func timestamp() string {
	return now().Format(time.RFC3339Nano)
}

// LoadHistory returns the recorded attempts, or nil when the file is
// missing or unreadable.
func LoadHistory(dir string) []Attempt {
	data, err := os.ReadFile(filepath.Join(dir, HistoryFile))
	if err != nil {
		return nil
	}
	var h history
	if err := json.Unmarshal(data, &h); err != nil {
		return nil
	}
	return h.Attempts
}

// SaveAttempt appends a validation attempt. A corrupt history file is
// replaced by a fresh one holding just this attempt.
func SaveAttempt(dir, result string, rejected []int, summary string) error {
	if rejected == nil {
		rejected = []int{}
	}
	h := history{Attempts: LoadHistory(dir)}
	h.Attempts = append(h.Attempts, Attempt{
		Timestamp:       timestamp(),
		Result:          result,
		RejectedIndices: rejected,
		Summary:         summary,
	})
	return fileutil.AtomicWriteJSON(filepath.Join(dir, HistoryFile), h)
}

// RejectionCount is the number of rejected attempts.
func RejectionCount(dir string) int {
	n := 0
	for _, a := range LoadHistory(dir) {
		if a.Result == ResultRejected {
			n++
		}
	}
	return n
}

// LastApproved reports whether the most recent attempt was an approval.
func LastApproved(dir string) bool {
	h := LoadHistory(dir)
	return len(h) > 0 && h[len(h)-1].Result == ResultApproved
}
