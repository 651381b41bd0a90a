// Package progress supplies the rotating status lines shown while an
// analysis is in flight.
package progress

// messages cycle in order while the caller waits on the classifier.
var messages = [...]string{
	"Scanning treeline for movement...",
	"Enhancing blur... enhancing again...",
	"Measuring shoulder width...",
	"Cross-referencing known primates...",
	"Analyzing gait and posture...",
	"Checking for visible clothing...",
	"Consulting the field guide...",
	"Estimating foot size...",
	"Finalizing squatch probability...",
}

// Count is the cycle length.
const Count = len(messages)

// Message returns the status line for step i, wrapping modulo Count.
// Precondition: i >= 0.
func Message(i int) string {
	return messages[i%Count]
}
