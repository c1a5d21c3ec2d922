package model

// StreamSnapshot is the "so far" view of a streamed answer after one
// increment. CumulativeText only ever grows between snapshots of the same
// turn; Done is true exactly once, on the final snapshot.
type StreamSnapshot struct {
	CumulativeText string
	Done           bool
}
