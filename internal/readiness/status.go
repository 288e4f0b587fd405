package readiness

import (
	"fmt"
	"math"
	"time"
)

type State int32

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSchema   Phase = "schema"
	PhaseSnapshot Phase = "snapshot"
	PhaseBuild    Phase = "build"
	PhasePersist  Phase = "persist"
)

const (
	jobInit    = "init"
	jobRebuild = "rebuild"
	jobReload  = "reload"
)

// Where the published graph came from.
const (
	SourceSnapshot = "snapshot"
	SourceBuild    = "build"
)

// Status is a point-in-time view of the coordinator for operators.
type Status struct {
	State     string     `json:"state"`
	Phase     Phase      `json:"phase"`
	JobID     string     `json:"job_id,omitempty"`
	JobKind   string     `json:"job_kind,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Processed int64      `json:"processed"`

	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	GraphSource string `json:"graph_source,omitempty"`

	LastError         string  `json:"last_error,omitempty"`
	LastBuildSeconds  float64 `json:"last_build_seconds,omitempty"`
	RetryAfterSeconds int     `json:"retry_after_seconds,omitempty"`
}

func (c *Coordinator) Status() Status {
	var retry int
	ready := c.IsReady()
	if !ready {
		retry = c.notReady().Seconds()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.status
	s.State = State(c.state.Load()).String()
	s.LastBuildSeconds = c.lastBuild.Seconds()
	s.RetryAfterSeconds = retry
	return s
}

// NotReadyError is returned while no graph has been published.
type NotReadyError struct {
	RetryAfter time.Duration
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("graph is not ready, retry in %s", e.RetryAfter)
}

// Seconds rounds RetryAfter up to whole seconds, as used by the
// Retry-After header.
func (e *NotReadyError) Seconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}
