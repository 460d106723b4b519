package engine

import "github.com/rtossim/core/model"

// coreRuntime is the live state of one core.
type coreRuntime struct {
	id               string
	speed            float64
	runningSegment   string
	runningSince     float64
	hasRunningSince  bool
	finishTime       float64
	hasFinishTime    bool
}

// runtimeSegment mirrors one segment of one released job through its
// lifetime: ready, blocked, running, finished.
type runtimeSegment struct {
	taskID    string
	jobID     string
	subtaskID string
	segmentID string
	index     int

	wcet          float64
	remainingTime float64

	requiredResources []string
	mappingHint       string
	preemptible       bool

	absoluteDeadline    float64
	hasAbsoluteDeadline bool
	taskPeriod          float64
	hasTaskPeriod       bool
	releaseTime         float64

	basePriority      float64
	effectivePriority float64

	runningOn    string
	startedAt    float64
	hasStartedAt bool
	finished     bool
	blocked      bool
	waitingOn    string
}

func (s *runtimeSegment) key() string {
	return s.jobID + ":" + s.subtaskID + ":" + s.segmentID
}

// subtaskRuntime tracks one DAG node's in-order segment progression and
// readiness-cascade edges.
type subtaskRuntime struct {
	id           string
	predecessors []string
	successors   []string
	segmentKeys  []string
	nextIndex    int
	completed    bool
}

// jobRuntime is one released instance of a task graph.
type jobRuntime struct {
	jobID              string
	taskID             string
	releaseTime        float64
	absoluteDeadline    float64
	hasAbsoluteDeadline bool
	completed           bool
	missedDeadline      bool
	subtaskCompletion   map[string]bool

	task     *model.TaskGraphSpec
	subtasks map[string]*subtaskRuntime
}

// releaseEntry is one pending entry in the release heap, ordered by
// (time, index, taskID) matching spec.md §4.4's heap key.
type releaseEntry struct {
	time   float64
	index  int
	taskID string
}

type releaseHeap []releaseEntry

func (h releaseHeap) Len() int { return len(h) }
func (h releaseHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	if h[i].index != h[j].index {
		return h[i].index < h[j].index
	}
	return h[i].taskID < h[j].taskID
}
func (h releaseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *releaseHeap) Push(x any)   { *h = append(*h, x.(releaseEntry)) }
func (h *releaseHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
