package domain

// Stage identifies one step of the episode pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageAcquire    Stage = "acquire"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
)

// GuardReason categorizes why a stage transition request was refused.
// "already in progress" and "already complete" are distinct outcomes and
// must be reported differently to the caller.
type GuardReason string

// Guard failure categories.
const (
	ReasonWrongPriorState   GuardReason = "wrong_prior_state"
	ReasonAlreadyInProgress GuardReason = "already_in_progress"
	ReasonAlreadyComplete   GuardReason = "already_complete"
)

// statusRank orders the linear pipeline statuses. StatusError is deliberately
// absent: it sits outside the linear progression.
var statusRank = map[EpisodeStatus]int{
	StatusNew:          0,
	StatusAcquiring:    1,
	StatusAcquired:     2,
	StatusTranscribing: 3,
	StatusTranscribed:  4,
	StatusSummarizing:  5,
	StatusSummarized:   6,
}

// EntryStatus returns the status an episode must hold before the stage may
// be requested.
func (s Stage) EntryStatus() EpisodeStatus {
	switch s {
	case StageAcquire:
		return StatusNew
	case StageTranscribe:
		return StatusAcquired
	case StageSummarize:
		return StatusTranscribed
	default:
		return StatusError
	}
}

// RunningStatus returns the in-progress status written when the stage's task
// is submitted.
func (s Stage) RunningStatus() EpisodeStatus {
	switch s {
	case StageAcquire:
		return StatusAcquiring
	case StageTranscribe:
		return StatusTranscribing
	case StageSummarize:
		return StatusSummarizing
	default:
		return StatusError
	}
}

// ExitStatus returns the terminal status written when the stage's job
// succeeds.
func (s Stage) ExitStatus() EpisodeStatus {
	switch s {
	case StageAcquire:
		return StatusAcquired
	case StageTranscribe:
		return StatusTranscribed
	case StageSummarize:
		return StatusSummarized
	default:
		return StatusError
	}
}

// CanEnter reports whether an episode in the given status may request the
// stage. Transitions are strictly sequential: a stage may only be entered
// from the exit status of the previous stage.
func CanEnter(stage Stage, status EpisodeStatus) bool {
	return status == stage.EntryStatus()
}

// ClassifyGuardFailure categorizes a failed CanEnter check. Callers must only
// invoke it when CanEnter returned false.
func ClassifyGuardFailure(stage Stage, status EpisodeStatus) GuardReason {
	if status == stage.RunningStatus() {
		return ReasonAlreadyInProgress
	}

	rank, ok := statusRank[status]
	if ok && rank >= statusRank[stage.ExitStatus()] {
		return ReasonAlreadyComplete
	}

	return ReasonWrongPriorState
}

// ValidStage reports whether the stage name is one of the known pipeline
// stages.
func ValidStage(stage Stage) bool {
	switch stage {
	case StageAcquire, StageTranscribe, StageSummarize:
		return true
	default:
		return false
	}
}
