package pipeline

import "time"

// Checkpoint is a snapshot of one stage's output.
type Checkpoint struct {
	Stage   StageName `json:"stage"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Trace collects checkpoints for one invocation. It is debugging output only;
// nothing in the pipeline reads it back.
type Trace struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

func (t *Trace) add(stage StageName, payload any) {
	t.Checkpoints = append(t.Checkpoints, Checkpoint{Stage: stage, At: time.Now().UTC(), Payload: payload})
}

// Get returns the checkpoint recorded for stage.
func (t *Trace) Get(stage StageName) (Checkpoint, bool) {
	for _, c := range t.Checkpoints {
		if c.Stage == stage {
			return c, true
		}
	}
	return Checkpoint{}, false
}

// Stages returns the recorded stage names in order.
func (t *Trace) Stages() []StageName {
	out := make([]StageName, len(t.Checkpoints))
	for i, c := range t.Checkpoints {
		out[i] = c.Stage
	}
	return out
}
