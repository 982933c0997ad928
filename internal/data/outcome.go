package data

import "time"

// Stage names the pipeline step an outcome refers to.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
)

// Outcome is the per-mod result of the download and extract stages. It is
// either a success carrying the modfile, or a failure carrying the stage
// and the underlying error.
type Outcome struct {
	GameID int       `json:"game_id"`
	Mod    Mod       `json:"mod"`
	Stage  Stage     `json:"stage,omitempty"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}

func Success(gameID int, m Mod) Outcome {
	return Outcome{GameID: gameID, Mod: m, At: time.Now()}
}

func Failure(gameID int, m Mod, stage Stage, err error) Outcome {
	return Outcome{GameID: gameID, Mod: m, Stage: stage, Err: err, At: time.Now()}
}

func (o Outcome) OK() bool { return o.Err == nil }

// Modfile returns the archive that was processed.
func (o Outcome) Modfile() Modfile { return o.Mod.Modfile }

// Status is "ok" for successes and "<stage>_failed" for failures.
func (o Outcome) Status() string {
	if o.OK() {
		return "ok"
	}
	return string(o.Stage) + "_failed"
}

// Message returns the failure message, or "" on success.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
