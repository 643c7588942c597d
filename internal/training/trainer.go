// Package training adapts external training and evaluation scripts to the
// controller's Trainer and Evaluator contracts.
package training

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/script"
)

// DefaultCheckpointPath is where Ultralytics writes the best weights, relative
// to the training output directory.
const DefaultCheckpointPath = "weights/best.pt"

// ScriptTrainer runs a shell command that trains one round.
//
// The command receives its inputs as CTRAIN_* environment variables and must
// write a checkpoint to CheckpointPath under CTRAIN_OUTPUT_DIR.
type ScriptTrainer struct {
	// Command is run via `sh -lc`.
	Command string

	// CheckpointPath is relative to the output dir unless absolute.
	CheckpointPath string

	// Dir is the working directory for the command.
	Dir string

	// Grace is the SIGINT to SIGKILL delay on cancellation.
	Grace time.Duration
}

// Train runs the training command for req.
func (t *ScriptTrainer) Train(ctx context.Context, req core.TrainRequest) (core.TrainResult, error) {
	if t.Command == "" {
		return core.TrainResult{}, errors.New(errors.EInvalidConfig, "trainer command is empty")
	}

	logsDir := filepath.Join(req.OutputDir, "logs")
	env := append(baseEnv(req.SessionID, req.Round, req.Attempt, req.OutputDir, req.Config.Dataset),
		"CTRAIN_START_CHECKPOINT="+req.StartingCheckpoint,
		"CTRAIN_CONFIG="+req.Config.ParamsPath,
	)

	res, err := script.Run(ctx, script.Command{
		Name:    "train",
		Script:  t.Command,
		Dir:     t.Dir,
		Env:     env,
		LogPath: filepath.Join(logsDir, "train.log"),
		Grace:   t.Grace,
	})
	if err != nil {
		return core.TrainResult{}, errors.Wrap(errors.ETrainFailed, "failed to run train script", err)
	}
	// Logs exist from here on; hand them back even on failure so they are archived.
	partial := core.TrainResult{LogsDir: logsDir}
	if err := res.Err("train", errors.ETrainFailed); err != nil {
		return partial, err
	}

	ckpt := t.CheckpointPath
	if ckpt == "" {
		ckpt = DefaultCheckpointPath
	}
	if !filepath.IsAbs(ckpt) {
		ckpt = filepath.Join(req.OutputDir, ckpt)
	}
	info, err := os.Stat(ckpt)
	if err != nil || info.IsDir() {
		return partial, errors.NewWithDetails(errors.ETrainFailed,
			"train script exited 0 but produced no checkpoint",
			map[string]string{"checkpoint": ckpt, "log": res.LogPath})
	}

	return core.TrainResult{Checkpoint: ckpt, LogsDir: logsDir}, nil
}

func baseEnv(sessionID string, round, attempt int, outputDir, dataset string) []string {
	return []string{
		"CTRAIN_SESSION_ID=" + sessionID,
		"CTRAIN_ROUND=" + strconv.Itoa(round),
		"CTRAIN_ATTEMPT=" + strconv.Itoa(attempt),
		"CTRAIN_OUTPUT_DIR=" + outputDir,
		"CTRAIN_DATASET=" + dataset,
	}
}
