package toolexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandSpec describes an external program used as a tool body.
// The tool arguments are written to stdin as JSON together with the shared
// run context; stdout is parsed as JSON, falling back to trimmed text.
type CommandSpec struct {
	Command    []string
	WorkingDir string
	Env        map[string]string
	Timeout    time.Duration
}

type commandInput struct {
	Arguments map[string]interface{} `json:"arguments"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// CommandHandler returns a ToolHandler that runs spec.Command
func CommandHandler(spec CommandSpec) (ToolHandler, error) {
	if len(spec.Command) == 0 || strings.TrimSpace(spec.Command[0]) == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		input := commandInput{Arguments: params}
		if execCtx := ExecutionContextFrom(ctx); execCtx != nil {
			input.Context = execCtx.Shared
		}

		stdin, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to encode command input: %w", err)
		}

		runCtx := ctx
		if spec.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(runCtx, spec.Command[0], spec.Command[1:]...)
		if spec.WorkingDir != "" {
			cmd.Dir = spec.WorkingDir
		}
		if len(spec.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range spec.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		cmd.Stdin = bytes.NewReader(stdin)

		start := time.Now()
		err = cmd.Run()
		duration := time.Since(start)

		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command %s timed out after %v: %w", spec.Command[0], duration, context.DeadlineExceeded)
		}

		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return nil, fmt.Errorf("command %s failed: %s", spec.Command[0], msg)
		}

		log.Debug().
			Str("command", spec.Command[0]).
			Dur("duration", duration).
			Msg("Command tool executed")

		return decodeOutput(stdout.Bytes()), nil
	}, nil
}

func decodeOutput(out []byte) interface{} {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err == nil {
		return value
	}
	return string(trimmed)
}
