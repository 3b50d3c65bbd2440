package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/swdee/go-posegame/game"
)

// HailoPipeline is the rpicam-hello command that runs YOLOv8 pose estimation
// on a Hailo accelerator and prints keypoints as JSON lines
var HailoPipeline = []string{
	"rpicam-hello", "-t", "0",
	"--post-process-file", "/usr/share/rpi-camera-assets/hailo_yolov8_pose.json",
}

// Pipeline is a running pose estimation subprocess whose standard output is
// read as JSON lines
type Pipeline struct {
	*JSONLines

	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

// StartPipeline starts the named command and returns a Pipeline reading its
// output.  Standard error is forwarded to the log.  The process is killed
// when ctx is cancelled or Close is called.
func StartPipeline(ctx context.Context, name string, args ...string) (*Pipeline, error) {

	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()

	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()

	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start pipeline %s: %w", name, err)
	}

	p := &Pipeline{
		JSONLines: NewJSONLines(stdout, game.SystemClock{}),
		cmd:       cmd,
		done:      make(chan struct{}),
	}

	go func() {
		scanner := bufio.NewScanner(stderr)

		for scanner.Scan() {
			game.Logf("%s: %s", name, scanner.Text())
		}

		close(p.done)
	}()

	return p, nil
}

// Close stops the subprocess and waits for it to exit.  A process killed by
// Close is not reported as an error.
func (p *Pipeline) Close() error {

	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}

		// stderr must be drained before Wait closes the pipes
		<-p.done

		err := p.cmd.Wait()
		var exitErr *exec.ExitError

		if err != nil && !errors.As(err, &exitErr) {
			p.err = fmt.Errorf("failed to stop pipeline: %w", err)
		}
	})

	return p.err
}
