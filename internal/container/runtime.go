// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs document converter images in a locked-down,
// one-shot sandbox. The document is piped in on stdin and the converted text
// is read back from stdout. Containers run offline on a read-only root
// filesystem under resource limits.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Supported runtime binaries, in detection order.
const (
	Docker = "docker"
	Podman = "podman"
)

// ErrNoRuntime is returned when no usable runtime is found.
var ErrNoRuntime = errors.New("no container runtime available")

// Limits bound the resources of one sandboxed run. Empty fields leave the
// runtime default in place.
type Limits struct {
	Memory string // e.g. "512m"
	CPUs   string // e.g. "1.5"
}

// DefaultLimits fit a single office-document conversion.
var DefaultLimits = Limits{Memory: "1g", CPUs: "1"}

// Runtime checks for converter images and runs them.
type Runtime interface {
	// Name returns the runtime binary, Docker or Podman.
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(image string) error

	// Run pipes stdin through image and copies its output to stdout.
	// Cancelling ctx kills the container process.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// RunPiped runs name and folds its stderr into the returned error, since
// converters report unreadable documents there.
func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// sandbox is a Runtime for one binary. Docker and Podman take the same run
// flags and differ only in how an image is looked up.
type sandbox struct {
	bin        string
	imageCheck []string
	limits     Limits
	exec       executor
}

func newSandbox(bin string, limits Limits, ex executor) *sandbox {
	check := []string{"image", "inspect"}
	if bin == Podman {
		check = []string{"image", "exists"}
	}
	return &sandbox{bin: bin, imageCheck: check, limits: limits, exec: ex}
}

func (s *sandbox) Name() string { return s.bin }

// usable reports whether the binary is on PATH and its daemon answers.
func (s *sandbox) usable() bool {
	if _, err := s.exec.LookPath(s.bin); err != nil {
		return false
	}
	return s.exec.RunSilent(s.bin, "info") == nil
}

func (s *sandbox) ImageExists(image string) error {
	args := append(append([]string{}, s.imageCheck...), image)
	if err := s.exec.RunSilent(s.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, s.bin, err)
	}
	return nil
}

// runArgs builds the sandboxed run command line for image.
func (s *sandbox) runArgs(image string) []string {
	args := []string{
		"run", "--rm", "-i",
		"--network", "none",
		"--read-only",
		"--security-opt", "no-new-privileges",
	}
	if s.limits.Memory != "" {
		args = append(args, "--memory", s.limits.Memory)
	}
	if s.limits.CPUs != "" {
		args = append(args, "--cpus", s.limits.CPUs)
	}
	return append(args, image)
}

func (s *sandbox) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	if err := s.exec.RunPiped(ctx, s.bin, s.runArgs(image), stdin, stdout); err != nil {
		return fmt.Errorf("running %s container %s: %w", s.bin, image, err)
	}
	return nil
}

// Detect returns a sandbox on the preferred runtime, or on the first usable
// of Docker and Podman when preferred is empty.
func Detect(preferred string, limits Limits) (Runtime, error) {
	return detect(osExecutor{}, preferred, limits)
}

func detect(ex executor, preferred string, limits Limits) (Runtime, error) {
	candidates := []string{Docker, Podman}
	switch preferred {
	case "":
	case Docker, Podman:
		candidates = []string{preferred}
	default:
		return nil, fmt.Errorf("unknown container runtime %q; expected %s or %s", preferred, Docker, Podman)
	}
	for _, bin := range candidates {
		if s := newSandbox(bin, limits, ex); s.usable() {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(candidates, ", "))
}
