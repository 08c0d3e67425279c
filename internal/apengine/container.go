// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apengine

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/weaver-engine/ap-engine/internal/apd"
)

// RunSpec is everything a ContainerRuntime needs to execute one
// CommandLineTool invocation.
type RunSpec struct {
	Image   string
	Argv    []string
	Env     map[string]string
	WorkDir string // host directory bind-mounted at the container's working directory

	NetworkEnabled bool
	Resources      apd.ResourceRequirement
	GPU            *apd.GPUHint
	EffectiveUID   *int
	EffectiveGID   *int

	Stdout io.Writer
	Stderr io.Writer
}

// RunResult reports how the container exited.
type RunResult struct {
	ExitCode int
}

// ContainerRuntime runs one container to completion, streaming its
// stdout/stderr into the spec's writers as it goes. Implementations
// must block until the container has exited.
type ContainerRuntime interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}

const containerWorkDir = "/var/ap-engine/work"

// DockerRuntime runs containers against a Docker Engine API endpoint.
// Network access is denied by default (spec.md §4.C4): only
// spec.NetworkEnabled opts a container into the bridge network.
type DockerRuntime struct {
	cli *client.Client
}

var _ ContainerRuntime = (*DockerRuntime)(nil)

// NewDockerRuntime connects to a Docker Engine API. host follows the
// same convention as DOCKER_HOST ("unix:///var/run/docker.sock",
// "tcp://host:2375", ...); an empty host uses the client's
// environment-derived default.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("apengine: initialize docker client: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Run creates, starts, streams, waits for, and removes one container.
func (r *DockerRuntime) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	cfg := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Argv,
		Env:        envSlice(spec.Env),
		WorkingDir: containerWorkDir,
	}
	if spec.EffectiveUID != nil {
		user := strconv.Itoa(*spec.EffectiveUID)
		if spec.EffectiveGID != nil {
			user = fmt.Sprintf("%d:%d", *spec.EffectiveUID, *spec.EffectiveGID)
		}
		cfg.User = user
	}

	hostCfg := &container.HostConfig{
		Binds: []string{spec.WorkDir + ":" + containerWorkDir},
		Resources: container.Resources{
			NanoCPUs: int64(spec.Resources.CoresMax) * 1e9,
			Memory:   int64(spec.Resources.RAMMaxMB) * 1024 * 1024,
		},
	}
	if !spec.NetworkEnabled {
		hostCfg.NetworkMode = "none"
	}
	if spec.GPU != nil && spec.GPU.Count > 0 {
		hostCfg.Resources.DeviceRequests = []container.DeviceRequest{{
			Driver:       "nvidia",
			Count:        spec.GPU.Count,
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return RunResult{}, fmt.Errorf("apengine: create container: %w", err)
	}
	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("apengine: start container: %w", err)
	}

	if err := r.streamLogs(ctx, resp.ID, spec.Stdout, spec.Stderr); err != nil {
		return RunResult{}, fmt.Errorf("apengine: stream container output: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return RunResult{}, fmt.Errorf("apengine: wait for container: %w", err)
		}
		return RunResult{}, nil
	case status := <-statusCh:
		return RunResult{ExitCode: int(status.StatusCode)}, nil
	case <-ctx.Done():
		_ = r.cli.ContainerKill(context.Background(), resp.ID, "SIGKILL")
		return RunResult{}, ctx.Err()
	}
}

// streamLogs attaches to the container's combined stdout/stderr stream
// and demultiplexes it into the spec's two writers as output arrives.
func (r *DockerRuntime) streamLogs(ctx context.Context, containerID string, stdout, stderr io.Writer) error {
	out, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return err
	}
	defer out.Close()

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	_, err = stdcopy.StdCopy(stdout, stderr, out)
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
