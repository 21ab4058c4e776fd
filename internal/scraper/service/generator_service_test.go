package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	runID string
	pages []int
}

// blockingRunner holds every run until release is closed or the run is cancelled
type blockingRunner struct {
	started chan call
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan call, 4), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, runID string, pages []int) (*Summary, error) {
	r.started <- call{runID: runID, pages: pages}
	select {
	case <-r.release:
		return &Summary{RunID: runID}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestService(t *testing.T, runner Runner) (*GeneratorService, *messaging.MemoryClient, *[]models.GenerateLog) {
	t.Helper()
	cfg, err := config.LoadFrom(config.New())
	require.NoError(t, err)
	cfg.Playlist.Pages = "1-3"

	client := messaging.NewMemoryClient(&cfg.RabbitMq)
	log, _ := test.NewNullLogger()
	svc, err := NewGeneratorService(cfg, log, client, runner)
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	var logs []models.GenerateLog
	require.NoError(t, client.Consume(cfg.RabbitMq.Queue.Log, func(body []byte, _ string) error {
		var l models.GenerateLog
		if err := json.Unmarshal(body, &l); err != nil {
			return err
		}
		logs = append(logs, l)
		return nil
	}))
	return svc, client, &logs
}

func send(t *testing.T, c messaging.Client, cmd models.GenerateCommand) {
	t.Helper()
	require.NoError(t, c.PublishJSON(context.Background(), "", config.RoutingCommandGenerator, cmd))
}

func waitStarted(t *testing.T, r *blockingRunner) call {
	t.Helper()
	select {
	case c := <-r.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
		return call{}
	}
}

func TestStartUsesDefaultPages(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, _ := newTestService(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "r1"})
	c := waitStarted(t, runner)
	assert.Equal(t, "r1", c.runID)
	assert.Equal(t, []int{1, 2, 3}, c.pages)
	assert.Equal(t, "r1", svc.Running())

	close(runner.release)
	svc.Wait()
	assert.Empty(t, svc.Running())
}

func TestStartWithExplicitPagesAndGeneratedID(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, _ := newTestService(t, runner)
	close(runner.release)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, Data: models.Data{Pages: []int{480, 481}}})
	c := waitStarted(t, runner)
	assert.Equal(t, []int{480, 481}, c.pages)
	assert.NotEmpty(t, c.runID)
	svc.Wait()
}

func TestStartDropsRepeatedPages(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, _ := newTestService(t, runner)
	close(runner.release)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "r1", Data: models.Data{Pages: []int{1, 2, 1}}})
	c := waitStarted(t, runner)
	assert.Equal(t, []int{1, 2}, c.pages)
	svc.Wait()
}

func TestStartRejectedWhileRunning(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, logs := newTestService(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "first"})
	waitStarted(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "second"})
	require.Len(t, *logs, 1)
	assert.Equal(t, models.StatusRejected, (*logs)[0].Status)
	assert.Equal(t, "second", (*logs)[0].RunID)
	assert.Contains(t, (*logs)[0].Error, "first")
	assert.Equal(t, "first", svc.Running())
	assert.Len(t, runner.started, 0)

	close(runner.release)
	svc.Wait()
}

func TestStopCommandCancelsRun(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, _ := newTestService(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "r1"})
	waitStarted(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StopGenerateAction})
	svc.Wait()
	assert.Empty(t, svc.Running())

	// idle stop is a no-op
	send(t, client, models.GenerateCommand{Action: models.StopGenerateAction})
}

func TestInvalidPagesRejected(t *testing.T) {
	runner := newBlockingRunner()
	_, client, logs := newTestService(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction, RunID: "bad", Data: models.Data{Pages: []int{0}}})
	require.Len(t, *logs, 1)
	assert.Equal(t, models.StatusRejected, (*logs)[0].Status)
	assert.Len(t, runner.started, 0)
}

func TestUnknownCommand(t *testing.T) {
	svc, _, _ := newTestService(t, newBlockingRunner())
	assert.ErrorContains(t, svc.handleCommand([]byte(`{"action":"dance"}`)), "unknown command")
	assert.Error(t, svc.handleCommand([]byte(`{`)))
}

func TestServiceStop(t *testing.T) {
	runner := newBlockingRunner()
	svc, client, _ := newTestService(t, runner)

	send(t, client, models.GenerateCommand{Action: models.StartGenerateAction})
	waitStarted(t, runner)

	svc.Stop()
	assert.Empty(t, svc.Running())
}
