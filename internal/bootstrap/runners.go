package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"

	"github.com/meridianhq/eventcore/internal/services/dispatcher"
	"github.com/meridianhq/eventcore/internal/services/worker"
)

// dispatcherRunner adapts *dispatcher.Dispatcher to the Run(*libCommons.
// Launcher) error contract libCommons.RunApp expects, mirroring
// components/consumer's MultiQueueConsumer.Run signal-wait loop.
type dispatcherRunner struct {
	d *dispatcher.Dispatcher
}

func (r *dispatcherRunner) Run(_ *libCommons.Launcher) error {
	ctx := context.Background()

	r.d.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	r.d.Stop()

	return nil
}

// workerRunner adapts *worker.Worker the same way.
type workerRunner struct {
	w *worker.Worker
}

func (r *workerRunner) Run(_ *libCommons.Launcher) error {
	ctx := context.Background()

	if err := r.w.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	r.w.Stop()

	return nil
}
