package app

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/routes/merge"
)

// newContainer registers the collaborators the route handlers resolve per
// request. Each App gets its own container id so several can share a process.
func (a *App) newContainer() (ectocontainer.DIContainer, error) {
	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:                       a.Config.AppName + "-" + uuid.NewString(),
		AllowCaptiveDependencies: true,
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{
			Prefix:   "ectoinject",
			LogLevel: loglevel.WARN,
			Enabled:  true,
			LogFunc:  containerLogFunc(a.Logger),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, a.Logger); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[merge.Merger](container, a.Engine); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[merge.AuditLister](container, a.Audits); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[merging.Plans](container, a.Plans); err != nil {
		return nil, err
	}

	return container, nil
}

func containerLogFunc(logger ectologger.Logger) func(ctx context.Context, level, msg string) {
	return func(ctx context.Context, level, msg string) {
		if level == loglevel.WARN {
			logger.WithContext(ctx).Warn(msg)
			return
		}
		logger.WithContext(ctx).Debug(msg)
	}
}
