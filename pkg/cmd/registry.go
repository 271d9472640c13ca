// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/engageflow/pkg/actions/aireply"
	"github.com/dukex/engageflow/pkg/actions/assign"
	"github.com/dukex/engageflow/pkg/actions/email"
	"github.com/dukex/engageflow/pkg/actions/notify"
	"github.com/dukex/engageflow/pkg/actions/status"
	"github.com/dukex/engageflow/pkg/actions/tag"
	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
	"github.com/dukex/engageflow/pkg/registry"
)

func registerNativeActions(reg *registry.Registry, collaborators protocol.Collaborators, logger *slog.Logger) {
	reg.RegisterAction(notify.NewActionFactory(models.StepSendMessage, collaborators.Notifier))
	reg.RegisterAction(notify.NewActionFactory(models.StepSendNotification, collaborators.Notifier))
	reg.RegisterAction(email.NewActionFactory(collaborators.Mailer))
	reg.RegisterAction(assign.NewActionFactory(models.StepAssignAgent, collaborators.Assigner))
	reg.RegisterAction(assign.NewActionFactory(models.StepAssignLead, collaborators.Assigner))
	reg.RegisterAction(status.NewActionFactory(collaborators.EntityUpdater))
	reg.RegisterAction(tag.NewActionFactory(collaborators.EntityUpdater))

	var generator protocol.Generator
	if collaborators.Generator != nil {
		generator = aireply.NewBreakerGenerator(collaborators.Generator, aireply.BreakerConfig{}, logger)
	}

	reg.RegisterAction(aireply.NewActionFactory(generator, collaborators.Notifier))
}

func registerActionPlugins(reg *registry.Registry, pluginsPath string) error {
	actionPlugins, err := reg.LoadActionPlugins(pluginsPath)
	if err != nil {
		return err
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

// NewRegistry registers the built-in CRM actions backed by collaborators, then
// any action plugins found under pluginsPath. Plugins may replace built-ins.
func NewRegistry(logger *slog.Logger, pluginsPath string, collaborators protocol.Collaborators) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	registerNativeActions(reg, collaborators, logger)

	if pluginsPath != "" {
		err := registerActionPlugins(reg, pluginsPath)
		if err != nil {
			return nil, err
		}
	}

	return reg, nil
}
