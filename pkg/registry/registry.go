// Package registry keeps the action factories available to the step executor,
// keyed by step type.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/dukex/engageflow/pkg/protocol"
)

var ErrActionNotRegistered = errors.New("action not registered")

type Registry struct {
	logger          *slog.Logger
	mu              sync.RWMutex
	actionFactories map[models.StepType]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log.With("module", "registry"),
		actionFactories: make(map[models.StepType]protocol.ActionFactory),
	}
}

// LoadActionPlugins opens every <pluginsPath>/actions/*.so and returns the
// exported "Action" factory of each.
func (r *Registry) LoadActionPlugins(pluginsPath string) ([]protocol.ActionFactory, error) {
	return loadPlugin[protocol.ActionFactory](r.logger, pluginsPath, "Action")
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actionFactories[actionFactory.ID()]; exists {
		r.logger.Warn("Replacing registered action", "step_type", actionFactory.ID())
	}

	r.actionFactories[actionFactory.ID()] = actionFactory
}

// HasAction reports whether a factory exists for the step type.
func (r *Registry) HasAction(stepType models.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.actionFactories[stepType]

	return ok
}

//nolint:ireturn // factories build heterogeneous actions
func (r *Registry) CreateAction(ctx context.Context, stepType models.StepType, config map[string]any) (protocol.Action, error) {
	r.mu.RLock()
	factory, ok := r.actionFactories[stepType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotRegistered, stepType)
	}

	if config == nil {
		config = map[string]any{}
	}

	return factory.Create(ctx, config)
}

// Schema returns the config schema for a step type, covering both actions and
// the control steps interpreted by the executor.
func (r *Registry) Schema(stepType models.StepType) (*models.JSONSchema, bool) {
	if schema, ok := models.ControlStepSchema(stepType); ok {
		return schema, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.actionFactories[stepType]
	if !ok {
		return nil, false
	}

	return factory.GetSchema(), true
}

// Components describes every registered action, sorted by step type.
func (r *Registry) Components() []models.RegisteredComponent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := make([]models.RegisteredComponent, 0, len(r.actionFactories))
	for _, factory := range r.actionFactories {
		components = append(components, models.RegisteredComponent{
			Type:        factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.GetSchema(),
		})
	}

	slices.SortFunc(components, func(a, b models.RegisteredComponent) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})

	return components
}

// HealthCheck reports whether any action is registered.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.actionFactories) == 0 {
		return "No actions registered", false
	}

	return fmt.Sprintf("%d actions registered", len(r.actionFactories)), true
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", symbolName))
	l.Info("Loading plugins", "count", len(pluginPathList))

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup %s in plugin %s: %w", symbolName, p, err)
		}

		// Exported variables are looked up as pointers to the variable.
		var castV T

		switch sym := v.(type) {
		case T:
			castV = sym
		case *T:
			castV = *sym
		default:
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
