package task

import (
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"
)

// CLIConfig declares how a task surfaces as a CLI command.
type CLIConfig struct {
	Name        string
	Description string
	Group       string
	Aliases     []string
	Hidden      bool
}

// BuildTags renders the kong tags for this command.
func (opts CLIConfig) BuildTags() []string {
	var tags []string
	if len(opts.Aliases) > 0 {
		tags = append(tags, "aliases:"+strings.Join(opts.Aliases, ","))
	}
	if opts.Hidden {
		tags = append(tags, `hidden:""`)
	}
	return tags
}

// CLITask is implemented by tasks that expose a CLI entry point.
type CLITask interface {
	CLIHandler() any
	CLIOptions() CLIConfig
}

// CronConfig declares how a task is scheduled.
type CronConfig struct {
	Expression string
	RunOnce    bool
}

// CronTask is implemented by tasks that want scheduled execution.
type CronTask interface {
	CronHandler() func() error
	CronOptions() CronConfig
}

// NilCronRegister is a no-op scheduler hook for hosts without cron support.
func NilCronRegister(opts CronConfig, handler func() error) error {
	return nil
}

// Registry collects task definitions plus their optional CLI and cron
// exposures, and hands the host the kong options and scheduler
// registrations it needs. Registration closes once Initialize runs.
type Registry struct {
	mu              sync.RWMutex
	tasksToRegister []any
	definitions     map[string]*Definition
	initialized     bool
	cronRegisterFn  func(opts CronConfig, handler func() error) error
	cliOptions      []kong.Option
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
		cliOptions:  make([]kong.Option, 0),
	}
}

// SetCronRegister wires the scheduler hook used for CronTask registrations.
func (r *Registry) SetCronRegister(fn func(opts CronConfig, handler func() error) error) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cronRegisterFn = fn
	return r
}

// RegisterDefinition adds a task definition, addressable by name through
// Lookup. The definition may additionally implement CLITask or CronTask via
// its registered value.
func (r *Registry) RegisterDefinition(def *Definition) error {
	if def == nil {
		return errors.New("definition cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_DEFINITION")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return errors.New("cannot register tasks after registry has been initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_ALREADY_INITIALIZED")
	}
	if _, ok := r.definitions[def.Name()]; ok {
		return errors.New("task already registered", errors.CategoryConflict).
			WithTextCode("DUPLICATE_TASK").
			WithMetadata(map[string]any{"task": def.Name()})
	}
	r.definitions[def.Name()] = def
	r.tasksToRegister = append(r.tasksToRegister, def)
	return nil
}

// Register adds an exposure-bearing value (CLITask and/or CronTask).
func (r *Registry) Register(t any) error {
	if t == nil {
		return errors.New("task cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_TASK")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return errors.New("cannot register tasks after registry has been initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_ALREADY_INITIALIZED")
	}
	r.tasksToRegister = append(r.tasksToRegister, t)
	return nil
}

// Lookup returns a registered definition by name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

// Initialize resolves every registered exposure. It can run once; further
// registrations are rejected afterwards.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return errors.New("registry already initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_ALREADY_INITIALIZED")
	}

	var errs error
	for _, t := range r.tasksToRegister {
		if cliTask, ok := t.(CLITask); ok {
			r.registerWithCLI(cliTask)
		}
		if cronTask, ok := t.(CronTask); ok {
			if err := r.registerWithCron(cronTask); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}

	r.initialized = true

	return errs
}

func (r *Registry) registerWithCron(cronTask CronTask) error {
	if r.cronRegisterFn == nil {
		return errors.New("cron scheduler not provided during initialization", errors.CategoryBadInput).
			WithTextCode("CRON_SCHEDULER_NOT_SET")
	}

	config := cronTask.CronOptions()
	if err := r.cronRegisterFn(config, cronTask.CronHandler()); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "cron scheduler registration failed").
			WithTextCode("CRON_REGISTRATION_FAILED").
			WithMetadata(map[string]any{"config": config})
	}
	return nil
}

func (r *Registry) registerWithCLI(cliTask CLITask) {
	opts := cliTask.CLIOptions()
	option := kong.DynamicCommand(
		opts.Name,
		opts.Description,
		opts.Group,
		cliTask.CLIHandler(),
		opts.BuildTags()...,
	)
	r.cliOptions = append(r.cliOptions, option)
}

// GetCLIOptions returns the kong options for every CLI exposure.
func (r *Registry) GetCLIOptions() ([]kong.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return nil, errors.New("registry not initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_NOT_INITIALIZED")
	}

	options := make([]kong.Option, len(r.cliOptions))
	copy(options, r.cliOptions)
	return options, nil
}
