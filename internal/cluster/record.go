package cluster

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultTimeout is the time budget of a cluster when none is requested.
const DefaultTimeout = 60 * time.Minute

// Record is the persisted lifecycle state of one cluster. It holds no
// transient handles; everything a later destroy needs is a plain field.
type Record struct {
	Name     string   `yaml:"name"`
	Platform Platform `yaml:"platform"`
	Region   string   `yaml:"region"`

	RequestedVersion string `yaml:"requested-version"`
	Version          string `yaml:"version,omitempty"`
	VersionSource    string `yaml:"version-source,omitempty"`
	Stream           string `yaml:"stream"`

	ShortID string `yaml:"short-id"`
	Dir     string `yaml:"cluster-dir"`
	AuthDir string `yaml:"auth-path"`

	Bucket    string `yaml:"s3-bucket-name,omitempty"`
	BackupKey string `yaml:"s3-object-name,omitempty"`

	Timeout time.Duration `yaml:"timeout"`
	Phase   Phase         `yaml:"phase"`
	// ReachedProvisioning is set once the record entered provisioning and
	// marks it for rollback.
	ReachedProvisioning bool `yaml:"reached-provisioning,omitempty"`

	OCMEnv     string `yaml:"ocm-env,omitempty"`
	ClusterID  string `yaml:"cluster-id,omitempty"`
	APIURL     string `yaml:"api-url,omitempty"`
	ConsoleURL string `yaml:"console-url,omitempty"`

	Parameters Parameters `yaml:"parameters"`
}

// New creates a pending record with the default time budget.
func New(name string, platform Platform) *Record {
	return &Record{
		Name:     name,
		Platform: platform,
		Timeout:  DefaultTimeout,
		Phase:    PhasePending,
	}
}

var nameRe = regexp.MustCompile(`^[a-z]([-a-z0-9]*[a-z0-9])?$`)

// Validate checks a record built from user input before create.
func (r *Record) Validate() error {
	if err := validateName(r.Name); err != nil {
		return err
	}
	if !r.Platform.Valid() {
		return fmt.Errorf("%w: %s: unsupported platform %q", ErrInvalidRecord, r.Name, r.Platform)
	}
	if r.Region == "" {
		return fmt.Errorf("%w: %s: region is required", ErrInvalidRecord, r.Name)
	}
	if r.RequestedVersion == "" && r.Version == "" {
		return fmt.Errorf("%w: %s: version is required", ErrInvalidRecord, r.Name)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be positive", ErrInvalidRecord, r.Name)
	}
	if err := r.Parameters.validateFor(r.Platform); err != nil {
		return fmt.Errorf("%s: %w", r.Name, err)
	}
	return nil
}

// ValidateForDestroy checks that a record, possibly rehydrated from a
// snapshot, carries what the destroy path needs.
func (r *Record) ValidateForDestroy() error {
	if err := validateName(r.Name); err != nil {
		return err
	}
	if !r.Platform.Valid() {
		return fmt.Errorf("%w: %s: unsupported platform %q", ErrInvalidRecord, r.Name, r.Platform)
	}
	if r.Dir == "" {
		return fmt.Errorf("%w: %s: cluster directory is required", ErrInvalidRecord, r.Name)
	}
	if r.Region == "" {
		return fmt.Errorf("%w: %s: region is required", ErrInvalidRecord, r.Name)
	}
	if r.Parameters.variants() > 1 {
		return fmt.Errorf("%w: %s: more than one parameter set", ErrInvalidRecord, r.Name)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if len(name) > 54 || !nameRe.MatchString(name) {
		return fmt.Errorf("%w: name %q must be a lowercase DNS label of at most 54 characters", ErrInvalidRecord, name)
	}
	return nil
}

// Advance moves the record to next if the state machine allows it.
func (r *Record) Advance(next Phase) error {
	if !r.Phase.CanTransition(next) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, r.Name, r.Phase, next)
	}
	r.Phase = next
	if next == PhaseProvisioning {
		r.ReachedProvisioning = true
	}
	return nil
}

// SetVersion records the resolved build. The version is set at most once;
// setting the same value again is a no-op so resumed lifecycles stay idempotent.
func (r *Record) SetVersion(build, source string) error {
	if r.Version != "" {
		if r.Version == build {
			return nil
		}
		return fmt.Errorf("%w: %s is already at %s, refusing %s", ErrVersionAlreadySet, r.Name, r.Version, build)
	}
	r.Version = build
	r.VersionSource = source
	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.Parameters = r.Parameters.clone()
	return &out
}

func (r *Record) String() string {
	return fmt.Sprintf("%s/%s", r.Platform, r.Name)
}
