package dirdiff

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChangeSource computes raw change lists and knows where the live working
// tree is.
type ChangeSource interface {
	RawDiff(ctx context.Context, args []string) ([]byte, error)
	WorkTree() string
}

// Launcher runs a comparison tool on two directories.
type Launcher interface {
	Launch(ctx context.Context, left, right string) error
}

// State is a step of a session's construction.
type State int

const (
	StateInit State = iota
	StateDiffComputed
	StateEarlyExit
	StateWorkspaceAllocated
	StateLeftBuilt
	StateRightBuilt
	StateOverlayApplied
	StateStubsWritten
	StateReady
	StateFailed
)

var stateNames = [...]string{
	StateInit:               "init",
	StateDiffComputed:       "diff-computed",
	StateEarlyExit:          "early-exit",
	StateWorkspaceAllocated: "workspace-allocated",
	StateLeftBuilt:          "left-built",
	StateRightBuilt:         "right-built",
	StateOverlayApplied:     "overlay-applied",
	StateStubsWritten:       "stubs-written",
	StateReady:              "ready",
	StateFailed:             "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session builds one dir-diff workspace. A Session is single use.
type Session struct {
	Source ChangeSource
	Store  IndexStore
	// TmpDir is where the workspace is created; empty means os.TempDir.
	TmpDir string

	id    string
	log   zerolog.Logger
	state State
	trace []State
}

// NewSession returns a session tagged with a fresh id.
func NewSession(src ChangeSource, store IndexStore, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		Source: src,
		Store:  store,
		id:     id,
		log:    logger.With().Str("session", id).Logger(),
		trace:  []State{StateInit},
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Trace returns every state the session has passed through.
func (s *Session) Trace() []State {
	return append([]State(nil), s.trace...)
}

func (s *Session) advance(next State) {
	s.log.Debug().Stringer("from", s.state).Stringer("to", next).Msg("Session state")
	s.state = next
	s.trace = append(s.trace, next)
}

// Prepare computes the change list for args and materializes both sides.
// It returns ErrNothingToDiff, with no workspace, when there are no
// changes. On any other failure the partial workspace is removed.
func (s *Session) Prepare(ctx context.Context, args []string) (*Workspace, error) {
	if s.state != StateInit {
		return nil, fmt.Errorf("prepare: session already used (state %s)", s.state)
	}

	raw, err := s.Source.RawDiff(ctx, args)
	if err != nil {
		s.advance(StateFailed)
		return nil, fmt.Errorf("prepare: compute change list: %w", err)
	}
	records, err := Parse(raw)
	if err != nil {
		s.advance(StateFailed)
		return nil, fmt.Errorf("prepare: %w", err)
	}
	s.advance(StateDiffComputed)
	s.log.Debug().Int("records", len(records)).Msg("Change list parsed")

	plan := Classify(records)
	if len(records) == 0 || plan.Empty() {
		s.advance(StateEarlyExit)
		s.log.Info().Msg("Nothing to diff")
		return nil, ErrNothingToDiff
	}
	if plan.writesNothing() {
		paths := make([]string, 0, len(plan.Submodules))
		for _, ref := range plan.Submodules {
			paths = append(paths, ref.Path)
		}
		s.log.Debug().Strs("submodules", paths).Msg("Only submodules without recorded commits changed; both trees will be empty")
	}

	ws, err := NewWorkspace(s.TmpDir)
	if err != nil {
		s.advance(StateFailed)
		return nil, fmt.Errorf("prepare: %w", err)
	}
	s.advance(StateWorkspaceAllocated)
	s.log.Debug().Str("root", ws.Root).Msg("Workspace allocated")

	if err := s.build(ctx, ws, plan); err != nil {
		s.advance(StateFailed)
		s.discard(ws)
		return nil, fmt.Errorf("prepare: %w", err)
	}
	s.advance(StateReady)
	return ws, nil
}

func (s *Session) build(ctx context.Context, ws *Workspace, plan Plan) error {
	builder := SideBuilder{Store: s.Store, Log: s.log}

	if err := builder.Build(ctx, ws, SideLeft, plan.Left); err != nil {
		return err
	}
	s.advance(StateLeftBuilt)

	if err := builder.Build(ctx, ws, SideRight, plan.Right); err != nil {
		return err
	}
	s.advance(StateRightBuilt)

	if len(plan.WorkTree) > 0 {
		s.log.Warn().
			Int("files", len(plan.WorkTree)).
			Msg("Working-tree files are copied after the change list was computed; the right side is a snapshot, not an atomic view")
	}
	if err := ApplyWorkTree(s.Source.WorkTree(), ws.Right, plan.WorkTree); err != nil {
		return err
	}
	s.advance(StateOverlayApplied)

	if err := WriteSubmoduleStubs(ws, plan.Submodules); err != nil {
		return err
	}
	s.advance(StateStubsWritten)
	return nil
}

// discard removes a workspace, logging rather than returning failures.
func (s *Session) discard(ws *Workspace) {
	if err := ws.Remove(); err != nil {
		s.log.Warn().Err(err).Str("root", ws.Root).Msg("Failed to remove workspace")
	}
}

// Run prepares a workspace, hands it to launcher and removes it afterwards
// whatever the launcher's outcome. A failing launcher is returned as is,
// normally a *LauncherError.
func (s *Session) Run(ctx context.Context, args []string, launcher Launcher) error {
	ws, err := s.Prepare(ctx, args)
	if err != nil {
		return err
	}
	defer s.discard(ws)

	s.log.Debug().Str("left", ws.Left).Str("right", ws.Right).Msg("Launching comparison")
	if err := launcher.Launch(ctx, ws.Left, ws.Right); err != nil {
		var le *LauncherError
		if errors.As(err, &le) {
			s.log.Info().Int("exit_code", le.ExitCode).Msg("Comparison tool exited non-zero")
		}
		return err
	}
	return nil
}
