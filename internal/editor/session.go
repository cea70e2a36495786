// Package editor implements the interactive geometry-and-state engine behind
// the map editing surface: the draw/edit/delete state machine, the annotation
// render set, and the boundary commit flow.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
)

// State is the drawing state machine's current mode.
type State int

// State machine states.
const (
	StateIdle State = iota
	StateDrawingBoundary
	StateDrawingAnnotation
	StateTextCapture
	StateCommittingEdit
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawingBoundary:
		return "drawing_boundary"
	case StateDrawingAnnotation:
		return "drawing_annotation"
	case StateTextCapture:
		return "text_capture"
	case StateCommittingEdit:
		return "committing_edit"
	default:
		return "unknown"
	}
}

// ErrNoActiveLayer rejects annotation drawing when no editable layer is
// selected. The check runs at draw start, never after shape completion.
var ErrNoActiveLayer = errors.New("no active layer selected")

// ErrOperationPending rejects a transition for a drawable whose previous
// persistence call has not completed yet.
var ErrOperationPending = errors.New("operation already pending for this annotation")

// Config wires a Session's collaborators.
type Config struct {
	Areas       maparea.Repository
	Boundaries  boundary.Repository
	Layers      layer.Repository
	Annotations annotation.Repository
	Notifier    Notifier
	Prompter    Prompter
	Metrics     *Metrics
	Logger      *slog.Logger
}

// pendingShape buffers a completed text placement until its inline text
// capture ends.
type pendingShape struct {
	points []geom.Point
	style  map[string]any
}

// Session is one map area's editing session: it owns the in-memory annotation
// list, the layer registry's active pointer, and the drawing state machine.
// Handlers are serialized per drawable: a second transition for a drawable
// with an outstanding persistence call is rejected, while transitions for
// other drawables proceed.
type Session struct {
	id       string
	logger   *slog.Logger
	metrics  *Metrics
	notifier Notifier
	prompter Prompter

	areas       maparea.Repository
	boundaries  boundary.Repository
	annotations annotation.Repository
	registry    *layer.Registry

	mu            sync.Mutex
	opened        bool
	state         State
	area          *maparea.MapArea
	ownBoundaryID int64
	ownRing       geom.Ring
	parentRing    geom.Ring
	list          []*annotation.Annotation
	renderSet     []*Drawable
	pendingTool   Tool
	pendingText   *pendingShape
	staged        geom.Ring
	inFlight      map[int64]struct{}
}

// NewSession creates a session over the given collaborators. The session is
// inert until Open is called with a map area.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewSlogNotifier(logger)
	}
	return &Session{
		id:          uuid.NewString(),
		logger:      logger,
		metrics:     cfg.Metrics,
		notifier:    notifier,
		prompter:    cfg.Prompter,
		areas:       cfg.Areas,
		boundaries:  cfg.Boundaries,
		annotations: cfg.Annotations,
		registry:    layer.NewRegistry(cfg.Layers, cfg.Areas),
		inFlight:    make(map[int64]struct{}),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the state machine's current mode.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open loads a map area into the session: its layers (with inherited copies),
// its own and parent boundary rings, and all annotations on visible layers.
func (s *Session) Open(ctx context.Context, mapAreaID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	area, err := s.areas.GetByID(ctx, mapAreaID)
	if err != nil {
		return s.fail("open map area", err)
	}
	if err := s.registry.Load(ctx, mapAreaID); err != nil {
		return s.fail("load layers", err)
	}

	ownRing, ownID, err := s.loadRing(ctx, mapAreaID)
	if err != nil {
		return s.fail("load boundary", err)
	}
	var parentRing geom.Ring
	if area.ParentID != nil {
		parentRing, _, err = s.loadRing(ctx, *area.ParentID)
		if err != nil {
			return s.fail("load parent boundary", err)
		}
	}

	s.area = area
	s.ownRing = ownRing
	s.ownBoundaryID = ownID
	s.parentRing = parentRing
	s.state = StateIdle
	s.pendingText = nil
	s.staged = nil

	if err := s.reloadAnnotationsLocked(ctx); err != nil {
		return s.fail("load annotations", err)
	}
	s.rebuildLocked()

	if !s.opened {
		s.opened = true
		s.metrics.sessionOpened()
	}
	s.logger.Info("editor session opened",
		"session_id", s.id,
		"map_area_id", mapAreaID,
		"editable_layers", len(s.registry.Editable()),
		"inherited_layers", len(s.registry.Inherited()))
	return nil
}

// Close resets all session state when the map area editor is left.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return
	}
	s.opened = false
	s.state = StateIdle
	s.area = nil
	s.ownRing = nil
	s.ownBoundaryID = 0
	s.parentRing = nil
	s.list = nil
	s.renderSet = nil
	s.pendingText = nil
	s.staged = nil
	s.inFlight = make(map[int64]struct{})
	s.registry.Reset()
	s.metrics.sessionClosed()
	s.logger.Info("editor session closed", "session_id", s.id)
}

// Registry exposes the session's layer registry for read-side collaborators.
func (s *Session) Registry() *layer.Registry {
	return s.registry
}

// RenderSet returns the current drawable set.
func (s *Session) RenderSet() []*Drawable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Drawable(nil), s.renderSet...)
}

// SetActiveLayer points the active selection at an editable layer, or clears
// it when layerID is nil. The render set is rebuilt either way.
func (s *Session) SetActiveLayer(layerID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if layerID == nil {
		s.registry.ClearActive()
		s.rebuildLocked()
		return nil
	}
	if err := s.registry.SelectActive(*layerID); err != nil {
		return s.fail("select layer", err)
	}
	s.rebuildLocked()
	return nil
}

// RefreshLayers reloads the layer sets after a layer was created, renamed,
// reordered, toggled, or deleted, reconciles the active pointer, and rebuilds
// the render set from freshly listed annotations.
func (s *Session) RefreshLayers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpenLocked(); err != nil {
		return err
	}
	if err := s.registry.Reload(ctx); err != nil {
		return s.fail("reload layers", err)
	}
	if err := s.reloadAnnotationsLocked(ctx); err != nil {
		return s.fail("reload annotations", err)
	}
	s.rebuildLocked()
	return nil
}

// BeginDraw arms a drawing tool. For annotation tools the active-layer check
// runs here, before any geometry exists: aborting a draw that never started
// beats cleaning up a half-created shape.
func (s *Session) BeginDraw(tool Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpenLocked(); err != nil {
		return err
	}
	if s.state != StateIdle {
		return s.fail("begin draw", Validationf("a %s operation is already in progress", s.state))
	}

	switch {
	case tool.IsAnnotation():
		if _, ok := s.registry.ActiveID(); !ok {
			err := &Error{
				Kind:    KindValidation,
				Message: "select a layer before drawing annotations",
				Err:     ErrNoActiveLayer,
			}
			s.metrics.observeRejection("begin_draw", err.Kind)
			s.notifier.Warn(err.Message)
			return err
		}
		s.state = StateDrawingAnnotation
		s.pendingTool = tool
	case tool.IsBoundary():
		s.state = StateDrawingBoundary
		s.pendingTool = tool
	default:
		return s.fail("begin draw", Validationf("unknown drawing tool %q", tool))
	}

	s.metrics.observeTransition("begin_draw", "ok")
	return nil
}

// Cancel discards any in-progress, not-yet-persisted drawable and returns the
// machine to Idle. An outstanding persistence call is unaffected; its result
// is applied or dropped when it completes.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDrawingAnnotation, StateDrawingBoundary, StateTextCapture:
		s.state = StateIdle
		s.pendingTool = ""
		s.pendingText = nil
		s.metrics.observeTransition("cancel", "ok")
	}
}

// CompleteShape handles a finished shape from the surface. Annotation tools
// persist against the active layer (after a label or inline-text step);
// boundary tools run the containment flow.
func (s *Session) CompleteShape(ctx context.Context, ev ShapeCompleted) (*Drawable, error) {
	if ev.Tool.IsBoundary() {
		return nil, s.completeBoundary(ctx, ev)
	}

	s.mu.Lock()

	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.state != StateDrawingAnnotation || s.pendingTool != ev.Tool {
		err := s.fail("complete shape", Validationf("no %s draw in progress", ev.Tool))
		s.mu.Unlock()
		return nil, err
	}

	// The draw is over on the surface regardless of what happens next.
	s.state = StateIdle
	s.pendingTool = ""

	activeID, ok := s.registry.ActiveID()
	if !ok {
		err := s.fail("complete shape", &Error{
			Kind:    KindValidation,
			Message: "the active layer disappeared while drawing; the shape was discarded",
			Err:     ErrNoActiveLayer,
		})
		s.mu.Unlock()
		return nil, err
	}

	if ev.Tool == ToolText {
		// Text is captured inline through the same gesture; no label prompt.
		s.state = StateTextCapture
		s.pendingText = &pendingShape{points: ev.Points, style: ev.Style}
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	content := ""
	switch ev.Tool {
	case ToolMarker, ToolPolygon:
		label, ok := s.promptLabel(ev.Tool)
		if !ok || label == "" {
			// Cancelled or empty label: the drawable is discarded, nothing
			// reaches the gateway.
			s.metrics.observeTransition("complete_shape", "discarded")
			return nil, nil
		}
		content = label
	case ToolLine:
		// Lines persist geometry only.
	}

	return s.persistAnnotation(ctx, ev.Tool.AnnotationKind(), activeID, ev.Points, ev.Style, content)
}

// CompleteText ends the inline text capture for a placed text annotation.
// Empty text discards the drawable.
func (s *Session) CompleteText(ctx context.Context, ev TextCaptured) (*Drawable, error) {
	s.mu.Lock()

	if s.state != StateTextCapture || s.pendingText == nil {
		err := s.fail("complete text", Validationf("no text capture in progress"))
		s.mu.Unlock()
		return nil, err
	}
	pending := s.pendingText
	s.state = StateIdle
	s.pendingText = nil

	activeID, ok := s.registry.ActiveID()
	if !ok {
		err := s.fail("complete text", &Error{
			Kind:    KindValidation,
			Message: "the active layer disappeared while typing; the text was discarded",
			Err:     ErrNoActiveLayer,
		})
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if ev.Text == "" {
		s.metrics.observeTransition("complete_text", "discarded")
		return nil, nil
	}
	return s.persistAnnotation(ctx, annotation.KindText, activeID, pending.points, pending.style, ev.Text)
}

// CommitEdit persists a geometry or content change for an existing drawable.
// Only drawables on the active layer accept it; a protected drawable's
// last-known-good state is restored on the surface.
func (s *Session) CommitEdit(ctx context.Context, ev EditCommitted) error {
	s.mu.Lock()

	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	target := s.findLocked(ev.AnnotationID)
	if target == nil {
		err := s.fail("commit edit", annotation.ErrAnnotationNotFound)
		s.mu.Unlock()
		return err
	}
	if err := s.requireEditableLocked(target, "edited"); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, busy := s.inFlight[target.ID]; busy {
		err := s.fail("commit edit", Validationf("%s", ErrOperationPending))
		s.mu.Unlock()
		return err
	}

	updated := *target
	updated.Points = append([]geom.Point(nil), ev.Points...)
	if ev.Content != nil {
		updated.Content = *ev.Content
	}

	s.inFlight[target.ID] = struct{}{}
	prevState := s.state
	s.state = StateCommittingEdit
	s.mu.Unlock()

	err := s.annotations.Update(ctx, &updated)

	s.mu.Lock()
	delete(s.inFlight, updated.ID)
	s.state = prevState
	if err != nil {
		// Last-known-good geometry stays both in memory and on the surface.
		s.rebuildLocked()
		failErr := s.fail("commit edit", err)
		s.mu.Unlock()
		return failErr
	}
	s.replaceLocked(&updated)
	s.rebuildLocked()
	s.mu.Unlock()

	s.metrics.observeTransition("commit_edit", "ok")
	s.notifier.Info("annotation updated")
	return nil
}

// RequestRemoval deletes a drawable's record. Protected drawables refuse the
// removal and are restored if the surface already removed them optimistically.
// The in-memory record only disappears after the gateway confirms the delete,
// so a failed delete can never leave a ghost that "comes back" on refresh.
func (s *Session) RequestRemoval(ctx context.Context, ev RemovalRequested) error {
	s.mu.Lock()

	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	target := s.findLocked(ev.AnnotationID)
	if target == nil {
		err := s.fail("remove annotation", annotation.ErrAnnotationNotFound)
		s.mu.Unlock()
		return err
	}
	if err := s.requireEditableLocked(target, "removed"); err != nil {
		// Rebuild restores the drawable in case the surface dropped it already.
		s.rebuildLocked()
		s.mu.Unlock()
		return err
	}
	if _, busy := s.inFlight[target.ID]; busy {
		err := s.fail("remove annotation", Validationf("%s", ErrOperationPending))
		s.mu.Unlock()
		return err
	}

	s.inFlight[target.ID] = struct{}{}
	s.mu.Unlock()

	err := s.annotations.Delete(ctx, target.ID)

	s.mu.Lock()
	delete(s.inFlight, target.ID)
	if err != nil {
		s.rebuildLocked()
		failErr := s.fail("remove annotation", err)
		s.mu.Unlock()
		return failErr
	}
	s.removeLocked(target.ID)
	s.rebuildLocked()
	s.mu.Unlock()

	s.metrics.observeTransition("remove", "ok")
	s.notifier.Info("annotation removed")
	return nil
}

// Dispatch routes a surface event to its handler.
func (s *Session) Dispatch(ctx context.Context, ev SurfaceEvent) (*Drawable, error) {
	switch e := ev.(type) {
	case DrawStarted:
		return nil, s.BeginDraw(e.Tool)
	case ShapeCompleted:
		return s.CompleteShape(ctx, e)
	case TextCaptured:
		return s.CompleteText(ctx, e)
	case EditCommitted:
		return nil, s.CommitEdit(ctx, e)
	case RemovalRequested:
		return nil, s.RequestRemoval(ctx, e)
	case DrawCancelled:
		s.Cancel()
		return nil, nil
	default:
		return nil, Validationf("unknown surface event %T", ev)
	}
}

// persistAnnotation builds the record, calls the gateway, and applies the
// result. A failed create discards the drawable rather than leaving an
// unsaved shape on the surface.
func (s *Session) persistAnnotation(ctx context.Context, kind annotation.Kind, layerID int64, points []geom.Point, style map[string]any, content string) (*Drawable, error) {
	record := &annotation.Annotation{
		LayerID: layerID,
		Kind:    kind,
		Points:  append([]geom.Point(nil), points...),
		Style:   style,
		Content: content,
	}
	if err := record.Validate(); err != nil {
		return nil, s.fail("save annotation", err)
	}

	if err := s.annotations.Create(ctx, record); err != nil {
		return nil, s.fail("save annotation", err)
	}

	s.mu.Lock()
	s.list = append(s.list, record)
	s.rebuildLocked()
	var created *Drawable
	for _, d := range s.renderSet {
		if d.AnnotationID == record.ID {
			created = d
			break
		}
	}
	s.mu.Unlock()

	s.metrics.observeTransition("create", "ok")
	s.notifier.Info(fmt.Sprintf("%s saved", kind))
	return created, nil
}

// promptLabel asks the surface for a label; a nil prompter means headless
// operation, which counts as cancelled.
func (s *Session) promptLabel(tool Tool) (string, bool) {
	if s.prompter == nil {
		return "", false
	}
	return s.prompter.Label(tool)
}

// requireOpenLocked rejects operations before Open. Caller holds the lock.
func (s *Session) requireOpenLocked() error {
	if !s.opened {
		return Validationf("no map area is open in this session")
	}
	return nil
}

// requireEditableLocked enforces the authorization rule: only annotations on
// the active layer may be mutated. Caller holds the lock.
func (s *Session) requireEditableLocked(target *annotation.Annotation, verb string) error {
	activeID, ok := s.registry.ActiveID()
	if ok && target.LayerID == activeID && s.registry.IsEditable(target.LayerID) {
		return nil
	}
	var msg string
	if !s.registry.IsEditable(target.LayerID) {
		msg = fmt.Sprintf("this annotation belongs to a parent map's layer and cannot be %s here", verb)
	} else {
		msg = fmt.Sprintf("this annotation belongs to a layer other than the active one and cannot be %s", verb)
	}
	err := &Error{Kind: KindAuthorization, Message: msg, Err: layer.ErrLayerNotEditable}
	s.metrics.observeRejection("authorize", err.Kind)
	s.notifier.Warn(err.Message)
	return err
}

// findLocked returns the in-memory record for an annotation ID, or nil.
func (s *Session) findLocked(id int64) *annotation.Annotation {
	for _, a := range s.list {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// replaceLocked swaps an updated record into the in-memory list.
func (s *Session) replaceLocked(updated *annotation.Annotation) {
	for i, a := range s.list {
		if a.ID == updated.ID {
			s.list[i] = updated
			return
		}
	}
}

// removeLocked drops a record from the in-memory list.
func (s *Session) removeLocked(id int64) {
	for i, a := range s.list {
		if a.ID == id {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return
		}
	}
}

// reloadAnnotationsLocked lists annotations across every layer visible to the
// open map area. Caller holds the lock.
func (s *Session) reloadAnnotationsLocked(ctx context.Context) error {
	all := s.registry.All()
	ids := make([]int64, len(all))
	for i, l := range all {
		ids[i] = l.ID
	}
	list, err := s.annotations.ListByLayers(ctx, ids)
	if err != nil {
		return err
	}
	s.list = list
	return nil
}

// rebuildLocked discards and recreates the whole render set. Caller holds the
// lock.
func (s *Session) rebuildLocked() {
	s.renderSet = BuildRenderSet(s.list, s.registry)
	s.metrics.observeRenderSet(len(s.renderSet))
}

// fail classifies an error, records it, and notifies the user once.
// Caller may hold the lock; no locking happens here.
func (s *Session) fail(op string, err error) error {
	e := classify(err, op)
	s.metrics.observeRejection(op, e.Kind)
	switch e.Kind {
	case KindValidation, KindAuthorization:
		s.notifier.Warn(e.Message)
	case KindTransport:
		s.notifier.Error(e.Message + " (retryable)")
	default:
		s.notifier.Error(e.Message)
	}
	s.logger.Warn("editor transition rejected",
		"session_id", s.id,
		"op", op,
		"kind", e.Kind.String(),
		"error", e.Message)
	return e
}
