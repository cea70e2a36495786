package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/maparea"
)

// completeBoundary runs the boundary commit flow for a finished ring. The
// containment predicate runs before any persistence call and before the
// naming dialog: a ring that escapes its parent is rejected outright.
func (s *Session) completeBoundary(ctx context.Context, ev ShapeCompleted) error {
	s.mu.Lock()

	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != StateDrawingBoundary || s.pendingTool != ev.Tool {
		err := s.fail("complete boundary", Validationf("no %s draw in progress", ev.Tool))
		s.mu.Unlock()
		return err
	}
	s.state = StateIdle
	s.pendingTool = ""

	area := s.area
	parentRing := s.parentRing
	ownRing := s.ownRing
	hasOwn := s.ownBoundaryID != 0
	s.mu.Unlock()

	ring := geom.Ring(ev.Points)
	if err := ring.Validate(); err != nil {
		return s.fail("complete boundary", err)
	}

	switch ev.Tool {
	case ToolBoundary:
		// Containment against this area's own parent, when it has one.
		if err := s.checkContainment(ring, parentRing); err != nil {
			return err
		}
		if hasOwn {
			// Redrawing an existing boundary stages the ring; it only hits
			// the gateway on an explicit save.
			s.mu.Lock()
			s.staged = ring
			s.mu.Unlock()
			s.notifier.Info("boundary staged; save to apply")
			return nil
		}
		return s.createOwnBoundary(ctx, area.ID, ring)
	case ToolSuburb, ToolIndividual:
		// A child's parent is the open map area itself.
		if err := s.checkContainment(ring, ownRing); err != nil {
			return err
		}
		return s.createChildArea(ctx, ev.Tool, area, ring)
	default:
		return s.fail("complete boundary", Validationf("unknown boundary tool %q", ev.Tool))
	}
}

// checkContainment runs the geometry predicate when a parent ring exists. A
// missing parent ring means no check, matching the root-region behavior.
func (s *Session) checkContainment(ring, parent geom.Ring) error {
	if parent == nil {
		return nil
	}
	contained, err := geom.Contains(ring, parent)
	if err != nil {
		return s.fail("containment check", err)
	}
	s.metrics.observeContainment(contained)
	if !contained {
		return s.fail("containment check", Validationf(
			"the boundary must be completely within the parent boundary"))
	}
	return nil
}

// createOwnBoundary persists the open area's first boundary ring.
func (s *Session) createOwnBoundary(ctx context.Context, mapAreaID int64, ring geom.Ring) error {
	b := &boundary.Boundary{MapAreaID: mapAreaID, Ring: ring}
	if err := s.boundaries.Create(ctx, b); err != nil {
		return s.fail("save boundary", err)
	}

	s.mu.Lock()
	s.ownBoundaryID = b.ID
	s.ownRing = ring
	s.mu.Unlock()

	s.metrics.observeTransition("create_boundary", "ok")
	s.notifier.Info("boundary saved")
	return nil
}

// createChildArea establishes a new suburb or individual map area and its
// boundary. The naming dialog only opens after containment succeeded; a
// cancelled or empty name discards the drawable.
func (s *Session) createChildArea(ctx context.Context, tool Tool, parent *maparea.MapArea, ring geom.Ring) error {
	name, ok := s.promptName(tool)
	if !ok || name == "" {
		s.metrics.observeTransition("create_child", "discarded")
		return nil
	}

	child := &maparea.MapArea{
		ParentID:    &parent.ID,
		Name:        name,
		Kind:        childKind(tool),
		DefaultView: viewForRing(ring, parent.DefaultView),
	}
	if err := s.areas.Create(ctx, child); err != nil {
		return s.fail("create child map area", err)
	}

	b := &boundary.Boundary{MapAreaID: child.ID, Ring: ring}
	if err := s.boundaries.Create(ctx, b); err != nil {
		// The child without its boundary is useless; best-effort cleanup.
		if delErr := s.areas.Delete(ctx, child.ID); delErr != nil {
			s.logger.Error("failed to clean up child map area after boundary failure",
				"map_area_id", child.ID, "error", delErr)
		}
		return s.fail("save child boundary", err)
	}

	s.metrics.observeTransition("create_child", "ok")
	s.notifier.Info(fmt.Sprintf("%s map %q created", child.Kind, name))
	return nil
}

// StageBoundary buffers an interactive edit of the existing boundary. Vertex
// drags never write through; only SaveBoundary does.
func (s *Session) StageBoundary(ring geom.Ring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(geom.Ring(nil), ring...)
}

// StagedBoundary returns the buffered ring, if any.
func (s *Session) StagedBoundary() (geom.Ring, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil, false
	}
	return append(geom.Ring(nil), s.staged...), true
}

// SaveBoundary commits the staged boundary edit: containment against the
// parent ring, then a wholesale replacement through the gateway.
func (s *Session) SaveBoundary(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	staged := s.staged
	boundaryID := s.ownBoundaryID
	parentRing := s.parentRing
	s.mu.Unlock()

	if staged == nil {
		return s.fail("save boundary", Validationf("no boundary edit is staged"))
	}
	if boundaryID == 0 {
		return s.fail("save boundary", boundary.ErrBoundaryNotFound)
	}
	if err := staged.Validate(); err != nil {
		return s.fail("save boundary", err)
	}
	if err := s.checkContainment(staged, parentRing); err != nil {
		return err
	}

	b := &boundary.Boundary{ID: boundaryID, Ring: staged}
	if err := s.boundaries.Update(ctx, b); err != nil {
		return s.fail("save boundary", err)
	}

	s.mu.Lock()
	s.ownRing = staged
	s.staged = nil
	s.mu.Unlock()

	s.metrics.observeTransition("update_boundary", "ok")
	s.notifier.Info("boundary saved")
	return nil
}

// DiscardBoundary drops the staged edit, reverting the surface to the
// persisted ring.
func (s *Session) DiscardBoundary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
}

// loadRing fetches a map area's boundary ring; an absent boundary is not an
// error here.
func (s *Session) loadRing(ctx context.Context, mapAreaID int64) (geom.Ring, int64, error) {
	b, err := s.boundaries.GetByMapArea(ctx, mapAreaID)
	if err != nil {
		if errors.Is(err, boundary.ErrBoundaryNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return b.Ring, b.ID, nil
}

// promptName asks the surface for a new child map's name.
func (s *Session) promptName(tool Tool) (string, bool) {
	if s.prompter == nil {
		return "", false
	}
	return s.prompter.Name(tool)
}

// childKind maps a boundary tool to the created map area kind.
func childKind(tool Tool) maparea.Kind {
	if tool == ToolIndividual {
		return maparea.KindIndividual
	}
	return maparea.KindSuburb
}

// viewForRing centers the default view on the ring's bounding box, keeping
// the parent's zoom and bearing as a starting point.
func viewForRing(ring geom.Ring, parent maparea.DefaultView) maparea.DefaultView {
	b := ring.BoundingBox()
	return maparea.DefaultView{
		CenterLat: (b.MinLat + b.MaxLat) / 2,
		CenterLng: (b.MinLng + b.MaxLng) / 2,
		Zoom:      parent.Zoom,
		Bearing:   parent.Bearing,
	}
}
