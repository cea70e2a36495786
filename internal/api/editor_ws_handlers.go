// Package api provides the WebSocket endpoint driving interactive editor
// sessions.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/editor"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// editorFrame is the inbound wire envelope for surface events. Labels and
// names ride along with the event that needs them so there is no extra
// round trip for the prompt.
type editorFrame struct {
	Event         string         `json:"event"`
	Tool          string         `json:"tool,omitempty"`
	Points        []geom.Point   `json:"points,omitempty"`
	Style         map[string]any `json:"style,omitempty"`
	Text          string         `json:"text,omitempty"`
	AnnotationID  int64          `json:"annotation_id,omitempty"`
	Content       *string        `json:"content,omitempty"`
	Label         *string        `json:"label,omitempty"`
	Name          *string        `json:"name,omitempty"`
	ActiveLayerID *int64         `json:"active_layer_id,omitempty"`
	Ring          geom.Ring      `json:"ring,omitempty"`
}

// Inbound frame event names.
const (
	frameDrawStart       = "draw.start"
	frameShapeComplete   = "shape.complete"
	frameTextCapture     = "text.capture"
	frameEditCommit      = "edit.commit"
	frameRemovalRequest  = "removal.request"
	frameDrawCancel      = "draw.cancel"
	frameLayerActivate   = "layer.activate"
	frameLayersRefresh   = "layers.refresh"
	frameBoundaryStage   = "boundary.stage"
	frameBoundarySave    = "boundary.save"
	frameBoundaryDiscard = "boundary.discard"
	frameRenderSet       = "renderset.request"
)

// renderSetFrame is the outbound render set snapshot.
type renderSetFrame struct {
	Event     string             `json:"event"`
	MapAreaID int64              `json:"map_area_id"`
	Drawables []*editor.Drawable `json:"drawables"`
}

// frameAnswers satisfies the session's prompts from fields carried on the
// frame currently being dispatched.
type frameAnswers struct {
	label *string
	name  *string
}

func (p *frameAnswers) Label(editor.Tool) (string, bool) {
	if p.label == nil {
		return "", false
	}
	return *p.label, true
}

func (p *frameAnswers) Name(editor.Tool) (string, bool) {
	if p.name == nil {
		return "", false
	}
	return *p.name, true
}

// EditorWSHandlers holds dependencies for the editor WebSocket endpoint.
type EditorWSHandlers struct {
	areas       maparea.Repository
	boundaries  boundary.Repository
	layers      layer.Repository
	annotations annotation.Repository
	broadcaster *stream.Broadcaster
	metrics     *editor.Metrics
	logger      *slog.Logger
}

// NewEditorWSHandlers creates a new EditorWSHandlers instance.
func NewEditorWSHandlers(
	areas maparea.Repository,
	boundaries boundary.Repository,
	layers layer.Repository,
	annotations annotation.Repository,
	broadcaster *stream.Broadcaster,
	metrics *editor.Metrics,
	logger *slog.Logger,
) *EditorWSHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EditorWSHandlers{
		areas:       areas,
		boundaries:  boundaries,
		layers:      layers,
		annotations: annotations,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
}

// Serve handles GET /map-areas/{id}/editor: it upgrades the connection,
// opens an editor session over the map area, and drives the session from the
// client's surface-event frames. The `format` query parameter picks the
// broadcast codec (json or cbor).
func (h *EditorWSHandlers) Serve(w http.ResponseWriter, r *http.Request, mapAreaID int64) {
	ctx := r.Context()

	codec, err := stream.CodecFor(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if _, err := h.areas.GetByID(ctx, mapAreaID); err != nil {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Map area not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to upgrade websocket connection",
			"error", err,
			"map_area_id", mapAreaID)
		return
	}

	h.broadcaster.Subscribe(mapAreaID, conn, codec)
	answers := &frameAnswers{}
	session := editor.NewSession(editor.Config{
		Areas:       h.areas,
		Boundaries:  h.boundaries,
		Layers:      h.layers,
		Annotations: h.annotations,
		Notifier: &stream.Notifier{
			Broadcaster: h.broadcaster,
			MapAreaID:   mapAreaID,
			Fallback:    h.logger,
		},
		Prompter: answers,
		Metrics:  h.metrics,
		Logger:   h.logger,
	})

	requestID := middleware.GetRequestID(ctx)
	defer func() {
		session.Close()
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		h.logger.InfoContext(ctx, "editor session disconnected",
			"session_id", session.ID(),
			"map_area_id", mapAreaID,
			"request_id", requestID)
	}()

	// The session opens against a background context: its gateway calls must
	// not die with the HTTP request context once the upgrade is done.
	runCtx := context.Background()
	if err := session.Open(runCtx, mapAreaID); err != nil {
		h.logger.WarnContext(ctx, "failed to open editor session",
			"map_area_id", mapAreaID,
			"error", err)
		return
	}
	h.logger.InfoContext(ctx, "editor session connected",
		"session_id", session.ID(),
		"map_area_id", mapAreaID,
		"request_id", requestID)
	h.pushRenderSet(conn, codec, mapAreaID, session)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WarnContext(ctx, "websocket connection closed unexpectedly",
					"error", err,
					"map_area_id", mapAreaID)
			}
			return
		}

		var frame editorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.WarnContext(ctx, "dropping malformed editor frame", "error", err)
			continue
		}
		h.dispatch(runCtx, conn, codec, mapAreaID, session, answers, frame)
	}
}

// dispatch applies one frame to the session. Rejections surface to the user
// through the session's notifier; the render set snapshot follows every frame
// that may have changed it.
func (h *EditorWSHandlers) dispatch(
	ctx context.Context,
	conn *websocket.Conn,
	codec stream.Codec,
	mapAreaID int64,
	session *editor.Session,
	answers *frameAnswers,
	frame editorFrame,
) {
	answers.label = frame.Label
	answers.name = frame.Name

	var err error
	switch frame.Event {
	case frameDrawStart:
		_, err = session.Dispatch(ctx, editor.DrawStarted{Tool: editor.Tool(frame.Tool)})
	case frameShapeComplete:
		_, err = session.Dispatch(ctx, editor.ShapeCompleted{
			Tool:   editor.Tool(frame.Tool),
			Points: frame.Points,
			Style:  frame.Style,
		})
	case frameTextCapture:
		_, err = session.Dispatch(ctx, editor.TextCaptured{Text: frame.Text})
	case frameEditCommit:
		_, err = session.Dispatch(ctx, editor.EditCommitted{
			AnnotationID: frame.AnnotationID,
			Points:       frame.Points,
			Content:      frame.Content,
		})
	case frameRemovalRequest:
		_, err = session.Dispatch(ctx, editor.RemovalRequested{AnnotationID: frame.AnnotationID})
	case frameDrawCancel:
		_, err = session.Dispatch(ctx, editor.DrawCancelled{})
	case frameLayerActivate:
		err = session.SetActiveLayer(frame.ActiveLayerID)
	case frameLayersRefresh:
		err = session.RefreshLayers(ctx)
	case frameBoundaryStage:
		session.StageBoundary(frame.Ring)
	case frameBoundarySave:
		err = session.SaveBoundary(ctx)
	case frameBoundaryDiscard:
		session.DiscardBoundary()
	case frameRenderSet:
		// Snapshot only; falls through to the push below.
	default:
		h.logger.Warn("unknown editor frame event", "event", frame.Event)
		return
	}

	if err != nil {
		// Already reported through the notifier; log for the server trail.
		h.logger.Debug("editor frame rejected",
			"session_id", session.ID(),
			"event", frame.Event,
			"error", err)
	}
	h.pushRenderSet(conn, codec, mapAreaID, session)
}

// pushRenderSet sends the session's current drawable set to this client.
func (h *EditorWSHandlers) pushRenderSet(conn *websocket.Conn, codec stream.Codec, mapAreaID int64, session *editor.Session) {
	frame := renderSetFrame{
		Event:     "renderset",
		MapAreaID: mapAreaID,
		Drawables: session.RenderSet(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode render set", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn("failed to push render set", "error", err)
	}
}
