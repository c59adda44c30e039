package systemd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/desain-gratis/common/lib/notifier"
	notifier_impl "github.com/desain-gratis/common/lib/notifier/impl"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/unitbot/src/entity"
)

// WaitGroupKey is the request context key of the wait group tracking open websockets.
const WaitGroupKey = "ws-wg"

type httpHandler struct {
	manager        *Manager
	watcher        *Watcher
	topic          notifier.Topic
	originPatterns []string
	unitSuffix     string
}

// Http serves the read-only unit endpoints. Unit names in the path are completed
// with unitSuffix the same way chat commands are.
func Http(manager *Manager, watcher *Watcher, topic notifier.Topic, originPatterns []string, unitSuffix string) *httpHandler {
	return &httpHandler{
		manager:        manager,
		watcher:        watcher,
		topic:          topic,
		originPatterns: originPatterns,
		unitSuffix:     unitSuffix,
	}
}

func (h *httpHandler) unit(p httprouter.Params) string {
	return UnitName(p.ByName("unit"), h.unitSuffix)
}

func (h *httpHandler) GetStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	status := h.manager.GetUnitStatus(r.Context(), h.unit(p))
	code := http.StatusOK
	if status.IsInvalid() {
		code = statusCode(status.Failure.Kind)
	}
	writeJSON(w, code, status)
}

func (h *httpHandler) GetErrors(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	detail := h.manager.GetErrors(r.Context(), h.unit(p))
	code := http.StatusOK
	if detail.Failure != nil {
		code = statusCode(detail.Failure.Kind)
	}
	writeJSON(w, code, detail)
}

func (h *httpHandler) GetLogs(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	bundle := h.manager.GetLogs(r.Context(), h.unit(p))
	code := http.StatusOK
	if bundle.Failure != nil {
		code = statusCode(bundle.Failure.Kind)
	}
	writeJSON(w, code, bundle)
}

func statusCode(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindPermissionDenied:
		return http.StatusForbidden
	case entity.KindUnreachable:
		return http.StatusBadGateway
	case entity.KindUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

// StreamUnit sends the current unit list, then every unit change and dispatched
// command until either side closes.
func (h *httpHandler) StreamUnit(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ctx := r.Context()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Error().Msgf("error accept %v", err)
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")

	if wsWg, ok := ctx.Value(WaitGroupKey).(*sync.WaitGroup); ok {
		wsWg.Add(1)
		defer wsWg.Done()
	}

	lctx, lcancel := context.WithCancel(ctx)
	pctx, pcancel := context.WithCancel(context.Background())

	// Reader goroutine, detect client connection close as well.
	go func() {
		// close both listener & publisher ctx if client is the one closing
		defer lcancel()
		defer pcancel()

		for {
			t, _, err := c.Read(pctx)
			if websocket.CloseStatus(err) > 0 {
				return
			}
			if err != nil {
				return
			}

			if t == websocket.MessageBinary {
				log.Info().Msgf("ignoring binary message from stream client")
				continue
			}
		}
	}()

	// simple protection against quick open-close connection
	time.Sleep(100 * time.Millisecond)
	if pctx.Err() != nil || lctx.Err() != nil {
		return
	}

	// subscribe until server closed / client closed
	subscribeCtx, cancelSubscribe := context.WithCancelCause(context.Background())
	defer cancelSubscribe(nil)

	// merge context
	go func() {
		select {
		case <-lctx.Done():
			cancelSubscribe(errors.New("server closed"))
		case <-pctx.Done():
			cancelSubscribe(errors.New("client closed"))
		}
	}()

	subscription, err := h.topic.Subscribe(subscribeCtx, notifier_impl.NewStandardSubscriber(nil))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Err(err).Msgf("error get listener %v", err)
		return
	}

	// important to start the subscription..
	subscription.Start()

	// send initial list
	var initial []DBusUnitStatus
	if h.watcher != nil {
		initial = h.watcher.Snapshot()
	}
	for _, unit := range initial {
		err = h.sendToClient(pctx, c, Row[DBusUnitStatus]{
			Name: RowUnit,
			Key:  unit.Name,
			Data: unit,
		})
		if err != nil {
			return
		}
	}

	for anymsg := range subscription.Listen() {
		if pctx.Err() != nil {
			break
		}

		switch anymsg.(type) {
		case Row[DBusUnitStatus], Row[entity.CommandResult]:
		default:
			log.Error().Msgf("unexpected stream message %T %+v", anymsg, anymsg)
			continue
		}

		err = h.sendToClient(pctx, c, anymsg)
		if err != nil && websocket.CloseStatus(err) == -1 {
			return
		}
	}

	// if we cannot publish anymore, return immediately
	if err := pctx.Err(); err != nil {
		return
	}

	// else, send goodbye message
	d := map[string]any{
		"evt_name": "listen-server-closed",
		"evt_ver":  0,
		"data":     "Server closed.",
	}

	err = h.sendToClient(pctx, c, d)
	if err != nil && websocket.CloseStatus(err) == -1 {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Err(err).Msgf("failed to send message")
		return
	}

	err = c.Close(websocket.StatusNormalClosure, "server closed")
	if err != nil && websocket.CloseStatus(err) == -1 {
		log.Err(err).Msgf("failed to close websocket connection normally")
		return
	}

	log.Info().Msgf("websocket connection closed")
}

func (h *httpHandler) sendToClient(ctx context.Context, wsconn *websocket.Conn, msg any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return wsconn.Write(ctx, websocket.MessageText, payload)
}
