package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// inboundFrame is what clients send: {"event": "sendMessage", "data": {...}}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageBody struct {
	Text  string `json:"text"`
	Image string `json:"image"`
	Audio string `json:"audio"`
}

// sendMessageRequest accepts the content flat or nested under "message".
type sendMessageRequest struct {
	ClientID   string       `json:"clientId"`
	ReceiverID string       `json:"receiverId"`
	Message    *messageBody `json:"message,omitempty"`
	messageBody
}

type callRequest struct {
	ReceiverID    string         `json:"receiverId"`
	CallerName    string         `json:"callerName"`
	CallerProfile string         `json:"callerProfile"`
	CallType      model.CallType `json:"callType"`
}

// callReplyRequest answers an offer; the peer is the original caller.
type callReplyRequest struct {
	CallerID string `json:"callerId"`
}

type callEndRequest struct {
	ReceiverID string `json:"receiverId"`
}

// handlerFunc returns true when the session must end.
type handlerFunc func(s *session, ctx context.Context, data json.RawMessage) bool

var dispatchTable = map[string]handlerFunc{
	"sendMessage":  (*session).onSendMessage,
	"call":         (*session).onCall,
	"callAccepted": callReply(model.SignalAccept),
	"callRejected": callReply(model.SignalReject),
	"callEnded":    (*session).onCallEnd,
	"endCall":      (*session).onCallEnd,
	"disconnect":   (*session).onDisconnect,
}

func (s *session) dispatch(ctx context.Context, data []byte) bool {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Warn("WS_BAD_FRAME", "err", err)
		return false
	}

	handle, ok := dispatchTable[frame.Event]
	if !ok {
		s.logger.Debug("WS_UNKNOWN_EVENT", "event", frame.Event)
		return false
	}

	s.handler.metrics.Inbound(frame.Event)
	return handle(s, ctx, frame.Data)
}

func (s *session) onSendMessage(ctx context.Context, data json.RawMessage) bool {
	var req sendMessageRequest
	if err := decode(data, &req); err != nil {
		s.logger.Warn("WS_BAD_PAYLOAD", "event", "sendMessage", "err", err)
		return false
	}

	body := req.messageBody
	if req.Message != nil {
		body = *req.Message
	}

	// the sender is always the connection owner, never a client-supplied id
	msg := &model.Message{
		ClientID:   req.ClientID,
		SenderID:   s.userID,
		ReceiverID: req.ReceiverID,
		Text:       body.Text,
		Image:      body.Image,
		Audio:      body.Audio,
	}

	_, err := s.handler.router.RouteMessage(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrPersistence):
		s.conn.Send(event.NewSendFailedEvent(s.userID, &event.SendFailedPayload{
			ClientID:   req.ClientID,
			ReceiverID: req.ReceiverID,
			Reason:     "message could not be stored",
		}), s.handler.opts.SendTimeout)
	default:
		s.logger.Warn("WS_MESSAGE_REJECTED", "receiver_id", req.ReceiverID, "err", err)
	}

	return false
}

func (s *session) onCall(ctx context.Context, data json.RawMessage) bool {
	var req callRequest
	if err := decode(data, &req); err != nil {
		s.logger.Warn("WS_BAD_PAYLOAD", "event", "call", "err", err)
		return false
	}

	s.routeSignal(ctx, model.CallSignal{
		Type: model.SignalOffer,
		From: s.userID,
		To:   req.ReceiverID,
		Meta: model.CallMeta{
			CallerName:    req.CallerName,
			CallerProfile: req.CallerProfile,
			CallType:      req.CallType,
		},
	})
	return false
}

// callReply answers accept and reject alike; only the signal type differs.
func callReply(t model.SignalType) handlerFunc {
	return func(s *session, ctx context.Context, data json.RawMessage) bool {
		var req callReplyRequest
		if err := decode(data, &req); err != nil {
			s.logger.Warn("WS_BAD_PAYLOAD", "event", t.String(), "err", err)
			return false
		}

		s.routeSignal(ctx, model.CallSignal{Type: t, From: s.userID, To: req.CallerID})
		return false
	}
}

func (s *session) onCallEnd(ctx context.Context, data json.RawMessage) bool {
	var req callEndRequest
	if err := decode(data, &req); err != nil {
		s.logger.Warn("WS_BAD_PAYLOAD", "event", "callEnded", "err", err)
		return false
	}

	s.routeSignal(ctx, model.CallSignal{Type: model.SignalEnd, From: s.userID, To: req.ReceiverID})
	return false
}

func (s *session) onDisconnect(context.Context, json.RawMessage) bool {
	s.logger.Debug("WS_CLIENT_DISCONNECT")
	return true
}

func (s *session) routeSignal(ctx context.Context, sig model.CallSignal) {
	if err := s.handler.router.RouteCallSignal(ctx, sig); err != nil {
		s.logger.Warn("WS_CALL_SIGNAL_REJECTED", "type", sig.Type.String(), "to", sig.To, "err", err)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}
