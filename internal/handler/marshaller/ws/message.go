package wsmarshaller

import (
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type WSMessage struct {
	ID         string `json:"id"`
	ClientID   string `json:"clientId,omitempty"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	Audio      string `json:"audio,omitempty"`
	IsRead     bool   `json:"isRead"`
	CreatedAt  int64  `json:"createdAt"`
	Type       string `json:"type"` // "text", "image", "audio"
}

// MapMessage is shared by the WebSocket frames and the REST responses.
func MapMessage(m *model.Message) *WSMessage {
	msg := &WSMessage{
		ID:         m.ID.String(),
		ClientID:   m.ClientID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Audio:      m.Audio,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
		Type:       "text",
	}

	if m.Image != "" {
		msg.Type = "image"
	} else if m.Audio != "" {
		msg.Type = "audio"
	}

	return msg
}

func MapMessages(ms []*model.Message) []*WSMessage {
	out := make([]*WSMessage, 0, len(ms))
	for _, m := range ms {
		out = append(out, MapMessage(m))
	}
	return out
}
