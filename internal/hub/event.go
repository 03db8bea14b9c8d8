package hub

import "messagerie/internal/domain"

// Wire event names, matching what clients listen for.
const (
	EventRoomMessages = "roomMessages"
	EventMessage      = "message"
	EventMessageError = "messageError"
	EventUserJoined   = "userJoined"
	EventUserLeft     = "userLeft"
)

// Event is the JSON envelope pushed to clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// PresenceNotice announces a member entering or leaving a room.
type PresenceNotice struct {
	User string `json:"user"`
	Room string `json:"room"`
}

func messageEvent(display domain.DisplayMessage) Event {
	return Event{Event: EventMessage, Data: display}
}
