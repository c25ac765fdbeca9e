package websocket

import (
	"log"
	"time"

	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/model"
)

// Notification types. What the notification is about rides in Title,
// Message and Data; Type only says which surface it belongs to.
const (
	NotificationTypeChat   = "chat"
	NotificationTypeTicket = "ticket"
	NotificationTypeSystem = "system"
)

// Notification is the generic payload behind the "notification" event.
type Notification struct {
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Notifier fans notifications out to rooms. The websocket process wires
// it straight into its hub; the REST process wires it through the Redis
// bridge so notifications still reach clients held by the other
// process.
type Notifier struct {
	send func(roomID, event string, payload interface{}) error
	now  func() time.Time
}

func NewHubNotifier(hub *Hub) *Notifier {
	return &Notifier{
		send: func(roomID, event string, payload interface{}) error {
			envelope, err := NewEnvelope(event, payload)
			if err != nil {
				return err
			}
			hub.Broadcast(roomID, envelope)
			return nil
		},
		now: time.Now,
	}
}

func NewBridgeNotifier() *Notifier {
	return &Notifier{
		send: Publish,
		now:  time.Now,
	}
}

func (n *Notifier) notify(roomID string, note Notification) {
	note.Timestamp = n.now().UTC().Format(time.RFC3339Nano)
	if err := n.send(roomID, EventNotification, note); err != nil {
		log.Printf("Error notifying room %s: %v", roomID, err)
	}
}

func (n *Notifier) ToAgents(note Notification) {
	n.notify(RoomAgents, note)
}

func (n *Notifier) ToAgent(agentID string, note Notification) {
	n.notify(RoomForAgent(agentID), note)
}

func (n *Notifier) ToCustomer(customerID string, note Notification) {
	n.notify(RoomForCustomer(customerID), note)
}

// NotifyNewChatSession tells every agent a customer just opened a chat.
func (n *Notifier) NotifyNewChatSession(session model.ChatSessionItem, customer model.CustomerItem) {
	who := customer.Name
	if who == "" {
		who = customer.Email
	}
	n.ToAgents(Notification{
		Type:    NotificationTypeChat,
		Title:   "New chat session",
		Message: "Chat started by " + who,
		Data:    dto.NewChatSessionResponse(session),
	})
}

func (n *Notifier) NotifyTicketCreated(ticket model.TicketItem) {
	n.ToAgents(Notification{
		Type:    NotificationTypeTicket,
		Title:   "New ticket",
		Message: ticket.TicketNumber + ": " + ticket.Subject,
		Data:    dto.NewTicketResponse(ticket),
	})
}

func (n *Notifier) NotifyTicketAssigned(ticket model.TicketItem) {
	if ticket.AssignedTo == "" {
		return
	}
	n.ToAgent(ticket.AssignedTo, Notification{
		Type:    NotificationTypeTicket,
		Title:   "Ticket assigned to you",
		Message: ticket.TicketNumber + ": " + ticket.Subject,
		Data:    dto.NewTicketResponse(ticket),
	})
}

func (n *Notifier) NotifyTicketStatusChanged(ticket model.TicketItem) {
	note := Notification{
		Type:    NotificationTypeTicket,
		Title:   "Ticket " + ticket.TicketNumber + " is now " + string(ticket.Status),
		Message: ticket.Subject,
		Data:    dto.NewTicketResponse(ticket),
	}
	n.ToAgents(note)
	n.ToCustomer(ticket.CustomerID, note)
}

// NotifyNewComment alerts agents about every comment; the customer only
// hears about comments that are not internal.
func (n *Notifier) NotifyNewComment(ticket model.TicketItem, comment model.TicketCommentItem) {
	note := Notification{
		Type:    NotificationTypeTicket,
		Title:   "New comment on " + ticket.TicketNumber,
		Message: comment.Comment,
		Data:    dto.NewTicketCommentResponse(comment),
	}
	n.ToAgents(note)
	if !comment.IsInternal {
		n.ToCustomer(ticket.CustomerID, note)
	}
}
